package identity

import (
	"context"
	"strings"
	"time"

	"warden/cmd/internal/auth/codec"
)

// User is a directory entry.
type User struct {
	ID           int64
	Email        string
	Name         string
	Role         codec.Role
	PasswordHash string
	CreatedAt    time.Time
}

// Subject is the token subject for u.
func (u User) Subject() codec.Subject {
	return codec.Subject{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// CreateUserInput describes a new account. PasswordHash is already hashed;
// the directory never sees plaintext passwords.
type CreateUserInput struct {
	Email        string
	Name         string
	PasswordHash string
	Role         codec.Role
	Now          time.Time
}

// Store is the user directory boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// prepare normalizes and checks in for op.
func (in CreateUserInput) prepare(op string) (CreateUserInput, error) {
	in.Email = NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case !ValidEmail(in.Email):
		return in, invalid(op, "invalid email")
	case !ValidName(in.Name):
		return in, invalid(op, "invalid name")
	case strings.TrimSpace(in.PasswordHash) == "":
		return in, invalid(op, "password hash is required")
	}
	if in.Role == "" {
		in.Role = codec.RoleUser
	}
	role, ok := codec.ParseRole(string(in.Role))
	if !ok {
		return in, invalid(op, "unknown role")
	}
	in.Role = role
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}
