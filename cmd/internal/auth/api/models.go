package authapi

import (
	"time"

	"warden/cmd/identity"
	"warden/cmd/internal/auth/codec"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type revokeRequest struct {
	Token string `json:"token"`
}

type noticeRequest struct {
	Message string `json:"message"`
}

type userResponse struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      codec.Role `json:"role"`
	CreatedAt time.Time  `json:"createdAt"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt}
}

type loginResponse struct {
	AccessToken string       `json:"accessToken"`
	User        userResponse `json:"user"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type verifyResponse struct {
	UserID    int64      `json:"userId"`
	Email     string     `json:"email"`
	Role      codec.Role `json:"role"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

type revokeResponse struct {
	TokenHash     string    `json:"tokenHash,omitempty"`
	JWTID         string    `json:"jwtId,omitempty"`
	BlacklistedAt time.Time `json:"blacklistedAt"`
}
