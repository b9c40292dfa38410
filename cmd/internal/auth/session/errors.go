package session

import "errors"

var (
	// ErrInvalidCredentials is the single login failure for unknown users and bad passwords.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailTaken is returned by Register for an existing email.
	ErrEmailTaken = errors.New("email already exists")

	// ErrInvalidInput wraps registration validation failures.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRefreshInvalid covers a missing, superseded and expired refresh session alike.
	ErrRefreshInvalid = errors.New("invalid refresh token")

	// ErrUserNotFound is returned for admin operations on unknown users.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidTokenFormat is returned by RevokeToken for a value that is neither a session hash nor a JWT.
	ErrInvalidTokenFormat = errors.New("invalid token format")

	// ErrMissingTokenID is returned by RevokeToken for a JWT without jti.
	ErrMissingTokenID = errors.New("token has no id")

	// ErrNothingToRevoke is returned by RevokeToken for an already expired JWT.
	ErrNothingToRevoke = errors.New("token already expired")

	// ErrUnavailable wraps shared-store failures that abort an operation.
	ErrUnavailable = errors.New("session store unavailable")

	// ErrConfig is returned for missing dependencies.
	ErrConfig = errors.New("session: invalid config")
)
