package auth

import (
	"errors"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrRoleExists         = errors.New("role already exists")
	ErrRoleNotFound       = errors.New("role not found")
	// ErrRefreshMismatch means the supplied refresh token does not match the
	// stored one, or the stored one has expired, or the user is unknown. The
	// caller never learns which.
	ErrRefreshMismatch = errors.New("refresh token mismatch")
)

// User is the credential store record. At most one refresh token is active
// per user; both refresh fields are nil when the user has been revoked or has
// never logged in.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Roles        []string

	RefreshToken       *string
	RefreshTokenExpiry *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// LoginResult is what a successful login hands back to the client.
type LoginResult struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiration   time.Time `json:"expiration"`
}

// RefreshResult carries the rotated token pair.
type RefreshResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Response is the structured status/message body used by the administrative
// endpoints on both success and failure.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
