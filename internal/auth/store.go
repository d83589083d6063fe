package auth

import (
	"context"
	"time"
)

// Store is the credential store the authentication flow runs against. The
// Postgres implementation lives in Repository; tests substitute an in-memory
// one.
type Store interface {
	GetByUsername(ctx context.Context, username string) (User, error)
	CreateUser(ctx context.Context, username, email, passwordHash string) error

	// SetRefreshToken unconditionally replaces the user's refresh token.
	// This is the login rotation point: whatever token was stored before is
	// invalid the moment this returns.
	SetRefreshToken(ctx context.Context, username, refreshToken string, expiresAt time.Time) error

	// RotateRefreshToken is a compare-and-swap: the stored token must equal
	// oldToken and must not be expired, otherwise ErrRefreshMismatch. Under
	// concurrent rotation attempts exactly one caller wins.
	RotateRefreshToken(ctx context.Context, username, oldToken, newToken string, expiresAt time.Time) error

	// ClearRefreshToken revokes the user's refresh token. Clearing an
	// already-cleared token succeeds; an unknown user is ErrUserNotFound.
	ClearRefreshToken(ctx context.Context, username string) error

	CreateRole(ctx context.Context, name string) error
	AddUserToRole(ctx context.Context, email, roleName string) error
}
