package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"catalog-api/internal/token"
)

// Service orchestrates login, refresh and revocation against the credential
// store and the token codec. It holds no mutable state of its own; the only
// shared mutable resource is the refresh token on the user record, guarded by
// the store's compare-and-swap.
type Service struct {
	store      Store
	codec      *token.Codec
	refreshTTL time.Duration
}

func NewService(store Store, codec *token.Codec, refreshTTL time.Duration) *Service {
	return &Service{store: store, codec: codec, refreshTTL: refreshTTL}
}

// Login checks the credentials, issues an access token carrying the user's
// claims and a fresh refresh token, and persists the refresh token on the
// user record, overwriting any prior one. An unknown username and a wrong
// password are deliberately indistinguishable.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	user, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	access, expiresAt, err := s.codec.Issue(user.Username, user.Email, user.Username, user.Roles)
	if err != nil {
		return LoginResult{}, err
	}

	refresh, err := token.NewRefreshToken()
	if err != nil {
		return LoginResult{}, err
	}

	refreshExpiry := time.Now().UTC().Add(s.refreshTTL)
	if err := s.store.SetRefreshToken(ctx, user.Username, refresh, refreshExpiry); err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		Expiration:   expiresAt,
	}, nil
}

// Refresh decodes the (possibly expired) access token to recover the claimed
// identity, then rotates the refresh token through the store's
// compare-and-swap. The swap is the authority: the stored token must equal
// refreshToken and be unexpired, so a superseded token always fails here and
// at most one of two racing attempts wins. A new access token reusing the
// recovered claims is issued only after the rotation commits.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshToken string) (RefreshResult, error) {
	claims, err := s.codec.Decode(accessToken, true)
	if err != nil {
		return RefreshResult{}, err
	}

	newRefresh, err := token.NewRefreshToken()
	if err != nil {
		return RefreshResult{}, err
	}

	refreshExpiry := time.Now().UTC().Add(s.refreshTTL)
	if err := s.store.RotateRefreshToken(ctx, claims.Name, refreshToken, newRefresh, refreshExpiry); err != nil {
		return RefreshResult{}, err
	}

	access, _, err := s.codec.Issue(claims.Name, claims.Email, claims.UserID, claims.Roles)
	if err != nil {
		return RefreshResult{}, err
	}

	return RefreshResult{AccessToken: access, RefreshToken: newRefresh}, nil
}

// Revoke clears the user's stored refresh token so every later refresh
// attempt fails at the compare-and-swap. Revoking an already-revoked user
// succeeds.
func (s *Service) Revoke(ctx context.Context, username string) error {
	return s.store.ClearRefreshToken(ctx, strings.TrimSpace(username))
}

// Register creates a user with a bcrypt password hash. Roles are never
// assigned implicitly; a fresh user has none.
func (s *Service) Register(ctx context.Context, username, email, password string) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return fmt.Errorf("username, email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.store.CreateUser(ctx, username, email, string(hash))
}

func (s *Service) CreateRole(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("role name is required")
	}
	return s.store.CreateRole(ctx, name)
}

func (s *Service) AddUserToRole(ctx context.Context, email, roleName string) error {
	email = strings.TrimSpace(email)
	roleName = strings.TrimSpace(roleName)
	if email == "" || roleName == "" {
		return fmt.Errorf("email and role name are required")
	}
	return s.store.AddUserToRole(ctx, email, roleName)
}
