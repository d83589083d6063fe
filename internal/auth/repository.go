package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the Postgres credential store.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (User, error) {
	var user User
	var refreshToken sql.NullString
	var refreshExpiry sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, refresh_token, refresh_token_expires_at, created_at, updated_at
		FROM users
		WHERE username = $1
	`, username).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&refreshToken, &refreshExpiry, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("query user by username: %w", err)
	}

	if refreshToken.Valid {
		user.RefreshToken = &refreshToken.String
	}
	if refreshExpiry.Valid {
		value := refreshExpiry.Time.UTC()
		user.RefreshTokenExpiry = &value
	}

	roles, err := r.rolesOf(ctx, user.ID)
	if err != nil {
		return User{}, err
	}
	user.Roles = roles

	return user, nil
}

func (r *Repository) rolesOf(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}

	return roles, nil
}

func (r *Repository) CreateUser(ctx context.Context, username, email, passwordHash string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate user id: %w", err)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT DO NOTHING
	`, id.String(), username, email, passwordHash, now)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert user rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserExists
	}

	return nil
}

func (r *Repository) SetRefreshToken(ctx context.Context, username, refreshToken string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET refresh_token = $2, refresh_token_expires_at = $3, updated_at = NOW()
		WHERE username = $1
	`, username, refreshToken, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set refresh token rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// RotateRefreshToken relies on the single UPDATE being atomic: two concurrent
// rotations presenting the same old token race on the WHERE clause and only
// one of them matches.
func (r *Repository) RotateRefreshToken(ctx context.Context, username, oldToken, newToken string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET refresh_token = $3, refresh_token_expires_at = $4, updated_at = NOW()
		WHERE username = $1
		  AND refresh_token = $2
		  AND refresh_token_expires_at > NOW()
	`, username, oldToken, newToken, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate refresh token rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRefreshMismatch
	}

	return nil
}

func (r *Repository) ClearRefreshToken(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET refresh_token = NULL, refresh_token_expires_at = NULL, updated_at = NOW()
		WHERE username = $1
	`, username)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("clear refresh token rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

// CreateRole serializes duplicate creation on the roles.name unique
// constraint instead of a read-then-insert.
func (r *Repository) CreateRole(ctx context.Context, name string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate role id: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO roles (id, name, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO NOTHING
	`, id.String(), name)
	if err != nil {
		return fmt.Errorf("insert role: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert role rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRoleExists
	}

	return nil
}

func (r *Repository) AddUserToRole(ctx context.Context, email, roleName string) error {
	var userID string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("query user by email: %w", err)
	}

	var roleID string
	err = r.db.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = $1`, roleName).Scan(&roleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("query role by name: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, userID, roleID)
	if err != nil {
		return fmt.Errorf("insert user role: %w", err)
	}

	return nil
}

// ClearExpiredRefreshTokens removes refresh tokens whose expiry passed before
// the cutoff, in batches. Used by the maintenance endpoint.
func (r *Repository) ClearExpiredRefreshTokens(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM users
			WHERE refresh_token IS NOT NULL
			  AND refresh_token_expires_at < $1
			LIMIT $2
		)
		UPDATE users u
		SET refresh_token = NULL, refresh_token_expires_at = NULL, updated_at = NOW()
		FROM stale
		WHERE u.id = stale.id
	`, cutoff.UTC(), batchSize)
	if err != nil {
		return 0, fmt.Errorf("clear expired refresh tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired refresh tokens rows affected: %w", err)
	}

	return affected, nil
}
