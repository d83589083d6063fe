package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers every decode failure: malformed input, bad signature,
// wrong algorithm, issuer/audience mismatch, or expiry when not allowed.
var ErrInvalidToken = errors.New("invalid token")

const minSecretBytes = 32

// Claims is the claim set carried by every access token. The id claim is the
// stable user identifier; jti lives in RegisteredClaims.ID and is unique per
// issuance.
type Claims struct {
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	UserID string   `json:"id"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Get looks up a non-role claim by type.
func (c *Claims) Get(claimType string) (string, bool) {
	switch claimType {
	case "name":
		return c.Name, c.Name != ""
	case "email":
		return c.Email, c.Email != ""
	case "id":
		return c.UserID, c.UserID != ""
	case "jti":
		return c.ID, c.ID != ""
	default:
		return "", false
	}
}

// HasRole reports whether the claim set carries the given role claim.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Codec issues and validates signed access tokens. It is immutable after
// construction and safe for concurrent use.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

func NewCodec(secret []byte, issuer, audience string, ttl time.Duration) (*Codec, error) {
	if len(secret) < minSecretBytes {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", minSecretBytes)
	}
	if issuer == "" || audience == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if ttl <= 0 {
		return nil, errors.New("access token ttl must be positive")
	}

	return &Codec{secret: secret, issuer: issuer, audience: audience, ttl: ttl}, nil
}

// Issue signs an access token for the given identity with a fresh jti and
// returns the encoded token together with its expiry.
func (c *Codec) Issue(name, email, userID string, roles []string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(c.ttl)

	claims := Claims{
		Name:   name,
		Email:  email,
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	encoded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	return encoded, expiresAt, nil
}

// Decode validates the token signature, algorithm, issuer and audience, and
// (unless allowExpired) its expiry. The allowExpired mode exists for the
// refresh flow only: expiry is skipped but the signing method is still pinned,
// so a token signed with a different algorithm never passes.
func (c *Codec) Decode(tokenText string, allowExpired bool) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	} else {
		opts = append(opts,
			jwt.WithIssuer(c.issuer),
			jwt.WithAudience(c.audience),
			jwt.WithExpirationRequired(),
		)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenText, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if allowExpired {
		// Claim validation was skipped above, so issuer and audience are
		// checked by hand.
		if claims.Issuer != c.issuer || !containsAudience(claims.Audience, c.audience) {
			return nil, ErrInvalidToken
		}
	}

	return claims, nil
}

func containsAudience(audiences jwt.ClaimStrings, expected string) bool {
	for _, aud := range audiences {
		if aud == expected {
			return true
		}
	}
	return false
}
