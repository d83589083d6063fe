// Package policy evaluates named authorization policies against the claim set
// of a validated access token. Policies are pure predicates: no storage, no
// network, no side effects.
package policy

import (
	"errors"
	"fmt"

	"catalog-api/internal/token"
)

var ErrUnknownPolicy = errors.New("unknown policy")

// Policy is a predicate over the claims carried by an access token.
type Policy func(claims *token.Claims) bool

// RequireRole is satisfied when the claim set carries a role claim equal to
// the given role.
func RequireRole(role string) Policy {
	return func(claims *token.Claims) bool {
		return claims.HasRole(role)
	}
}

// RequireRoleAndClaim is satisfied only when the claim set carries the role
// AND the exact (type, value) claim pair.
func RequireRoleAndClaim(role, claimType, claimValue string) Policy {
	return func(claims *token.Claims) bool {
		value, ok := claims.Get(claimType)
		return claims.HasRole(role) && ok && value == claimValue
	}
}

// Assertion is satisfied when the id claim equals privilegedID or the claim
// set carries the elevated role. Either predicate alone is enough.
func Assertion(privilegedID, elevatedRole string) Policy {
	return func(claims *token.Claims) bool {
		if id, ok := claims.Get("id"); ok && id == privilegedID {
			return true
		}
		return claims.HasRole(elevatedRole)
	}
}

// Registry holds named policies. Populated once at startup, read-only after.
type Registry struct {
	policies map[string]Policy
}

func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]Policy)}
}

func (r *Registry) Register(name string, p Policy) {
	r.policies[name] = p
}

// Evaluate runs the named policy against the claim set. An unknown policy
// name is a wiring bug and reported as an error, not a denial.
func (r *Registry) Evaluate(name string, claims *token.Claims) (bool, error) {
	p, ok := r.policies[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
	}
	return p(claims), nil
}
