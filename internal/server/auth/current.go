package auth

import (
	"context"
	"slices"
)

// Principal is the identity of the caller behind an already verified access
// token. The zero value is an anonymous caller.
type Principal struct {
	UserID   string
	Email    string
	UserName string
	Role     string
}

// PrincipalFromClaims extracts the identity from verified claims. It does
// no validation of its own.
func PrincipalFromClaims(c *Claims) Principal {
	if c == nil {
		return Principal{}
	}
	return Principal{
		UserID:   c.Subject,
		Email:    c.Email,
		UserName: c.Name,
		Role:     c.Role,
	}
}

// IsAuthenticated is true once a subject is known.
func (p Principal) IsAuthenticated() bool {
	return p.UserID != ""
}

// IsInRole reports whether an authenticated principal holds one of roles.
func (p Principal) IsInRole(roles ...string) bool {
	return p.IsAuthenticated() && slices.Contains(roles, p.Role)
}

type principalKey struct{}

// NewContext returns a child of ctx carrying p.
func NewContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by NewContext, or an anonymous one.
func FromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}
