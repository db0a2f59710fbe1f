// Package auth mints and verifies access tokens, generates refresh secrets
// and exposes the authenticated principal of a request.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sparkly-dev/sparkly-server/internal/common"
	"github.com/sparkly-dev/sparkly-server/internal/server/models"
)

// Claims carried by an access token. The subject is the user id.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 access tokens with a key supplied at startup and
// draws refresh secrets from crypto/rand.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// Option customises a TokenIssuer.
type Option func(*TokenIssuer)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(i *TokenIssuer) { i.now = now }
}

// NewTokenIssuer fails with common.ErrConfiguration when secret is empty.
// Key length and entropy are the operator's concern.
func NewTokenIssuer(secret []byte, issuer, audience string, ttl time.Duration, opts ...Option) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: signing key is missing", common.ErrConfiguration)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: access token lifetime must be positive", common.ErrConfiguration)
	}

	i := &TokenIssuer{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	return i, nil
}

// IssueAccessToken mints a token for u valid from now until now+ttl and
// returns it together with its expiry.
func (i *TokenIssuer) IssueAccessToken(u *models.User) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.ttl)

	claims := Claims{
		Email: u.Email,
		Name:  u.UserName,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}

	// The expiry the client sees matches the one encoded in the token.
	return tokenString, claims.ExpiresAt.Time, nil
}

// IssueRefreshSecret returns an unguessable opaque secret built from
// common.RefreshSecretSize random bytes. It carries no user data.
func (i *TokenIssuer) IssueRefreshSecret() (string, error) {
	s, err := common.MakeRandBase64String(common.RefreshSecretSize)
	if err != nil {
		return "", fmt.Errorf("refresh secret: %w", err)
	}
	return s, nil
}

// Verify checks signature, algorithm, expiry and not-before of tokenString,
// plus issuer and audience when the issuer was configured with them.
// Every failure wraps common.ErrInvalidToken.
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	if i.audience != "" {
		opts = append(opts, jwt.WithAudience(i.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// IsExpired reports whether err came from an expired access token.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
