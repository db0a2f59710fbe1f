// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/sparkly-dev/sparkly-server/internal/server/models"
)

// Repository is the only writer of the refresh_tokens table. Every lookup
// reads the durable store; nothing is cached in process.
type Repository interface {
	// Create stores a new active refresh token for userID and returns the
	// persisted record with its generated id.
	Create(ctx context.Context, userID string, token string, expiresAt time.Time) (*models.RefreshToken, error)

	// Find looks up a refresh token by its opaque token string in any state.
	// Implementations return common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// FindActive is Find restricted to records that are active at now.
	// Revoked and expired records are reported as common.ErrorNotFound.
	FindActive(ctx context.Context, token string, now time.Time) (*models.RefreshToken, error)

	// Revoke marks the record revoked at now. It only ever moves a record
	// from active to revoked: a second call, concurrent or not, leaves the
	// first revocation in place and reports false.
	Revoke(ctx context.Context, id string, now time.Time, originIP, replacedBy string) (bool, error)
}
