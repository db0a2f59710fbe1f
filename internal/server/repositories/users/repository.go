// Package users is the user directory: identity records looked up by email,
// username or id.
package users

import (
	"context"

	"github.com/sparkly-dev/sparkly-server/internal/server/models"
)

// Repository returns common.ErrorNotFound from the lookups when no user
// matches and common.ErrorAlreadyExists from Create on a duplicate email or
// username.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, userName string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error
}
