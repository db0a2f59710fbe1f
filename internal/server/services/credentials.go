package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sparkly-dev/sparkly-server/internal/common"
	"github.com/sparkly-dev/sparkly-server/internal/logging"
	"github.com/sparkly-dev/sparkly-server/internal/server/metrics"
	"github.com/sparkly-dev/sparkly-server/internal/server/models"
	"github.com/sparkly-dev/sparkly-server/internal/server/password"
	"github.com/sparkly-dev/sparkly-server/internal/server/repositories/repomanager"
	"github.com/sparkly-dev/sparkly-server/internal/server/tracing"
)

// CredentialVerifier checks an identifier/password pair against the user
// directory.
type CredentialVerifier struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      password.Hasher
	logger      logging.Logger
	metrics     *metrics.Auth

	decoyOnce sync.Once
	decoy     string
}

// NewCredentialVerifier returns a verifier reading users through m on db.
// A nil mt disables metrics.
func NewCredentialVerifier(db *sql.DB, m repomanager.RepositoryManager, h password.Hasher, l logging.Logger, mt *metrics.Auth) *CredentialVerifier {
	return &CredentialVerifier{
		db:          db,
		repomanager: m,
		hasher:      h,
		logger:      l.With("module", "credentials"),
		metrics:     mt,
	}
}

// IsEmailIdentifier reports whether identifier is looked up by email.
// Anything containing '@' is an email; usernames cannot contain one.
func IsEmailIdentifier(identifier string) bool {
	return strings.Contains(identifier, "@")
}

// Authenticate returns the user owning identifier when plaintext is that
// user's password. Unknown users, wrong passwords and empty input all yield
// common.ErrInvalidCredentials. Store failures wrap common.ErrPersistence.
//
// A digest that needs rehashing is upgraded on the way out. Failing to
// store the upgrade is logged and does not fail the call.
func (v *CredentialVerifier) Authenticate(ctx context.Context, identifier, plaintext string) (*models.User, error) {
	ctx, span := tracing.Start(ctx, "credentials.Authenticate")
	user, err := v.authenticate(ctx, identifier, plaintext)
	tracing.End(span, err)
	return user, err
}

func (v *CredentialVerifier) authenticate(ctx context.Context, identifier, plaintext string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || plaintext == "" {
		return nil, common.ErrInvalidCredentials
	}

	kind := "username"
	users := v.repomanager.Users(v.db)

	var (
		user *models.User
		err  error
	)
	if IsEmailIdentifier(identifier) {
		kind = "email"
		user, err = users.FindByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = users.FindByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Spend the same effort as for a real user.
			v.burnVerify(ctx, plaintext)
			v.logger.Info(ctx, "authentication failed", "identifier_kind", kind)
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	start := time.Now()
	res, err := v.hasher.Verify(ctx, user.PasswordHash, plaintext)
	v.metrics.VerifyDuration(start)
	if err != nil {
		if errors.Is(err, password.ErrInvalidHash) {
			v.logger.Warn(ctx, "stored password hash is unreadable", "user_id", user.ID)
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !res.Ok() {
		v.logger.Info(ctx, "authentication failed", "identifier_kind", kind, "user_id", user.ID)
		return nil, common.ErrInvalidCredentials
	}

	if res == password.NeedsRehash {
		v.rehash(ctx, user, plaintext)
	}

	return user, nil
}

func (v *CredentialVerifier) rehash(ctx context.Context, user *models.User, plaintext string) {
	digest, err := v.hasher.Hash(ctx, plaintext)
	if err != nil {
		v.logger.Warn(ctx, "password rehash failed", "user_id", user.ID, "error", err.Error())
		return
	}
	if err := v.repomanager.Users(v.db).UpdatePasswordHash(ctx, user.ID, digest); err != nil {
		v.logger.Warn(ctx, "storing rehashed password failed", "user_id", user.ID, "error", err.Error())
		return
	}
	user.PasswordHash = digest
	v.logger.Info(ctx, "password hash upgraded", "user_id", user.ID)
}

func (v *CredentialVerifier) burnVerify(ctx context.Context, plaintext string) {
	v.decoyOnce.Do(func() {
		d, err := v.hasher.Hash(context.WithoutCancel(ctx), "decoy-password")
		if err == nil {
			v.decoy = d
		}
	})
	if v.decoy != "" {
		_, _ = v.hasher.Verify(ctx, v.decoy, plaintext)
	}
}
