package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sparkly-dev/sparkly-server/internal/common"
	"github.com/sparkly-dev/sparkly-server/internal/dbx"
	"github.com/sparkly-dev/sparkly-server/internal/logging"
	"github.com/sparkly-dev/sparkly-server/internal/netx"
	"github.com/sparkly-dev/sparkly-server/internal/server/config"
	"github.com/sparkly-dev/sparkly-server/internal/server/metrics"
	"github.com/sparkly-dev/sparkly-server/internal/server/models"
	"github.com/sparkly-dev/sparkly-server/internal/server/repositories/repomanager"
	"github.com/sparkly-dev/sparkly-server/internal/server/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Authenticator resolves credentials to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, identifier, plaintext string) (*models.User, error)
}

// TokenIssuer mints access tokens and refresh secrets.
type TokenIssuer interface {
	IssueAccessToken(u *models.User) (string, time.Time, error)
	IssueRefreshSecret() (string, error)
}

// SessionService drives the refresh token lifecycle: a record is created
// Active by Login and ends either Revoked by Logout (or by rotation) or
// Expired once its expiry passes.
type SessionService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	credentials   Authenticator
	tokens        TokenIssuer
	refreshTTL    time.Duration
	refreshPolicy string
	logger        logging.Logger
	metrics       *metrics.Auth
	now           func() time.Time
}

// NewSessionService takes the refresh lifetime and policy from cfg. Records
// are stored through m on db; c checks login credentials and t mints tokens.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, c Authenticator, t TokenIssuer,
	cfg *config.Config, l logging.Logger, mt *metrics.Auth) *SessionService {
	return &SessionService{
		db:            db,
		repomanager:   m,
		credentials:   c,
		tokens:        t,
		refreshTTL:    cfg.RefreshTokenValidityDuration,
		refreshPolicy: cfg.RefreshTokenPolicy,
		logger:        l.With("module", "sessions"),
		metrics:       mt,
		now:           time.Now,
	}
}

// Login authenticates the caller and opens a new session. Tokens are only
// returned once the refresh record is stored.
func (s *SessionService) Login(ctx context.Context, identifier, plaintext string) (_ *models.Session, err error) {
	ctx, span := tracing.Start(ctx, "sessions.Login")
	defer func() { tracing.End(span, err) }()

	user, err := s.credentials.Authenticate(ctx, identifier, plaintext)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			s.metrics.Login(metrics.OutcomeInvalidCredentials)
			return nil, common.ErrInvalidCredentials
		}
		s.metrics.Login(metrics.OutcomeError)
		s.logger.Error(ctx, "login failed", "error", err.Error())
		return nil, err
	}

	access, accessExp, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		s.metrics.Login(metrics.OutcomeError)
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	secret, err := s.tokens.IssueRefreshSecret()
	if err != nil {
		s.metrics.Login(metrics.OutcomeError)
		return nil, fmt.Errorf("issue refresh secret: %w", err)
	}

	rt, err := s.repomanager.RefreshTokens(s.db).Create(ctx, user.ID, secret, s.now().Add(s.refreshTTL))
	if err != nil {
		s.metrics.Login(metrics.OutcomeError)
		s.logger.Error(ctx, "storing refresh token failed", "user_id", user.ID, "error", err.Error())
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	s.metrics.Login(metrics.OutcomeSuccess)
	s.logger.Info(ctx, "login succeeded", "user_id", user.ID, "refresh_token_id", rt.ID)

	return &models.Session{
		AccessToken:           access,
		RefreshToken:          rt.Token,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: rt.ExpiresAt,
	}, nil
}

// Refresh exchanges an active refresh secret for a new access token.
// Absent, revoked and expired secrets all fail with
// common.ErrInvalidOrExpiredToken.
//
// Under config.RefreshPolicyReuse the same secret is handed back with its
// original expiry. Under config.RefreshPolicyRotate the presented record is
// revoked, pointing at a newly issued secret with a fresh lifetime.
func (s *SessionService) Refresh(ctx context.Context, rawRefreshSecret string) (sess *models.Session, err error) {
	ctx, span := tracing.Start(ctx, "sessions.Refresh", attribute.String("refresh.policy", s.refreshPolicy))
	defer func() { tracing.End(span, err) }()

	if rawRefreshSecret == "" {
		s.metrics.Refresh(metrics.OutcomeInvalidToken)
		return nil, common.ErrInvalidOrExpiredToken
	}

	if s.refreshPolicy == config.RefreshPolicyRotate {
		err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			var rerr error
			sess, rerr = s.rotate(ctx, tx, rawRefreshSecret)
			return rerr
		})
		var txErr *dbx.TxError
		if errors.As(err, &txErr) {
			err = fmt.Errorf("%w: %w", common.ErrPersistence, err)
		}
	} else {
		sess, err = s.reuse(ctx, rawRefreshSecret)
	}

	switch {
	case err == nil:
		s.metrics.Refresh(metrics.OutcomeSuccess)
		return sess, nil
	case errors.Is(err, common.ErrInvalidOrExpiredToken):
		s.metrics.Refresh(metrics.OutcomeInvalidToken)
		return nil, common.ErrInvalidOrExpiredToken
	default:
		s.metrics.Refresh(metrics.OutcomeError)
		s.logger.Error(ctx, "refresh failed", "error", err.Error())
		return nil, err
	}
}

func (s *SessionService) reuse(ctx context.Context, secret string) (*models.Session, error) {
	rt, user, err := s.activeRecord(ctx, s.db, secret)
	if err != nil {
		return nil, err
	}

	access, accessExp, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	return &models.Session{
		AccessToken:           access,
		RefreshToken:          rt.Token,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: rt.ExpiresAt,
	}, nil
}

func (s *SessionService) rotate(ctx context.Context, tx dbx.DBTX, secret string) (*models.Session, error) {
	rt, user, err := s.activeRecord(ctx, tx, secret)
	if err != nil {
		return nil, err
	}

	next, err := s.tokens.IssueRefreshSecret()
	if err != nil {
		return nil, fmt.Errorf("issue refresh secret: %w", err)
	}

	now := s.now()
	repo := s.repomanager.RefreshTokens(tx)

	revoked, err := repo.Revoke(ctx, rt.ID, now, netx.OriginIP(ctx), next)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	if !revoked {
		// A concurrent refresh or logout got there first.
		return nil, common.ErrInvalidOrExpiredToken
	}

	created, err := repo.Create(ctx, user.ID, next, now.Add(s.refreshTTL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	access, accessExp, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	s.metrics.Revoked()
	s.logger.Info(ctx, "refresh token rotated", "user_id", user.ID,
		"refresh_token_id", rt.ID, "replaced_by_id", created.ID)

	return &models.Session{
		AccessToken:           access,
		RefreshToken:          created.Token,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: created.ExpiresAt,
	}, nil
}

// activeRecord loads the active record behind secret and its owner.
func (s *SessionService) activeRecord(ctx context.Context, db dbx.DBTX, secret string) (*models.RefreshToken, *models.User, error) {
	rt, err := s.repomanager.RefreshTokens(db).FindActive(ctx, secret, s.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrInvalidOrExpiredToken
		}
		return nil, nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	user, err := s.repomanager.Users(db).FindByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrInvalidOrExpiredToken
		}
		return nil, nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	return rt, user, nil
}

// Logout revokes the record behind rawRefreshSecret. Empty, unknown and
// already revoked secrets are accepted silently so the caller cannot learn
// whether a token existed. Only a store failure is reported, wrapped in
// common.ErrPersistence.
func (s *SessionService) Logout(ctx context.Context, rawRefreshSecret string) (err error) {
	ctx, span := tracing.Start(ctx, "sessions.Logout")
	defer func() { tracing.End(span, err) }()

	if rawRefreshSecret == "" {
		return nil
	}

	repo := s.repomanager.RefreshTokens(s.db)

	rt, err := repo.Find(ctx, rawRefreshSecret)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		s.logger.Error(ctx, "logout lookup failed", "error", err.Error())
		return fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	if rt.IsRevoked() {
		return nil
	}

	revoked, err := repo.Revoke(ctx, rt.ID, s.now(), netx.OriginIP(ctx), "")
	if err != nil {
		s.logger.Error(ctx, "logout revoke failed", "refresh_token_id", rt.ID, "error", err.Error())
		return fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	if revoked {
		s.metrics.Revoked()
		s.logger.Info(ctx, "refresh token revoked", "user_id", rt.UserID, "refresh_token_id", rt.ID)
	}
	return nil
}
