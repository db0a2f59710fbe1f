package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sparkly-dev/sparkly-server/internal/common"
	"github.com/sparkly-dev/sparkly-server/internal/logging"
	"github.com/sparkly-dev/sparkly-server/internal/server/metrics"
	"github.com/sparkly-dev/sparkly-server/internal/server/models"
	"github.com/sparkly-dev/sparkly-server/internal/server/password"
	"github.com/sparkly-dev/sparkly-server/internal/server/repositories/repomanager"
	"github.com/sparkly-dev/sparkly-server/internal/server/tracing"
)

// RegisterInput is what a new user supplies. Usernames may not contain '@'
// so an identifier is never ambiguous between email and username.
type RegisterInput struct {
	UserName string `validate:"required,max=64,excludes=@"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=6,max=128"`
}

// UserService is the user directory plus self-registration.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      password.Hasher
	logger      logging.Logger
	metrics     *metrics.Auth
}

// NewUserService returns a UserService storing users through m on db and
// hashing passwords with h.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, h password.Hasher, l logging.Logger, mt *metrics.Auth) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      h,
		logger:      l.With("module", "users"),
		metrics:     mt,
	}
}

// Register creates a user with role common.DefaultRole. The email is stored
// lower-cased. A taken email or username yields common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, username, email, plaintext string) (_ *models.User, err error) {
	ctx, span := tracing.Start(ctx, "users.Register")
	defer func() { tracing.End(span, err) }()

	in := RegisterInput{
		UserName: strings.TrimSpace(username),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: plaintext,
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	if _, err := repo.FindByEmail(ctx, in.Email); err == nil {
		return nil, common.ErrorAlreadyExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	if _, err := repo.FindByUsername(ctx, in.UserName); err == nil {
		return nil, common.ErrorAlreadyExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	digest, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := repo.Create(ctx, &models.User{
		Email:        in.Email,
		UserName:     in.UserName,
		PasswordHash: digest,
		Role:         common.DefaultRole,
	})
	if err != nil {
		// Lost a race against a concurrent registration.
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	s.metrics.Registered()
	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

func (s *UserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.find(ctx, func(ctx context.Context) (*models.User, error) {
		return s.repomanager.Users(s.db).FindByID(ctx, id)
	})
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.find(ctx, func(ctx context.Context) (*models.User, error) {
		return s.repomanager.Users(s.db).FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	})
}

func (s *UserService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.find(ctx, func(ctx context.Context) (*models.User, error) {
		return s.repomanager.Users(s.db).FindByUsername(ctx, strings.TrimSpace(username))
	})
}

// find keeps common.ErrorNotFound as is and maps everything else onto
// common.ErrPersistence.
func (s *UserService) find(ctx context.Context, lookup func(context.Context) (*models.User, error)) (*models.User, error) {
	u, err := lookup(ctx)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	return u, nil
}
