package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sparkly-dev/sparkly-server/internal/common"
	"github.com/sparkly-dev/sparkly-server/internal/dbx"
	"github.com/sparkly-dev/sparkly-server/internal/server/models"
)

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
	newID   func() string
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, newID: uuid.NewString}
}

func (r *SQLRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	u := *user
	if u.ID == "" {
		u.ID = r.newID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	query := r.dialect.Rebind(`
		INSERT INTO users (id, email, username, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Email, u.UserName, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &u, nil
}

func (r *SQLRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *SQLRepository) FindByUsername(ctx context.Context, userName string) (*models.User, error) {
	return r.findOne(ctx, "username", userName)
}

// FindByID returns common.ErrorNotFound for ids Postgres could never store,
// instead of letting the uuid cast fail as a database error.
func (r *SQLRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if r.dialect == dbx.Postgres {
		if _, err := uuid.Parse(id); err != nil {
			return nil, common.ErrorNotFound
		}
	}
	return r.findOne(ctx, "id", id)
}

// findOne is only called with column names fixed at compile time.
func (r *SQLRepository) findOne(ctx context.Context, column, value string) (*models.User, error) {
	query := r.dialect.Rebind(`
		SELECT id, email, username, password_hash, role, created_at
		FROM users
		WHERE ` + column + ` = ?
	`)

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&user.ID, &user.Email, &user.UserName, &user.PasswordHash, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *SQLRepository) UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error {
	query := r.dialect.Rebind(`
		UPDATE users SET password_hash = ?
		WHERE id = ?
	`)

	res, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
