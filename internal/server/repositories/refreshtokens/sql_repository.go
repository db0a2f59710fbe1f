package refreshtokens

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

const selectColumns = `id, user_id, token, created_at, expires_at, revoked_at, revoked_by_ip, replaced_by_token`

// SQLRepository implements Repository over dbx.DBTX (satisfied by *sql.DB
// or *sql.Tx). Queries are rebound for the configured dialect.
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
	newID   func() string
}

// NewSQLRepository constructs a repository bound to the given DBTX.
func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, newID: uuid.NewString}
}

// Create inserts a new active refresh token.
func (r *SQLRepository) Create(ctx context.Context, userID string, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	rt := &models.RefreshToken{
		ID:        r.newID(),
		UserID:    userID,
		Token:     token,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}

	query := r.dialect.Rebind(`
		INSERT INTO refresh_tokens (id, user_id, token, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if _, err := r.db.ExecContext(ctx, query, rt.ID, rt.UserID, rt.Token, rt.CreatedAt, rt.ExpiresAt); err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rt, nil
}

// Find returns the refresh token row for the given token string.
// If not found, it returns common.ErrorNotFound.
func (r *SQLRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := r.dialect.Rebind(`
		SELECT ` + selectColumns + `
		FROM refresh_tokens
		WHERE token = ?
	`)

	var (
		rt          models.RefreshToken
		revokedAt   sql.NullTime
		revokedByIP sql.NullString
		replacedBy  sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&rt.ID, &rt.UserID, &rt.Token, &rt.CreatedAt, &rt.ExpiresAt,
		&revokedAt, &revokedByIP, &replacedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if revokedAt.Valid {
		rt.RevokedAt = &revokedAt.Time
	}
	if revokedByIP.Valid {
		rt.RevokedByIP = &revokedByIP.String
	}
	if replacedBy.Valid {
		rt.ReplacedByToken = &replacedBy.String
	}
	return &rt, nil
}

// FindActive applies models.RefreshToken.IsActive to the row found by token.
// The predicate is evaluated here rather than in SQL so both dialects agree
// on timestamp comparison.
func (r *SQLRepository) FindActive(ctx context.Context, token string, now time.Time) (*models.RefreshToken, error) {
	rt, err := r.Find(ctx, token)
	if err != nil {
		return nil, err
	}
	if !rt.IsActive(now) {
		return nil, common.ErrorNotFound
	}
	return rt, nil
}

// Revoke sets revoked_at once. The revoked_at IS NULL guard makes
// concurrent calls converge on a single revocation.
func (r *SQLRepository) Revoke(ctx context.Context, id string, now time.Time, originIP, replacedBy string) (bool, error) {
	query := r.dialect.Rebind(`
		UPDATE refresh_tokens
		SET revoked_at = ?, revoked_by_ip = ?, replaced_by_token = ?
		WHERE id = ? AND revoked_at IS NULL
	`)

	res, err := r.db.ExecContext(ctx, query, now.UTC(), nullString(originIP), nullString(replacedBy), id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
