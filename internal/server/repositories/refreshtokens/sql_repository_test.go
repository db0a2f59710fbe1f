package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sparkly-dev/sparkly-server/internal/common"
	"github.com/sparkly-dev/sparkly-server/internal/dbx"
)

var columns = []string{"id", "user_id", "token", "created_at", "expires_at", "revoked_at", "revoked_by_ip", "replaced_by_token"}

const (
	insertQ = `(?s)^\s*INSERT\s+INTO\s+refresh_tokens\s+\(id,\s*user_id,\s*token,\s*created_at,\s*expires_at\)\s+VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*$`
	selectQ = `(?s)^\s*SELECT\s+id,\s*user_id,\s*token,.*FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s*$`
	revokeQ = `(?s)^\s*UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*\$1,\s*revoked_by_ip\s*=\s*\$2,\s*replaced_by_token\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$4\s+AND\s+revoked_at\s+IS\s+NULL\s*$`
)

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	repo := NewSQLRepository(db, dbx.Postgres)
	repo.newID = func() string { return "rt-1" }
	return repo, mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expires := time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(insertQ).
		WithArgs("rt-1", "u1", "tok123", sqlmock.AnyArg(), expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := repo.Create(context.Background(), "u1", "tok123", expires)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "rt-1" || got.UserID != "u1" || got.Token != "tok123" || !got.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.RevokedAt != nil {
		t.Fatalf("new record must be active")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQ).
		WithArgs("rt-1", "u1", "tok123", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), "u1", "tok123", time.Now().Add(time.Hour))
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestCreate_DuplicateToken(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQ).
		WithArgs("rt-1", "u1", "tok123", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), "u1", "tok123", time.Now().Add(time.Hour))
	if !errors.Is(err, common.ErrorAlreadyExists) {
		t.Fatalf("want common.ErrorAlreadyExists, got %v", err)
	}
}

func TestFind_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := created.Add(7 * 24 * time.Hour)
	revoked := created.Add(time.Hour)

	rows := sqlmock.NewRows(columns).
		AddRow("rt-1", "u1", "tok123", created, expires, revoked, "10.0.0.1", "tok456")

	mock.ExpectQuery(selectQ).
		WithArgs("tok123").
		WillReturnRows(rows)

	got, err := repo.Find(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "rt-1" || got.UserID != "u1" || !got.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.RevokedAt == nil || !got.RevokedAt.Equal(revoked) {
		t.Fatalf("revoked_at not mapped: %+v", got.RevokedAt)
	}
	if got.RevokedByIP == nil || *got.RevokedByIP != "10.0.0.1" {
		t.Fatalf("revoked_by_ip not mapped")
	}
	if got.ReplacedByToken == nil || *got.ReplacedByToken != "tok456" {
		t.Fatalf("replaced_by_token not mapped")
	}
}

func TestFind_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQ).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFind_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQ).
		WithArgs("tok123").
		WillReturnError(errors.New("db err"))

	_, err := repo.Find(context.Background(), "tok123")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	if errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("a failing store must not look like a missing token")
	}
}

func TestFindActive(t *testing.T) {
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	revoked := now.Add(-time.Minute)

	tests := []struct {
		name      string
		expires   time.Time
		revokedAt any
		wantErr   error
	}{
		{"active", now.Add(time.Hour), nil, nil},
		{"expired", now.Add(-time.Second), nil, common.ErrorNotFound},
		{"revoked", now.Add(time.Hour), revoked, common.ErrorNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			rows := sqlmock.NewRows(columns).
				AddRow("rt-1", "u1", "tok123", now.Add(-time.Hour), tt.expires, tt.revokedAt, nil, nil)
			mock.ExpectQuery(selectQ).WithArgs("tok123").WillReturnRows(rows)

			got, err := repo.FindActive(context.Background(), "tok123", now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("want %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && got.ID != "rt-1" {
				t.Fatalf("unexpected record: %+v", got)
			}
		})
	}
}

func TestRevoke(t *testing.T) {
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"first revocation", 1, true},
		{"already revoked", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectExec(revokeQ).
				WithArgs(now, "10.0.0.1", nil, "rt-1").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.Revoke(context.Background(), "rt-1", now, "10.0.0.1", "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("want %v, got %v", tt.want, got)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestRevoke_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(revokeQ).
		WithArgs(sqlmock.AnyArg(), nil, "next", "rt-1").
		WillReturnError(errors.New("db err"))

	_, err := repo.Revoke(context.Background(), "rt-1", time.Now(), "", "next")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestSQLiteDialectKeepsPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()
	repo := NewSQLRepository(db, dbx.SQLite)

	mock.ExpectQuery(`(?s)FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\?\s*$`).
		WithArgs("tok").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.Find(context.Background(), "tok"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}
