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
	"github.com/sparkly-dev/sparkly-server/internal/dbx"
	"github.com/sparkly-dev/sparkly-server/internal/server/models"
	"github.com/sparkly-dev/sparkly-server/internal/server/password"
	refreshtokensrepo "github.com/sparkly-dev/sparkly-server/internal/server/repositories/refreshtokens"
	usersrepo "github.com/sparkly-dev/sparkly-server/internal/server/repositories/users"
)

// ---- users ----

type fakeUsersRepo struct {
	mu       sync.Mutex
	byID     map[string]*models.User
	err      error // returned by every call when set
	updErr   error
	lookups  int
	updated  map[string]string
	createFn func(*models.User) error
}

func newFakeUsersRepo(users ...*models.User) *fakeUsersRepo {
	r := &fakeUsersRepo{byID: map[string]*models.User{}, updated: map[string]string{}}
	for _, u := range users {
		r.byID[u.ID] = u
	}
	return r
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.createFn != nil {
		if err := f.createFn(u); err != nil {
			return nil, err
		}
	}
	c := *u
	c.ID = fmt.Sprintf("u-%d", len(f.byID)+1)
	c.CreatedAt = time.Now()
	f.byID[c.ID] = &c
	return &c, nil
}

func (f *fakeUsersRepo) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.byID {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsersRepo) FindByUsername(ctx context.Context, name string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.UserName == name })
}

func (f *fakeUsersRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUsersRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updErr != nil {
		return f.updErr
	}
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	f.updated[id] = hash
	return nil
}

// ---- refresh tokens ----

type fakeRefreshRepo struct {
	mu        sync.Mutex
	byToken   map[string]*models.RefreshToken
	findErr   error
	createErr error
	revokeErr error
	revokes   int
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{byToken: map[string]*models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	rt := &models.RefreshToken{
		ID:        fmt.Sprintf("rt-%d", len(f.byToken)+1),
		UserID:    userID,
		Token:     token,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	f.byToken[token] = rt
	c := *rt
	return &c, nil
}

func (f *fakeRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	rt, ok := f.byToken[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *rt
	return &c, nil
}

func (f *fakeRefreshRepo) FindActive(ctx context.Context, token string, now time.Time) (*models.RefreshToken, error) {
	rt, err := f.Find(ctx, token)
	if err != nil {
		return nil, err
	}
	if !rt.IsActive(now) {
		return nil, common.ErrorNotFound
	}
	return rt, nil
}

func (f *fakeRefreshRepo) Revoke(ctx context.Context, id string, now time.Time, ip, replacedBy string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revokeErr != nil {
		return false, f.revokeErr
	}
	for k, rt := range f.byToken {
		if rt.ID != id {
			continue
		}
		if rt.IsRevoked() {
			return false, nil
		}
		r := *rt
		at := now
		r.RevokedAt = &at
		if ip != "" {
			r.RevokedByIP = &ip
		}
		if replacedBy != "" {
			r.ReplacedByToken = &replacedBy
		}
		f.byToken[k] = &r
		f.revokes++
		return true, nil
	}
	return false, nil
}

func (f *fakeRefreshRepo) record(token string) *models.RefreshToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byToken[token]
}

// ---- manager ----

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }

// ---- hasher ----

// fakeHasher stores "plain:<password>" digests. Digests starting with
// "legacy:" verify as NeedsRehash.
type fakeHasher struct {
	hashErr  error
	verifies int
	mu       sync.Mutex
}

func (h *fakeHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "plain:" + plaintext, nil
}

func (h *fakeHasher) Verify(ctx context.Context, digest, plaintext string) (password.Result, error) {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()

	switch {
	case digest == "garbage":
		return password.Mismatch, password.ErrInvalidHash
	case strings.HasPrefix(digest, "legacy:"):
		if strings.TrimPrefix(digest, "legacy:") == plaintext {
			return password.NeedsRehash, nil
		}
	case digest == "plain:"+plaintext:
		return password.Match, nil
	}
	return password.Mismatch, nil
}

// ---- tokens ----

type fakeTokens struct {
	mu        sync.Mutex
	n         int
	accessErr error
	secretErr error
}

func (f *fakeTokens) IssueAccessToken(u *models.User) (string, time.Time, error) {
	if f.accessErr != nil {
		return "", time.Time{}, f.accessErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("access-%s-%d", u.ID, f.n), time.Now().Add(15 * time.Minute), nil
}

func (f *fakeTokens) IssueRefreshSecret() (string, error) {
	if f.secretErr != nil {
		return "", f.secretErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("secret-%d", f.n), nil
}

var errDBDown = errors.New("db error: connection refused")
