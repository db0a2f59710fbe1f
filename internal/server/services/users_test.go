package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sparkly-dev/sparkly-server/internal/common"
	"github.com/sparkly-dev/sparkly-server/internal/logging"
	"github.com/sparkly-dev/sparkly-server/internal/server/metrics"
	"github.com/sparkly-dev/sparkly-server/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(users *fakeUsersRepo, h *fakeHasher) *UserService {
	return NewUserService(nil, &fakeRepoManager{u: users, r: newFakeRefreshRepo()}, h, logging.Nop{}, metrics.New(prometheus.NewRegistry()))
}

func TestRegister_Success(t *testing.T) {
	users := newFakeUsersRepo()
	s := newUserService(users, &fakeHasher{})

	u, err := s.Register(context.Background(), " alice ", "Alice@X.com", "Secret123!")
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.UserName)
	assert.Equal(t, "alice@x.com", u.Email)
	assert.Equal(t, common.DefaultRole, u.Role)
	assert.Equal(t, "plain:Secret123!", u.PasswordHash)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name, user, email, pass string
		field                   string
	}{
		{"no username", "", "a@x.com", "Secret123!", "username"},
		{"username with at", "a@b", "a@x.com", "Secret123!", "username"},
		{"bad email", "alice", "not-an-email", "Secret123!", "email"},
		{"short password", "alice", "a@x.com", "12345", "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newFakeUsersRepo()
			s := newUserService(users, &fakeHasher{})

			_, err := s.Register(context.Background(), tt.user, tt.email, tt.pass)
			require.ErrorIs(t, err, common.ErrorValidation)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
			assert.Equal(t, 0, users.lookups)
		})
	}
}

func TestRegister_Duplicates(t *testing.T) {
	existing := &models.User{ID: "u-1", Email: "alice@x.com", UserName: "alice"}

	for name, in := range map[string][2]string{
		"same email":    {"alice2", "alice@x.com"},
		"same username": {"alice", "other@x.com"},
	} {
		t.Run(name, func(t *testing.T) {
			s := newUserService(newFakeUsersRepo(existing), &fakeHasher{})
			_, err := s.Register(context.Background(), in[0], in[1], "Secret123!")
			assert.ErrorIs(t, err, common.ErrorAlreadyExists)
		})
	}
}

func TestRegister_RaceOnUniqueConstraint(t *testing.T) {
	users := newFakeUsersRepo()
	users.createFn = func(*models.User) error { return common.ErrorAlreadyExists }
	s := newUserService(users, &fakeHasher{})

	_, err := s.Register(context.Background(), "alice", "alice@x.com", "Secret123!")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestRegister_StoreDown(t *testing.T) {
	users := newFakeUsersRepo()
	users.err = errDBDown
	s := newUserService(users, &fakeHasher{})

	_, err := s.Register(context.Background(), "alice", "alice@x.com", "Secret123!")
	assert.ErrorIs(t, err, common.ErrPersistence)
}

func TestRegister_HashFailure(t *testing.T) {
	s := newUserService(newFakeUsersRepo(), &fakeHasher{hashErr: errors.New("slot wait cancelled")})

	_, err := s.Register(context.Background(), "alice", "alice@x.com", "Secret123!")
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrPersistence))
}

func TestUserDirectory(t *testing.T) {
	s := newUserService(newFakeUsersRepo(alice()), &fakeHasher{})
	ctx := context.Background()

	u, err := s.FindByID(ctx, "u-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UserName)

	u, err = s.FindByEmail(ctx, " Alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u-alice", u.ID)

	u, err = s.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "u-alice", u.ID)

	_, err = s.FindByID(ctx, "nobody")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	down := newFakeUsersRepo()
	down.err = errDBDown
	_, err = newUserService(down, &fakeHasher{}).FindByID(ctx, "u-alice")
	assert.ErrorIs(t, err, common.ErrPersistence)
}
