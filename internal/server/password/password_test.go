package password

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func fastParams() Params {
	return Params{MemoryKiB: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestHashAndVerify(t *testing.T) {
	h := NewArgon2id(fastParams(), 2)
	ctx := context.Background()

	digest, err := h.Hash(ctx, "Secret123!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "$argon2id$v=19$m=1024,t=1,p=1$"))

	res, err := h.Verify(ctx, digest, "Secret123!")
	require.NoError(t, err)
	assert.Equal(t, Match, res)

	res, err = h.Verify(ctx, digest, "wrong")
	require.NoError(t, err, "mismatch is a result, not an error")
	assert.Equal(t, Mismatch, res)
	assert.False(t, res.Ok())
}

func TestHash_Salted(t *testing.T) {
	h := NewArgon2id(fastParams(), 0)
	a, err := h.Hash(context.Background(), "same")
	require.NoError(t, err)
	b, err := h.Hash(context.Background(), "same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHash_Empty(t *testing.T) {
	_, err := NewArgon2id(fastParams(), 0).Hash(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyPassword)
}

func TestVerify_WeakerParamsNeedRehash(t *testing.T) {
	old := NewArgon2id(fastParams(), 0)
	digest, err := old.Hash(context.Background(), "pw-123456")
	require.NoError(t, err)

	stronger := fastParams()
	stronger.Iterations = 2
	res, err := NewArgon2id(stronger, 0).Verify(context.Background(), digest, "pw-123456")
	require.NoError(t, err)
	assert.Equal(t, NeedsRehash, res)
	assert.True(t, res.Ok())
}

func TestVerify_LegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	h := NewArgon2id(fastParams(), 0)

	res, err := h.Verify(context.Background(), string(legacy), "hunter22")
	require.NoError(t, err)
	assert.Equal(t, NeedsRehash, res)

	res, err = h.Verify(context.Background(), string(legacy), "hunter23")
	require.NoError(t, err)
	assert.Equal(t, Mismatch, res)
}

func TestVerify_LegacyBcryptLongInputIsMismatch(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	h := NewArgon2id(fastParams(), 0)
	for _, pw := range []string{strings.Repeat("x", 73), "hunter22" + strings.Repeat("!", 100)} {
		res, err := h.Verify(context.Background(), string(legacy), pw)
		require.NoError(t, err, "a long password is a wrong password, not a broken digest")
		assert.Equal(t, Mismatch, res)
	}
}

func TestVerify_ParallelismIndependentOfHost(t *testing.T) {
	wide := fastParams()
	wide.Parallelism = 4
	digest, err := NewArgon2id(wide, 0).Hash(context.Background(), "Secret123!")
	require.NoError(t, err)
	assert.Contains(t, digest, ",p=4$")

	narrow := NewArgon2id(fastParams(), 0)
	res, err := narrow.Verify(context.Background(), digest, "Secret123!")
	require.NoError(t, err)
	assert.True(t, res.Ok(), "got %s", res)

	res, err = narrow.Verify(context.Background(), digest, "Secret123?")
	require.NoError(t, err)
	assert.Equal(t, Mismatch, res)
}

func TestVerify_RefusesExcessiveParallelism(t *testing.T) {
	lanes := fastParams()
	lanes.Parallelism = maxParallelism + 1
	digest, err := NewArgon2id(lanes, 0).Hash(context.Background(), "pw")
	require.NoError(t, err)

	_, err = NewArgon2id(fastParams(), 0).Verify(context.Background(), digest, "pw")
	require.ErrorIs(t, err, ErrInvalidHash)
}

func TestDefaultParams_FixedParallelism(t *testing.T) {
	assert.Equal(t, uint8(2), DefaultParams().Parallelism)
}

func TestVerify_Malformed(t *testing.T) {
	h := NewArgon2id(fastParams(), 0)
	bad := []string{
		"",
		"plain",
		"$argon2i$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$aGFzaA",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdHNhbHQ$aGFzaA",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdHNhbHQ$aGFzaA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA",
		"$2b$04$short",
	}
	for _, d := range bad {
		res, err := h.Verify(context.Background(), d, "pw")
		assert.ErrorIs(t, err, ErrInvalidHash, "digest %q", d)
		assert.Equal(t, Mismatch, res)
	}
}

func TestVerify_RefusesOversizedCost(t *testing.T) {
	big := fastParams()
	big.MemoryKiB = 64 * 1024
	digest, err := NewArgon2id(big, 0).Hash(context.Background(), "pw")
	require.NoError(t, err)

	_, err = NewArgon2id(fastParams(), 0).Verify(context.Background(), digest, "pw")
	require.ErrorIs(t, err, ErrInvalidHash)
}

func TestLimiter_RespectsContext(t *testing.T) {
	h := NewArgon2id(fastParams(), 1)

	release, err := h.acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = h.Hash(ctx, "pw")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentVerify(t *testing.T) {
	h := NewArgon2id(fastParams(), 2)
	digest, err := h.Hash(context.Background(), "pw")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.Verify(context.Background(), digest, "pw")
			if err == nil && res != Match {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "match", Match.String())
	assert.Equal(t, "mismatch", Mismatch.String())
	assert.Equal(t, "needs_rehash", NeedsRehash.String())
}
