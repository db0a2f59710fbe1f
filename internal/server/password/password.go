package password

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// argon2.Version is 0x13.
const argon2Version = 19

var (
	// ErrInvalidHash is returned for digests that cannot be parsed or carry
	// parameters far outside the configured ones.
	ErrInvalidHash = errors.New("invalid password hash")

	// ErrEmptyPassword is returned by Hash for an empty plaintext.
	ErrEmptyPassword = errors.New("empty password")
)

// Result is the outcome of comparing a plaintext with a stored digest.
type Result int

const (
	Mismatch Result = iota
	Match
	// NeedsRehash means the password is correct but the digest was produced
	// with an older algorithm or weaker parameters.
	NeedsRehash
)

func (r Result) String() string {
	switch r {
	case Match:
		return "match"
	case NeedsRehash:
		return "needs_rehash"
	default:
		return "mismatch"
	}
}

// Ok is true for Match and NeedsRehash.
func (r Result) Ok() bool {
	return r == Match || r == NeedsRehash
}

// Hasher turns passwords into digests and checks them. A mismatch is a
// Result, not an error. ctx only bounds the wait for a hashing slot.
type Hasher interface {
	Hash(ctx context.Context, plaintext string) (string, error)
	Verify(ctx context.Context, digest, plaintext string) (Result, error)
}

// Params controls Argon2id cost. MemoryKiB is in KiB as argon2.IDKey expects.
type Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// maxParallelism caps the lane count accepted from a stored digest. It does
// not depend on the local CPU count, since every instance reads the same rows.
const maxParallelism = 16

const bcryptMaxInput = 72

// DefaultParams is the interactive-login baseline: 64 MiB, 3 passes, 2 lanes.
// The lane count is fixed so digests verify the same on every host.
func DefaultParams() Params {
	return Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2id implements Hasher. Argon2id is memory hungry, so the number of
// hashes computed at once is capped by a weighted semaphore.
type Argon2id struct {
	params Params
	slots  *semaphore.Weighted
}

// NewArgon2id returns a hasher using params. maxConcurrent < 1 means no cap.
func NewArgon2id(params Params, maxConcurrent int) *Argon2id {
	h := &Argon2id{params: params}
	if maxConcurrent > 0 {
		h.slots = semaphore.NewWeighted(int64(maxConcurrent))
	}
	return h
}

func (h *Argon2id) acquire(ctx context.Context) (func(), error) {
	if h.slots == nil {
		return func() {}, nil
	}
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { h.slots.Release(1) }, nil
}

// Hash returns a fresh salted digest of plaintext.
func (h *Argon2id) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	release, err := h.acquire(ctx)
	if err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plaintext), salt, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.params.KeyLength)
	release()

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Verify compares plaintext with digest in constant time.
func (h *Argon2id) Verify(ctx context.Context, digest, plaintext string) (Result, error) {
	if isBcrypt(digest) {
		return h.verifyBcrypt(ctx, digest, plaintext)
	}

	params, salt, expected, err := decode(digest)
	if err != nil {
		return Mismatch, err
	}
	if !withinReasonableBounds(params, h.params) {
		return Mismatch, ErrInvalidHash
	}

	release, err := h.acquire(ctx)
	if err != nil {
		return Mismatch, err
	}
	key := argon2.IDKey([]byte(plaintext), salt, params.Iterations, params.MemoryKiB, params.Parallelism, uint32(len(expected))) // #nosec G115 -- bounded by decode
	release()

	if subtle.ConstantTimeCompare(key, expected) != 1 {
		return Mismatch, nil
	}
	if weaker(params, h.params) {
		return NeedsRehash, nil
	}
	return Match, nil
}

func (h *Argon2id) verifyBcrypt(ctx context.Context, digest, plaintext string) (Result, error) {
	// bcrypt only ever hashed the first 72 bytes, so a longer input cannot
	// be the password that produced digest.
	if len(plaintext) > bcryptMaxInput {
		return Mismatch, nil
	}

	release, err := h.acquire(ctx)
	if err != nil {
		return Mismatch, err
	}
	defer release()

	err = bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	switch {
	case err == nil:
		return NeedsRehash, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return Mismatch, nil
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return Mismatch, nil
	default:
		return Mismatch, ErrInvalidHash
	}
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") || strings.HasPrefix(digest, "$2b$") || strings.HasPrefix(digest, "$2y$")
}

func weaker(got, want Params) bool {
	return got.MemoryKiB < want.MemoryKiB ||
		got.Iterations < want.Iterations ||
		got.KeyLength < want.KeyLength ||
		got.SaltLength < want.SaltLength
}

// withinReasonableBounds refuses digests whose cost is far above ours, so a
// tampered row cannot make a single login burn unbounded memory.
func withinReasonableBounds(got, limits Params) bool {
	if got.MemoryKiB > limits.MemoryKiB*2 {
		return false
	}
	if got.Iterations > limits.Iterations*2 {
		return false
	}
	if got.Parallelism > maxParallelism {
		return false
	}
	if got.SaltLength < 8 || got.SaltLength > 64 {
		return false
	}
	if got.KeyLength < 16 || got.KeyLength > 128 {
		return false
	}
	return true
}

func decode(encoded string) (Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2Version) {
		return Params{}, nil, nil, ErrInvalidHash
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Params{}, nil, nil, ErrInvalidHash
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}
	hash, err := b64.DecodeString(parts[5])
	if err != nil {
		return Params{}, nil, nil, ErrInvalidHash
	}

	return Params{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),        // #nosec G115 -- checked above
		SaltLength:  uint32(len(salt)), // #nosec G115 -- base64 input length bounds it
		KeyLength:   uint32(len(hash)), // #nosec G115 -- base64 input length bounds it
	}, salt, hash, nil
}
