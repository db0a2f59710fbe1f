package common

import (
	"crypto/rand"
	"encoding/base64"
)

// MakeRandBase64String reads size bytes from the system CSPRNG and returns
// them in standard base64 encoding. The result length is 4*ceil(size/3).
func MakeRandBase64String(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// WipeByteArray zeroes b in place. Used for plaintext passwords read from a terminal.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
