package models

import "time"

// User is the identity record owned by the user directory. PasswordHash
// holds an encoded digest, never the plaintext.
type User struct {
	ID           string
	Email        string
	UserName     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}
