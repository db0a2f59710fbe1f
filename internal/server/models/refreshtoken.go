package models

import "time"

// RefreshToken is a persisted refresh credential. Token is the opaque bearer
// secret handed to the client; it is unique across all records.
//
// A record starts Active and ends either Revoked (RevokedAt set) or Expired
// (now past ExpiresAt). Neither terminal state is ever left.
type RefreshToken struct {
	ID              string
	UserID          string
	Token           string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	RevokedAt       *time.Time
	RevokedByIP     *string
	ReplacedByToken *string
}

// IsRevoked reports whether the record carries a revocation timestamp.
func (t RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActive is true while the record is neither revoked nor past its expiry.
func (t RefreshToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && !now.After(t.ExpiresAt)
}
