package models

import "time"

// Session is what a successful login or refresh hands back to the client.
type Session struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}
