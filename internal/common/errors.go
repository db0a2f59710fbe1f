// Package common defines shared constants and sentinel errors used across
// the server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Input validation.
	ErrorValidation = errors.New("validation error")

	// Authentication outcomes. The messages are what end users get to see,
	// so they must not reveal which part of a credential was wrong.
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	// Access token failed signature, expiry or claim checks.
	ErrInvalidToken = errors.New("invalid token")

	// Infrastructure failures, kept apart from authentication outcomes.
	ErrConfiguration = errors.New("configuration error")
	ErrPersistence   = errors.New("persistence failure")
)
