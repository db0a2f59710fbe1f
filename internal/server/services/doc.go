// Package services contains server-side business logic: credential checks,
// the user directory with registration, and the session lifecycle of
// login, refresh and logout.
package services
