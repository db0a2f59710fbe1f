// Package cli implements authctl, a small operator tool that talks to the
// auth service over gRPC: it registers accounts, opens and refreshes
// sessions, revokes refresh tokens and inspects access tokens.
package cli
