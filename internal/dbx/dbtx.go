// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// a helper to run functions inside a transaction, placeholder dialects
// and driver-independent constraint error detection.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxError is a failure of the transaction itself, at BEGIN or COMMIT, as
// opposed to an error returned by the function run inside it.
type TxError struct {
	Op  string
	Err error
}

func (e *TxError) Error() string { return "tx " + e.Op + ": " + e.Err.Error() }
func (e *TxError) Unwrap() error { return e.Err }

// WithTx runs fn inside a transaction. fn's error rolls back and is returned
// unchanged; a panic rolls back and propagates. BEGIN and COMMIT failures
// come back as *TxError.
//
// Once Commit returns nil the work is durable; cancelling ctx afterwards
// does not undo it.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return &TxError{Op: "begin", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = &TxError{Op: "commit", Err: cerr}
		}
	}()

	return fn(ctx, tx)
}
