// Package migrations embeds the goose schema migrations for every
// supported database dialect.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/sparkly-dev/sparkly-server/internal/dbx"
)

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS

// For returns the migration files for d rooted at ".".
func For(d dbx.Dialect) (fs.FS, error) {
	switch d {
	case dbx.Postgres:
		return fs.Sub(Migrations, "postgres")
	case dbx.SQLite:
		return fs.Sub(Migrations, "sqlite")
	default:
		return nil, fmt.Errorf("no migrations for dialect %q", d)
	}
}
