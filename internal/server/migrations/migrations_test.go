package migrations

import (
	"io/fs"
	"testing"

	"github.com/sparkly-dev/sparkly-server/internal/dbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	for _, d := range []dbx.Dialect{dbx.Postgres, dbx.SQLite} {
		fsys, err := For(d)
		require.NoError(t, err)

		names, err := fs.Glob(fsys, "*.sql")
		require.NoError(t, err)
		assert.Equal(t, []string{"00001_create_users.sql", "00002_create_refresh_tokens.sql"}, names, "dialect %s", d)
	}

	_, err := For(dbx.Dialect("mysql"))
	assert.Error(t, err)
}
