package repomanager

import (
	"context"
	"database/sql"

	"github.com/sparkly-dev/sparkly-server/internal/dbx"
	"github.com/sparkly-dev/sparkly-server/internal/server/repositories/refreshtokens"
	"github.com/sparkly-dev/sparkly-server/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
