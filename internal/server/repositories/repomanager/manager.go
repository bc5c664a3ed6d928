package repomanager

import (
	"context"
	"database/sql"

	"github.com/beesrs/identity/internal/dbx"
	"github.com/beesrs/identity/internal/server/repositories/accounts"
	"github.com/beesrs/identity/internal/server/repositories/directory"
	"github.com/beesrs/identity/internal/server/repositories/profiles"
	"github.com/beesrs/identity/internal/server/repositories/refreshtokens"
	"github.com/beesrs/identity/internal/server/repositories/roles"
	"github.com/beesrs/identity/internal/server/repositories/verificationtokens"
)

// RepositoryManager hands out repositories bound to a DB handle or an open
// transaction, so a use case can run several of them in one unit of work.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Profiles(db dbx.DBTX) profiles.Repository
	Roles(db dbx.DBTX) roles.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	VerificationTokens(db dbx.DBTX) verificationtokens.Repository
	Directory(db dbx.DBTX) directory.Repository
}
