package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/taskio/internal/dbx"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/assignments"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/categories"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/memberships"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/projects"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/tasks"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code runs
// on a plain connection or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Projects(db dbx.DBTX) projects.Repository
	Memberships(db dbx.DBTX) memberships.Repository
	Categories(db dbx.DBTX) categories.Repository
	Tasks(db dbx.DBTX) tasks.Repository
	Assignments(db dbx.DBTX) assignments.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
