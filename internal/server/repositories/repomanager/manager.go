package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/eventsnap/internal/dbx"
	"github.com/dmitrijs2005/eventsnap/internal/server/repositories/events"
	"github.com/dmitrijs2005/eventsnap/internal/server/repositories/jobs"
	"github.com/dmitrijs2005/eventsnap/internal/server/repositories/media"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Events(db dbx.DBTX) events.Repository
	Media(db dbx.DBTX) media.Repository
	Jobs(db dbx.DBTX) jobs.Repository
}
