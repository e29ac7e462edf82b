package jobs

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/eventsnap/internal/dbx"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
	"github.com/dmitrijs2005/eventsnap/internal/server/repositories/repomanager"
)

// PostgresStore keeps one row per job. Updates carry the version they were
// read at, so a stale writer gets common.ErrVersionConflict instead of
// overwriting newer state.
type PostgresStore struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewPostgresStore(db *sql.DB, rm repomanager.RepositoryManager) *PostgresStore {
	return &PostgresStore{db: db, repomanager: rm}
}

func (s *PostgresStore) Create(ctx context.Context, job *models.Job) error {
	return s.repomanager.Jobs(s.db).Create(ctx, job)
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Job, error) {
	return s.repomanager.Jobs(s.db).Get(ctx, id)
}

func (s *PostgresStore) Update(ctx context.Context, job *models.Job) error {
	return s.repomanager.Jobs(s.db).Update(ctx, job)
}

func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time) ([]*models.Job, error) {
	return s.repomanager.Jobs(s.db).ListExpired(ctx, now)
}

// Delete removes all ids in one transaction.
func (s *PostgresStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Jobs(tx)
		for _, id := range ids {
			if err := repo.Delete(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}
