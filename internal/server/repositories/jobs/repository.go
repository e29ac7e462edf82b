package jobs

import (
	"context"
	"time"

	"github.com/dmitrijs2005/eventsnap/internal/server/models"
)

// Repository persists download jobs, one row per job, guarded by an
// optimistic version counter.
type Repository interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	Update(ctx context.Context, job *models.Job) error
	ListExpired(ctx context.Context, now time.Time) ([]*models.Job, error)
	Delete(ctx context.Context, id string) error
}
