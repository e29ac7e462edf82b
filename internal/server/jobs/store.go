// Package jobs runs "archive the whole event" requests in the background and
// tracks them through pending, processing and a terminal state.
package jobs

import (
	"context"
	"time"

	"github.com/dmitrijs2005/eventsnap/internal/server/models"
)

// Store keeps job records. Implementations return common.ErrNotFound for
// unknown ids.
type Store interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	Update(ctx context.Context, job *models.Job) error
	// ListExpired returns jobs whose ExpiresAt is not after now, in any status.
	ListExpired(ctx context.Context, now time.Time) ([]*models.Job, error)
	Delete(ctx context.Context, ids ...string) error
}
