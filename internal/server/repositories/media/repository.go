package media

import (
	"context"

	"github.com/dmitrijs2005/eventsnap/internal/server/models"
)

// Repository reads guest media records.
type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Media, error)
	ListByEvent(ctx context.Context, eventID string) ([]*models.Media, error)
}
