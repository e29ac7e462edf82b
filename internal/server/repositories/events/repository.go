package events

import (
	"context"

	"github.com/dmitrijs2005/eventsnap/internal/server/models"
)

// Repository reads event attributes. The pipeline never writes events.
type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Event, error)
}
