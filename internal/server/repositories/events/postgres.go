package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/eventsnap/internal/common"
	"github.com/dmitrijs2005/eventsnap/internal/dbx"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
)

// PostgresRepository reads the product's events table over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID loads the attributes that decide the package tier. A set,
// non-empty password hash counts as password protection.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT id, name, is_freebie, COALESCE(payment_type, ''), feed_enabled,
		COALESCE(password_hash, '') <> '', watermark_enabled
		FROM events WHERE id = $1`

	e := &models.Event{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&e.ID, &e.Name, &e.IsFreebie, &e.PaymentType, &e.FeedEnabled, &e.PasswordProtected, &e.WatermarkEnabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select event: %w", err)
	}
	return e, nil
}
