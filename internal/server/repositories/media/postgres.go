package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/eventsnap/internal/common"
	"github.com/dmitrijs2005/eventsnap/internal/dbx"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
)

const columns = `id, event_id, storage_key, COALESCE(file_name, ''), COALESCE(content_type, ''),
	COALESCE(size_bytes, 0), is_video, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMedia(s scanner) (*models.Media, error) {
	m := &models.Media{}
	if err := s.Scan(&m.ID, &m.EventID, &m.StorageKey, &m.FileName, &m.ContentType, &m.SizeBytes, &m.IsVideo, &m.CreatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Media, error) {
	query := `SELECT ` + columns + ` FROM media WHERE id = $1`

	m, err := scanMedia(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select media: %w", err)
	}
	return m, nil
}

// ListByEvent returns the event's media in upload order. Archive entries and
// batches follow this order.
func (r *PostgresRepository) ListByEvent(ctx context.Context, eventID string) ([]*models.Media, error) {
	query := `SELECT ` + columns + ` FROM media WHERE event_id = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to select media: %w", err)
	}
	defer rows.Close()

	var result []*models.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
