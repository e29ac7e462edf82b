package downloads

import (
	"context"

	"github.com/dmitrijs2005/eventsnap/internal/logging"
	"github.com/dmitrijs2005/eventsnap/internal/server/fetcher"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
)

// Sizer reports stored object sizes.
type Sizer interface {
	Size(ctx context.Context, key string) (int64, error)
}

// ItemFromMedia builds the fetchable reference of a stored media record.
func ItemFromMedia(allow *fetcher.AllowList, m *models.Media) models.MediaItemRef {
	name := m.FileName
	if name == "" {
		name = m.ID
	}
	return models.MediaItemRef{
		ID:          m.ID,
		RemoteURL:   allow.URL(m.StorageKey),
		DisplayName: name,
		IsVideo:     m.IsVideo,
		SizeBytes:   m.SizeBytes,
	}
}

// ItemsFromMedia converts records in order, asking storage for the size of
// any record that does not carry one. A failed lookup leaves the size at
// zero; the fetch reports the real problem later.
func ItemsFromMedia(ctx context.Context, allow *fetcher.AllowList, sizer Sizer, media []*models.Media, logger logging.Logger) []models.MediaItemRef {
	items := make([]models.MediaItemRef, 0, len(media))
	for _, m := range media {
		it := ItemFromMedia(allow, m)
		if it.SizeBytes <= 0 && sizer != nil {
			n, err := sizer.Size(ctx, m.StorageKey)
			if err != nil {
				logger.Warn(ctx, "size lookup failed", "media_id", m.ID, "error", err)
			} else {
				it.SizeBytes = n
			}
		}
		items = append(items, it)
	}
	return items
}
