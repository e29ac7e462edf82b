package archive

import "github.com/dmitrijs2005/eventsnap/internal/server/models"

// Partition groups items, in order, into batches whose summed SizeBytes stay
// within maxBytes. An item is appended to the current batch unless that
// would cross the ceiling and the batch already holds something; an item
// larger than the ceiling therefore sits alone. A non-positive maxBytes
// yields a single batch.
func Partition(items []models.MediaItemRef, maxBytes int64) [][]models.MediaItemRef {
	if len(items) == 0 {
		return nil
	}
	if maxBytes <= 0 {
		return [][]models.MediaItemRef{append([]models.MediaItemRef(nil), items...)}
	}

	var (
		batches [][]models.MediaItemRef
		current []models.MediaItemRef
		size    int64
	)
	for _, it := range items {
		if len(current) > 0 && size+it.SizeBytes > maxBytes {
			batches = append(batches, current)
			current, size = nil, 0
		}
		current = append(current, it)
		size += it.SizeBytes
	}
	return append(batches, current)
}

// TotalSize sums SizeBytes.
func TotalSize(items []models.MediaItemRef) int64 {
	var n int64
	for _, it := range items {
		n += it.SizeBytes
	}
	return n
}
