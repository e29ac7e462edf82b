// Package storage is the object-storage collaborator of the download
// pipeline: it reads guest uploads, writes produced archives, issues
// time-limited signed links and deletes expired objects.
package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the storage contract the pipeline consumes.
type ObjectStore interface {
	// Open streams the object stored at key. Missing objects yield common.ErrNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	// SignedURL returns a GET link valid for ttl. A non-empty downloadName is
	// sent back as an attachment Content-Disposition.
	SignedURL(ctx context.Context, key string, ttl time.Duration, downloadName string) (string, time.Time, error)
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every object whose key starts with prefix and
	// reports how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// Size reports the stored length of key without reading it.
	Size(ctx context.Context, key string) (int64, error)
}
