// Package models defines the server-side data models: metadata read from the
// product database and the records owned by the download pipeline.
package models

import "time"

// MediaItemRef identifies one piece of guest-uploaded media for the length
// of a fetch or archive operation.
type MediaItemRef struct {
	ID          string
	RemoteURL   string
	DisplayName string
	IsVideo     bool
	// SizeBytes is the stored object size when known, 0 otherwise.
	SizeBytes int64
}

// Media is a guest upload as recorded in the metadata store.
type Media struct {
	ID          string
	EventID     string
	StorageKey  string
	FileName    string
	ContentType string
	SizeBytes   int64
	IsVideo     bool
	CreatedAt   time.Time
}
