package models

import "time"

// JobStatus is the lifecycle state of a bulk download job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobComplete   JobStatus = "complete"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobComplete || s == JobFailed
}

// ArchiveRef points at one archive produced by a job and the time-limited
// URL handed to the client.
type ArchiveRef struct {
	Key         string    `json:"key"`
	FileName    string    `json:"fileName"`
	SizeBytes   int64     `json:"sizeBytes"`
	ItemCount   int       `json:"itemCount"`
	FailedCount int       `json:"failedCount"`
	URL         string    `json:"url"`
	URLExpires  time.Time `json:"urlExpiresAt"`
}

// Job is a long-running "archive the whole event" request.
type Job struct {
	ID             string       `json:"id"`
	EventID        string       `json:"eventId"`
	Status         JobStatus    `json:"status"`
	Progress       int          `json:"progress"`
	TotalFiles     int          `json:"totalFiles"`
	ProcessedFiles int          `json:"processedFiles"`
	Archives       []ArchiveRef `json:"archives"`
	Error          string       `json:"error,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	ExpiresAt      time.Time    `json:"expiresAt"`

	// Version supports optimistic concurrency in persisted stores.
	Version int64 `json:"-"`
}

// Clone returns a deep copy so callers never share the Archives slice.
func (j *Job) Clone() *Job {
	c := *j
	c.Archives = append([]ArchiveRef(nil), j.Archives...)
	return &c
}
