// Package common defines sentinel errors shared by the packaging pipeline,
// the job manager and the HTTP layer. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")

	// Request validation (bad or missing input, oversized batch request).
	ErrValidation = errors.New("validation error")

	// Archive assembly errors.
	ErrAssembly          = errors.New("archive assembly failed")
	ErrNoSuccessfulItems = fmt.Errorf("%w: no items could be retrieved", ErrAssembly)
	ErrTotalSizeExceeded = fmt.Errorf("%w: total size exceeds the archive ceiling", ErrAssembly)

	// Watermarking is mandatory but the media kind cannot be rewritten.
	ErrWatermarkUnsupported = errors.New("watermarking is not supported for this media")

	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// A single stored file is larger than the service will process.
	ErrFileTooLarge = errors.New("file too large")

	// Failures reported by the object storage collaborator.
	ErrStorage = errors.New("storage error")

	// Job lifecycle errors.
	ErrInvalidTransition = errors.New("invalid job state transition")
)
