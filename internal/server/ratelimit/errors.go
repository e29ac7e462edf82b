package ratelimit

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/eventsnap/internal/common"
)

// ExceededError is returned to callers that were rejected. It matches
// common.ErrRateLimitExceeded under errors.Is.
type ExceededError struct {
	Limit      int
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("%s: %d per window, retry in %s", common.ErrRateLimitExceeded, e.Limit, e.RetryAfter.Round(time.Second))
}

func (e *ExceededError) Unwrap() error {
	return common.ErrRateLimitExceeded
}

// Err is nil for allowed decisions and an *ExceededError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &ExceededError{Limit: d.Limit, RetryAfter: d.RetryAfter}
}
