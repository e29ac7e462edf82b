// Package fetcher retrieves batches of remote media under a sliding window of
// concurrent requests. Every submitted item yields exactly one Outcome, in
// input order; per-item failures are values, not errors.
package fetcher

import "github.com/dmitrijs2005/eventsnap/internal/server/models"

// Failure reasons recorded in Outcome.Reason.
const (
	ReasonTimeout       = "timeout"
	ReasonInvalidSource = "invalid source"
	ReasonTooLarge      = "file too large"
	ReasonNotFound      = "not found"
	ReasonTransport     = "transport error"
	ReasonCancelled     = "cancelled"
)

// Outcome is the result of fetching one item: a success carrying Data, or a
// failure carrying Reason.
type Outcome struct {
	Item      models.MediaItemRef
	Data      []byte
	SizeBytes int64
	Reason    string
}

func (o Outcome) OK() bool {
	return o.Reason == ""
}

// Success builds a successful outcome.
func Success(item models.MediaItemRef, data []byte) Outcome {
	return Outcome{Item: item, Data: data, SizeBytes: int64(len(data))}
}

// Failure builds a failed outcome with the given reason.
func Failure(item models.MediaItemRef, reason string) Outcome {
	return Outcome{Item: item, Reason: reason}
}

// Count returns the number of successes and failures in outcomes.
func Count(outcomes []Outcome) (ok, failed int) {
	for _, o := range outcomes {
		if o.OK() {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}
