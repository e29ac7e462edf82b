package jobs

import (
	"context"
	"errors"
	"fmt"
)

// SweepResult counts what one sweep removed.
type SweepResult struct {
	Jobs    int `json:"jobs"`
	Objects int `json:"objects"`
}

// Sweep deletes the archives and records of every job past its ExpiresAt,
// whatever its status. Archives are removed by the job's storage prefix, so
// objects uploaded but never recorded on the job go too. A job whose
// archives cannot be deleted keeps its record so the next sweep retries it.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	expired, err := m.store.ListExpired(ctx, m.now())
	if err != nil {
		return res, fmt.Errorf("list expired jobs: %w", err)
	}

	var (
		ids  []string
		errs []error
	)
	for _, job := range expired {
		n, err := m.objects.DeletePrefix(ctx, archivePrefix(job.EventID, job.ID))
		res.Objects += n
		if err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", job.ID, err))
			continue
		}
		ids = append(ids, job.ID)
	}

	if len(ids) > 0 {
		if err := m.store.Delete(ctx, ids...); err != nil {
			return res, fmt.Errorf("delete expired jobs: %w", err)
		}
	}
	res.Jobs = len(ids)

	swept.WithLabelValues("jobs").Add(float64(res.Jobs))
	swept.WithLabelValues("objects").Add(float64(res.Objects))
	if res.Jobs > 0 || len(errs) > 0 {
		m.logger.Info(ctx, "sweep finished", "jobs", res.Jobs, "objects", res.Objects, "errors", len(errs))
	}

	return res, errors.Join(errs...)
}
