package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/eventsnap/internal/common"
	"github.com/dmitrijs2005/eventsnap/internal/logging"
	"github.com/dmitrijs2005/eventsnap/internal/server/archive"
	"github.com/dmitrijs2005/eventsnap/internal/server/downloads"
	"github.com/dmitrijs2005/eventsnap/internal/server/fetcher"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
	"github.com/dmitrijs2005/eventsnap/internal/server/repositories/events"
	"github.com/dmitrijs2005/eventsnap/internal/server/repositories/media"
	"github.com/dmitrijs2005/eventsnap/internal/server/storage"
	"github.com/dmitrijs2005/eventsnap/internal/server/tier"
)

// Share of a batch's progress earned by fetching; the rest comes with the upload.
const fetchShare = 0.9

type Config struct {
	MaxArchiveBytes int64
	SignedURLTTL    time.Duration
	JobTTL          time.Duration
}

// Manager creates jobs, drives each one through a single processing pass
// and purges expired jobs on request.
type Manager struct {
	store    Store
	events   events.Repository
	media    media.Repository
	packager downloads.Packager
	objects  storage.ObjectStore
	allow    *fetcher.AllowList
	cfg      Config
	logger   logging.Logger

	now   func() time.Time
	newID func() string

	wg sync.WaitGroup
}

func NewManager(store Store, ev events.Repository, md media.Repository, p downloads.Packager,
	objects storage.ObjectStore, allow *fetcher.AllowList, cfg Config, logger logging.Logger) *Manager {
	return &Manager{
		store:    store,
		events:   ev,
		media:    md,
		packager: p,
		objects:  objects,
		allow:    allow,
		cfg:      cfg,
		logger:   logger.With("module", "jobs"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Create records a pending job for an existing event.
func (m *Manager) Create(ctx context.Context, eventID string) (*models.Job, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, fmt.Errorf("%w: event id is required", common.ErrValidation)
	}
	if _, err := m.events.GetByID(ctx, eventID); err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}

	now := m.now().UTC()
	job := &models.Job{
		ID:        m.newID(),
		EventID:   eventID,
		Status:    models.JobPending,
		Archives:  []models.ArchiveRef{},
		CreatedAt: now,
		ExpiresAt: now.Add(m.cfg.JobTTL),
	}
	if err := m.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	transitions.WithLabelValues(string(models.JobPending)).Inc()
	m.logger.Info(ctx, "job created", "job_id", job.ID, "event_id", eventID)
	return job, nil
}

// Submit creates a job and processes it in the background. Processing is
// detached from ctx: a job cannot be cancelled once submitted.
func (m *Manager) Submit(ctx context.Context, eventID string) (*models.Job, error) {
	job, err := m.Create(ctx, eventID)
	if err != nil {
		return nil, err
	}

	bg := context.WithoutCancel(ctx)
	id := job.ID
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.Process(bg, id); err != nil {
			m.logger.Error(bg, "job failed", "job_id", id, "error", err)
		}
	}()
	return job, nil
}

// Wait blocks until every job started by Submit has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) Get(ctx context.Context, id string) (*models.Job, error) {
	return m.store.Get(ctx, id)
}

// errJobRemoved reports that the job record vanished mid-run, which only
// happens when the sweep deleted it.
var errJobRemoved = errors.New("job record removed")

// Process runs the single processing pass of a pending job. Jobs in any
// other state are rejected with common.ErrInvalidTransition. Once the job is
// processing, any error moves it to failed; archives already uploaded are
// recorded on the job and stay until the sweep removes them. If the sweep
// removes the record first, the run deletes whatever it uploaded.
func (m *Manager) Process(ctx context.Context, id string) error {
	job, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != models.JobPending {
		return fmt.Errorf("%w: job %s is %s", common.ErrInvalidTransition, id, job.Status)
	}

	job.Status = models.JobProcessing
	if err := m.store.Update(ctx, job); err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			return fmt.Errorf("%w: job %s was picked up concurrently", common.ErrInvalidTransition, id)
		}
		return fmt.Errorf("start job: %w", err)
	}
	transitions.WithLabelValues(string(models.JobProcessing)).Inc()
	inFlight.Inc()
	defer inFlight.Dec()

	start := m.now()
	if err := m.run(ctx, job); err != nil {
		if errors.Is(err, errJobRemoved) {
			m.discard(ctx, job)
			return err
		}
		job.Status = models.JobFailed
		job.Error = err.Error()
		if uerr := m.store.Update(ctx, job); uerr != nil {
			m.logger.Error(ctx, "could not record job failure", "job_id", id, "error", uerr)
		}
		transitions.WithLabelValues(string(models.JobFailed)).Inc()
		return err
	}

	job.Status = models.JobComplete
	job.Progress = 100
	if err := m.save(ctx, job); err != nil {
		if errors.Is(err, errJobRemoved) {
			m.discard(ctx, job)
		}
		return fmt.Errorf("complete job: %w", err)
	}
	transitions.WithLabelValues(string(models.JobComplete)).Inc()
	jobDuration.Observe(m.now().Sub(start).Seconds())
	m.logger.Info(ctx, "job complete", "job_id", id, "archives", len(job.Archives), "files", job.TotalFiles)
	return nil
}

// save writes job and maps a vanished record to errJobRemoved. The Postgres
// store reports a deleted row as a version conflict, so a conflict is
// confirmed with a lookup.
func (m *Manager) save(ctx context.Context, job *models.Job) error {
	err := m.store.Update(ctx, job)
	if err == nil {
		return nil
	}
	if errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("update job: %w", errJobRemoved)
	}
	if errors.Is(err, common.ErrVersionConflict) {
		if _, gerr := m.store.Get(ctx, job.ID); errors.Is(gerr, common.ErrNotFound) {
			return fmt.Errorf("update job: %w", errJobRemoved)
		}
	}
	return fmt.Errorf("update job: %w", err)
}

// discard removes every archive uploaded for a job whose record is gone.
func (m *Manager) discard(ctx context.Context, job *models.Job) {
	prefix := archivePrefix(job.EventID, job.ID)
	n, err := m.objects.DeletePrefix(ctx, prefix)
	if err != nil {
		m.logger.Error(ctx, "could not delete archives of removed job", "job_id", job.ID, "prefix", prefix, "error", err)
		return
	}
	m.logger.Warn(ctx, "job removed while processing", "job_id", job.ID, "deleted", n)
}

func (m *Manager) run(ctx context.Context, job *models.Job) error {
	ev, err := m.events.GetByID(ctx, job.EventID)
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}
	rule := tier.RuleFor(*ev)

	records, err := m.media.ListByEvent(ctx, job.EventID)
	if err != nil {
		return fmt.Errorf("load media: %w", err)
	}
	items := downloads.ItemsFromMedia(ctx, m.allow, m.objects, records, m.logger)

	batches := archive.Partition(items, m.cfg.MaxArchiveBytes)
	job.TotalFiles = len(items)
	if err := m.save(ctx, job); err != nil {
		return err
	}

	base := archiveBase(ev)
	for i, batch := range batches {
		if err := m.runBatch(ctx, job, rule, base, i, len(batches), batch); err != nil {
			return fmt.Errorf("batch %d of %d: %w", i+1, len(batches), err)
		}

		job.Progress = max(job.Progress, computeProgress(i+1, len(batches), 0, 0))
		if err := m.save(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// runBatch fetches, packages, uploads and signs one batch, appending its
// archive to job. The archive is recorded before signing so a signing
// failure never leaves an unreferenced object. Batches run one after
// another; only fetches inside a batch overlap.
func (m *Manager) runBatch(ctx context.Context, job *models.Job, rule tier.Rule,
	base string, index, total int, batch []models.MediaItemRef) error {
	done := 0
	onItem := func(fetcher.Outcome) {
		done++
		job.ProcessedFiles++
		p := computeProgress(index, total, done, len(batch))
		if p <= job.Progress {
			return
		}
		job.Progress = p
		if err := m.store.Update(ctx, job); err != nil {
			m.logger.Warn(ctx, "progress not saved", "job_id", job.ID, "error", err)
		}
	}

	res, err := m.packager.Package(ctx, batch, downloads.PackageOptions{Rule: &rule, OnItem: onItem})
	if err != nil {
		return err
	}

	fileName := fmt.Sprintf("%s-part-%d.zip", base, index+1)
	key := archivePrefix(job.EventID, job.ID) + fileName
	if err := m.objects.Upload(ctx, key, res.Data, "application/zip"); err != nil {
		return fmt.Errorf("upload archive: %w", err)
	}

	job.Archives = append(job.Archives, models.ArchiveRef{
		Key:         key,
		FileName:    fileName,
		SizeBytes:   int64(len(res.Data)),
		ItemCount:   res.Included,
		FailedCount: res.Failed,
	})
	if err := m.save(ctx, job); err != nil {
		return err
	}
	m.logger.Info(ctx, "archive uploaded", "job_id", job.ID, "key", key, "bytes", len(res.Data),
		"included", res.Included, "failed", res.Failed)

	url, expires, err := m.objects.SignedURL(ctx, key, m.cfg.SignedURLTTL, fileName)
	if err != nil {
		return fmt.Errorf("sign archive url: %w", err)
	}
	ref := &job.Archives[len(job.Archives)-1]
	ref.URL = url
	ref.URLExpires = expires
	return nil
}

// computeProgress maps completed batches plus the fetched share of the
// active batch to 0..99. Only the final transition reports 100.
func computeProgress(batchIndex, batches, doneInBatch, batchLen int) int {
	if batches <= 0 {
		return 0
	}
	frac := float64(batchIndex)
	if batchLen > 0 {
		frac += fetchShare * float64(doneInBatch) / float64(batchLen)
	}
	p := int(frac * 100 / float64(batches))
	return min(max(p, 0), 99)
}

// archivePrefix is the storage prefix holding every archive of one job.
func archivePrefix(eventID, jobID string) string {
	return fmt.Sprintf("archives/%s/%s/", eventID, jobID)
}

func archiveBase(ev *models.Event) string {
	base := strings.TrimSuffix(archive.SanitizeName(ev.Name), ".zip")
	if base == "" {
		base = "event-" + archive.SanitizeName(ev.ID)
	}
	return base
}
