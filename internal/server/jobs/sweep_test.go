package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/eventsnap/internal/common"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
	"github.com/dmitrijs2005/eventsnap/internal/server/storage"
)

type failingDeletes struct {
	storage.ObjectStore
	prefix string
}

func (f *failingDeletes) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == f.prefix {
		return 0, errors.New("access denied")
	}
	return f.ObjectStore.DeletePrefix(ctx, prefix)
}

// seedJob stores a job of ev-1 with one recorded archive per file name.
func seedJob(t *testing.T, f *fixture, id string, status models.JobStatus, expires time.Time, files ...string) {
	t.Helper()
	job := &models.Job{ID: id, EventID: "ev-1", Status: status, ExpiresAt: expires}
	for _, name := range files {
		k := archivePrefix("ev-1", id) + name
		f.objects.Put(k, []byte("zip"))
		job.Archives = append(job.Archives, models.ArchiveRef{Key: k, FileName: name})
	}
	require.NoError(t, f.store.Create(context.Background(), job))
}

// archiveKeys lists the stored objects under archives/.
func archiveKeys(f *fixture) []string {
	var out []string
	for _, k := range f.objects.Keys() {
		if strings.HasPrefix(k, "archives/") {
			out = append(out, k)
		}
	}
	return out
}

func TestSweep_RemovesExpiredJobsAndArchives(t *testing.T) {
	f := newFixture(t)
	m := f.manager(nil, 0)
	now := time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	seedJob(t, f, "old-complete", models.JobComplete, now.Add(-time.Hour), "1.zip", "2.zip")
	seedJob(t, f, "old-failed", models.JobFailed, now.Add(-time.Minute), "1.zip")
	seedJob(t, f, "old-processing", models.JobProcessing, now)
	f.objects.Put("archives/ev-1/old-processing/unrecorded.zip", []byte("zip"))
	seedJob(t, f, "fresh", models.JobComplete, now.Add(time.Hour), "1.zip")

	res, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Jobs: 3, Objects: 4}, res)

	for _, id := range []string{"old-complete", "old-failed", "old-processing"} {
		_, err := m.Get(context.Background(), id)
		assert.ErrorIs(t, err, common.ErrNotFound, id)
	}
	_, err = m.Get(context.Background(), "fresh")
	assert.NoError(t, err)
	assert.Equal(t, []string{"archives/ev-1/fresh/1.zip"}, archiveKeys(f))
}

func TestSweep_KeepsJobWhenArchiveDeleteFails(t *testing.T) {
	f := newFixture(t)
	objects := &failingDeletes{ObjectStore: f.objects, prefix: "archives/ev-1/stuck/"}
	m := f.manager(objects, 0)
	now := time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	seedJob(t, f, "stuck", models.JobComplete, now.Add(-time.Hour), "1.zip")
	seedJob(t, f, "ok", models.JobComplete, now.Add(-time.Hour), "1.zip")

	res, err := m.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.Equal(t, SweepResult{Jobs: 1, Objects: 1}, res)

	_, err = m.Get(context.Background(), "stuck")
	assert.NoError(t, err, "retried on the next sweep")
	_, err = m.Get(context.Background(), "ok")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, []string{"archives/ev-1/stuck/1.zip"}, archiveKeys(f))
}

func TestSweep_NothingExpired(t *testing.T) {
	f := newFixture(t)
	m := f.manager(nil, 0)
	now := time.Now()
	seedJob(t, f, "fresh", models.JobPending, now.Add(time.Hour))

	res, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res)
}

// unsignable uploads normally but cannot presign.
type unsignable struct {
	storage.ObjectStore
}

func (u *unsignable) SignedURL(ctx context.Context, key string, ttl time.Duration, name string) (string, time.Time, error) {
	return "", time.Time{}, fmt.Errorf("presign %q: %w", key, common.ErrStorage)
}

func TestSweep_RemovesArchiveWhoseSigningFailed(t *testing.T) {
	f := newFixture(t)
	f.addMedia("ev-1", 10, 10)
	m := f.manager(&unsignable{ObjectStore: f.objects}, 0)
	now := time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	job, err := m.Create(context.Background(), "ev-1")
	require.NoError(t, err)
	require.ErrorIs(t, m.Process(context.Background(), job.ID), common.ErrStorage)

	got, err := m.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, got.Status)
	require.Len(t, got.Archives, 1, "uploaded archive is recorded before signing")
	assert.Empty(t, got.Archives[0].URL)
	require.Len(t, archiveKeys(f), 1)

	now = now.Add(48 * time.Hour)
	res, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Jobs: 1, Objects: 1}, res)
	assert.Empty(t, archiveKeys(f))
}

// sweepingUploads calls before ahead of every upload with its 1-based index.
type sweepingUploads struct {
	storage.ObjectStore
	before  func(n int)
	uploads int
}

func (s *sweepingUploads) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	s.uploads++
	s.before(s.uploads)
	return s.ObjectStore.Upload(ctx, key, data, contentType)
}

func TestProcess_JobSweptMidRunLeavesNoArchives(t *testing.T) {
	f := newFixture(t)
	f.addMedia("ev-1", 10, 10, 10, 10)
	objects := &sweepingUploads{ObjectStore: f.objects}
	m := f.manager(objects, 20)
	now := time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	objects.before = func(n int) {
		if n != 2 {
			return
		}
		now = now.Add(48 * time.Hour)
		res, err := m.Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, SweepResult{Jobs: 1, Objects: 1}, res)
	}

	job, err := m.Create(context.Background(), "ev-1")
	require.NoError(t, err)

	err = m.Process(context.Background(), job.ID)
	require.ErrorIs(t, err, errJobRemoved)
	assert.Equal(t, 2, objects.uploads)

	_, err = m.Get(context.Background(), job.ID)
	assert.ErrorIs(t, err, common.ErrNotFound, "the failure is not written back")
	assert.Empty(t, archiveKeys(f), "the archive uploaded after the sweep is deleted by the run")
}
