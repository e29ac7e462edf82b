package logging

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Logger = (*SlogLogger)(nil)

// entries decodes one JSON object per line.
func entries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var e map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e), sc.Text())
		out = append(out, e)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestJSONLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, slog.LevelInfo)
	ctx := context.Background()

	log.Debug(ctx, "batch fetched", "items", 12)
	log.Info(ctx, "job created", "job_id", "j-1", "event_id", "ev-1")
	log.Warn(ctx, "fetch failed", "media_id", "m-7", "reason", "timeout")
	log.Error(ctx, "job failed", "job_id", "j-1", "error", "disk full")

	got := entries(t, &buf)
	require.Len(t, got, 3, "debug is below the configured level")

	assert.Equal(t, "INFO", got[0]["level"])
	assert.Equal(t, "job created", got[0]["msg"])
	assert.Equal(t, "ev-1", got[0]["event_id"])

	assert.Equal(t, "WARN", got[1]["level"])
	assert.Equal(t, "timeout", got[1]["reason"])

	assert.Equal(t, "ERROR", got[2]["level"])
	assert.Equal(t, "disk full", got[2]["error"])
}

func TestSlogLogger_WithScopesModule(t *testing.T) {
	var buf bytes.Buffer
	root := NewJSONLogger(&buf, slog.LevelDebug)
	jobs := root.With("module", "jobs")
	job := jobs.With("job_id", "j-9")

	job.Info(context.Background(), "archive uploaded", "key", "archives/ev-1/j-9/a-part-1.zip", "bytes", 2048)
	root.Debug(context.Background(), "sweep finished", "jobs", 0)

	got := entries(t, &buf)
	require.Len(t, got, 2)

	assert.Equal(t, "jobs", got[0]["module"])
	assert.Equal(t, "j-9", got[0]["job_id"])
	assert.Equal(t, "archives/ev-1/j-9/a-part-1.zip", got[0]["key"])
	assert.EqualValues(t, 2048, got[0]["bytes"])

	assert.NotContains(t, got[1], "module", "With does not leak into the parent")
	assert.Equal(t, "DEBUG", got[1]["level"])
}

func TestNop_Discards(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		ctx := context.TODO()
		log.Debug(ctx, "dropped")
		log.With("module", "http").Error(ctx, "dropped", "status", 500)
	})
}
