package downloads

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/eventsnap/internal/common"
	"github.com/dmitrijs2005/eventsnap/internal/logging"
	"github.com/dmitrijs2005/eventsnap/internal/server/fetcher"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
	"github.com/dmitrijs2005/eventsnap/internal/server/repositories/events"
	"github.com/dmitrijs2005/eventsnap/internal/server/repositories/media"
)

const mediaBase = "https://media.example/event-media/"

type fakeEvents struct {
	events.Repository
	byID  map[string]*models.Event
	calls int
}

func (f *fakeEvents) GetByID(ctx context.Context, id string) (*models.Event, error) {
	f.calls++
	e, ok := f.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *e
	return &c, nil
}

type fakeMedia struct {
	media.Repository
	byID map[string]*models.Media
}

func (f *fakeMedia) GetByID(ctx context.Context, id string) (*models.Media, error) {
	m, ok := f.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *m
	return &c, nil
}

// urlGetter serves fixed bodies by URL; URLs listed in slow block until the
// context ends.
type urlGetter struct {
	bodies map[string][]byte
	slow   map[string]bool
}

func (g *urlGetter) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if g.slow[rawURL] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	b, ok := g.bodies[rawURL]
	if !ok {
		return nil, common.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func newFetcher(t *testing.T, g fetcher.Getter) *fetcher.Fetcher {
	t.Helper()
	allow, err := fetcher.NewAllowList(mediaBase)
	require.NoError(t, err)
	return fetcher.New(g, allow, fetcher.Options{Concurrency: 4, Timeout: 50 * time.Millisecond}, logging.Nop())
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, imaging.Encode(buf, imaging.New(w, h, color.NRGBA{255, 255, 255, 255}), imaging.PNG))
	return buf.Bytes()
}

func zipEntries(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = b
	}
	return out
}

func manifestLines(m []byte) []string {
	lines := strings.Split(strings.TrimSpace(string(m)), "\n")
	var out []string
	for _, l := range lines {
		if strings.Contains(l, ": ") {
			out = append(out, l)
		}
	}
	return out
}
