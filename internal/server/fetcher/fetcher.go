package fetcher

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/eventsnap/internal/common"
	"github.com/dmitrijs2005/eventsnap/internal/logging"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
)

// Options bound a single FetchAll call.
type Options struct {
	// Concurrency is the number of fetches allowed in flight at once (min 1).
	Concurrency int
	// Timeout boxes each fetch individually. Zero means no per-item timeout.
	Timeout time.Duration
	// MaxFileBytes rejects any single item larger than this. Zero disables the check.
	MaxFileBytes int64
}

type Fetcher struct {
	getter Getter
	allow  *AllowList
	opts   Options
	logger logging.Logger
}

func New(getter Getter, allow *AllowList, opts Options, logger logging.Logger) *Fetcher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Fetcher{
		getter: getter,
		allow:  allow,
		opts:   opts,
		logger: logger.With("module", "fetcher"),
	}
}

// FetchAll retrieves every item and returns one outcome per item at the
// item's index. New fetches start as soon as a slot frees up. onDone, if not
// nil, is called once per finished item; calls are serialized.
func (f *Fetcher) FetchAll(ctx context.Context, items []models.MediaItemRef, onDone func(Outcome)) []Outcome {
	out := make([]Outcome, len(items))

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(f.opts.Concurrency)

	for i, item := range items {
		g.Go(func() error {
			o := f.fetchOne(ctx, item)
			out[i] = o
			observeOutcome(o)
			if onDone != nil {
				mu.Lock()
				onDone(o)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	ok, failed := Count(out)
	f.logger.Debug(ctx, "batch fetched", "items", len(items), "ok", ok, "failed", failed)

	return out
}

func (f *Fetcher) fetchOne(ctx context.Context, item models.MediaItemRef) Outcome {
	if !f.allow.Allowed(item.RemoteURL) {
		return Failure(item, ReasonInvalidSource)
	}

	itemCtx := ctx
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	data, err := f.read(itemCtx, item.RemoteURL)
	fetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := f.classify(itemCtx, err)
		f.logger.Warn(ctx, "fetch failed", "media_id", item.ID, "reason", reason, "error", err)
		return Failure(item, reason)
	}
	if f.opts.MaxFileBytes > 0 && int64(len(data)) > f.opts.MaxFileBytes {
		return Failure(item, ReasonTooLarge)
	}
	return Success(item, data)
}

func (f *Fetcher) read(ctx context.Context, rawURL string) ([]byte, error) {
	rc, err := f.getter.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if f.opts.MaxFileBytes > 0 {
		r = io.LimitReader(rc, f.opts.MaxFileBytes+1)
	}
	return io.ReadAll(r)
}

func (f *Fetcher) classify(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, ErrOutsideOrigin):
		return ReasonInvalidSource
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		return ReasonCancelled
	case errors.Is(err, common.ErrNotFound):
		return ReasonNotFound
	default:
		return ReasonTransport
	}
}
