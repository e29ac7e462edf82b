// Package downloads turns media references into deliverables: zip archives
// for bulk requests and, per item, either a signed link or watermarked bytes.
package downloads

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/eventsnap/internal/logging"
	"github.com/dmitrijs2005/eventsnap/internal/server/archive"
	"github.com/dmitrijs2005/eventsnap/internal/server/fetcher"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
	"github.com/dmitrijs2005/eventsnap/internal/server/tier"
	"github.com/dmitrijs2005/eventsnap/internal/server/watermark"
)

// Failure reasons added on top of the fetcher's.
const (
	ReasonWatermarkUnsupported = "watermark unsupported"
	ReasonWatermarkFailed      = "watermark failed"
)

// Fetcher retrieves a batch of items, one outcome per item in input order.
type Fetcher interface {
	FetchAll(ctx context.Context, items []models.MediaItemRef, onDone func(fetcher.Outcome)) []fetcher.Outcome
}

// Rewriter is the watermark engine.
type Rewriter interface {
	Capability(kind watermark.Kind) watermark.Capability
	Rewrite(data []byte, kind watermark.Kind, pkg tier.PackageType) (*watermark.Rewritten, error)
}

// PackageOptions tune one Package call.
type PackageOptions struct {
	// Rule, when set, is the event's watermark rule applied to every fetched item.
	Rule *tier.Rule
	// MaxBytes caps the summed size of the included media. Zero disables it.
	MaxBytes int64
	// OnItem is called once per fetched item, serialized.
	OnItem func(fetcher.Outcome)
}

// Pipeline fetches a batch, applies the watermark policy and builds one archive.
type Pipeline struct {
	fetcher     Fetcher
	rewriter    Rewriter
	concurrency int
	logger      logging.Logger
}

func NewPipeline(f Fetcher, r Rewriter, concurrency int, logger logging.Logger) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		fetcher:     f,
		rewriter:    r,
		concurrency: concurrency,
		logger:      logger.With("module", "pipeline"),
	}
}

// Package runs the whole batch. Per-item problems end up in the manifest;
// only an unbuildable archive is an error.
func (p *Pipeline) Package(ctx context.Context, items []models.MediaItemRef, opts PackageOptions) (*archive.Result, error) {
	outcomes := p.fetcher.FetchAll(ctx, items, opts.OnItem)

	if opts.Rule != nil && opts.Rule.Watermark() {
		outcomes = p.applyPolicy(ctx, outcomes, *opts.Rule)
	}

	res, err := archive.Build(outcomes, opts.MaxBytes)
	if err != nil {
		ok, failed := fetcher.Count(outcomes)
		p.logger.Warn(ctx, "archive not built", "items", len(items), "ok", ok, "failed", failed, "error", err)
		return nil, err
	}
	return res, nil
}

// applyPolicy rewrites every successful outcome in place. Media the engine
// cannot handle is dropped unless the rule lets originals through.
func (p *Pipeline) applyPolicy(ctx context.Context, outcomes []fetcher.Outcome, rule tier.Rule) []fetcher.Outcome {
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i := range outcomes {
		o := outcomes[i]
		if !o.OK() {
			continue
		}
		g.Go(func() error {
			outcomes[i] = p.rewrite(ctx, o, rule)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (p *Pipeline) rewrite(ctx context.Context, o fetcher.Outcome, rule tier.Rule) fetcher.Outcome {
	kind := watermark.KindOf(o.Item.IsVideo)
	if p.rewriter.Capability(kind) == watermark.Unsupported {
		if rule.AllowOriginalFallback() {
			return o
		}
		return fetcher.Failure(o.Item, ReasonWatermarkUnsupported)
	}

	out, err := p.rewriter.Rewrite(o.Data, kind, rule.Package)
	if err != nil {
		p.logger.Warn(ctx, "watermark failed", "media_id", o.Item.ID, "error", err)
		return fetcher.Failure(o.Item, ReasonWatermarkFailed)
	}
	return fetcher.Success(o.Item, out.Data)
}
