package downloads

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/eventsnap/internal/common"
	"github.com/dmitrijs2005/eventsnap/internal/logging"
	"github.com/dmitrijs2005/eventsnap/internal/server/archive"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
	"github.com/dmitrijs2005/eventsnap/internal/server/repositories/events"
	"github.com/dmitrijs2005/eventsnap/internal/server/repositories/media"
	"github.com/dmitrijs2005/eventsnap/internal/server/tier"
	"github.com/dmitrijs2005/eventsnap/internal/server/watermark"
)

// Mode is the shape of a single-item response.
type Mode string

const (
	ModeSignedURL Mode = "signed_url"
	ModeRewritten Mode = "rewritten"
)

// Resolution is either a signed link (URL, ExpiresAt) or rewritten bytes
// (Data, ContentType). Never both.
type Resolution struct {
	Mode        Mode
	URL         string
	ExpiresAt   time.Time
	Data        []byte
	ContentType string
	FileName    string
}

// Objects is the storage subset the resolver needs.
type Objects interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration, downloadName string) (string, time.Time, error)
}

type ResolverConfig struct {
	SignedURLTTL time.Duration
	MaxFileBytes int64
}

// Resolver decides, per item, between a signed link and a watermarked copy.
type Resolver struct {
	events   events.Repository
	media    media.Repository
	objects  Objects
	rewriter Rewriter
	limiter  Limiter
	cfg      ResolverConfig
	logger   logging.Logger
}

func NewResolver(ev events.Repository, md media.Repository, objects Objects, rw Rewriter, l Limiter, cfg ResolverConfig, logger logging.Logger) *Resolver {
	return &Resolver{
		events:   ev,
		media:    md,
		objects:  objects,
		rewriter: rw,
		limiter:  l,
		cfg:      cfg,
		logger:   logger.With("module", "resolver"),
	}
}

// Resolve charges the client's quota first, so rejected clients never reach
// storage. Premium events without watermarking get a signed link; every
// other rule gets rewritten bytes. Media the engine cannot rewrite falls
// back to a link only where the rule allows originals out.
func (r *Resolver) Resolve(ctx context.Context, client, eventID, mediaID string) (*Resolution, error) {
	if err := r.limiter.Allow(client).Err(); err != nil {
		resolutions.WithLabelValues("rate_limited").Inc()
		return nil, err
	}

	ev, err := r.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	rule := tier.RuleFor(*ev)

	m, err := r.media.GetByID(ctx, mediaID)
	if err != nil {
		return nil, fmt.Errorf("load media: %w", err)
	}
	if m.EventID != ev.ID {
		return nil, fmt.Errorf("media %s in event %s: %w", mediaID, eventID, common.ErrNotFound)
	}

	name := archive.EntryName(m.FileName, m.ID)

	if !rule.Watermark() {
		return r.signed(ctx, m, name)
	}

	kind := watermark.KindOf(m.IsVideo)
	if r.rewriter.Capability(kind) == watermark.Unsupported {
		if rule.AllowOriginalFallback() {
			return r.signed(ctx, m, name)
		}
		resolutions.WithLabelValues("unsupported").Inc()
		return nil, common.ErrWatermarkUnsupported
	}

	data, err := r.read(ctx, m.StorageKey)
	if err != nil {
		return nil, err
	}

	out, err := r.rewriter.Rewrite(data, kind, rule.Package)
	if err != nil {
		return nil, fmt.Errorf("watermark media %s: %w", m.ID, err)
	}

	resolutions.WithLabelValues(string(ModeRewritten)).Inc()
	r.logger.Debug(ctx, "media rewritten", "media_id", m.ID, "package", rule.Package, "bytes", len(out.Data))

	return &Resolution{Mode: ModeRewritten, Data: out.Data, ContentType: out.ContentType, FileName: name}, nil
}

func (r *Resolver) signed(ctx context.Context, m *models.Media, name string) (*Resolution, error) {
	url, expires, err := r.objects.SignedURL(ctx, m.StorageKey, r.cfg.SignedURLTTL, name)
	if err != nil {
		return nil, err
	}
	resolutions.WithLabelValues(string(ModeSignedURL)).Inc()
	return &Resolution{Mode: ModeSignedURL, URL: url, ExpiresAt: expires, FileName: name}, nil
}

func (r *Resolver) read(ctx context.Context, key string) ([]byte, error) {
	rc, err := r.objects.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var src io.Reader = rc
	if r.cfg.MaxFileBytes > 0 {
		src = io.LimitReader(rc, r.cfg.MaxFileBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w: %w", key, common.ErrStorage, err)
	}
	if r.cfg.MaxFileBytes > 0 && int64(len(data)) > r.cfg.MaxFileBytes {
		return nil, fmt.Errorf("%w: %q exceeds %d bytes", common.ErrFileTooLarge, key, r.cfg.MaxFileBytes)
	}
	return data, nil
}
