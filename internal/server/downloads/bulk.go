package downloads

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/eventsnap/internal/common"
	"github.com/dmitrijs2005/eventsnap/internal/logging"
	"github.com/dmitrijs2005/eventsnap/internal/server/archive"
	"github.com/dmitrijs2005/eventsnap/internal/server/models"
	"github.com/dmitrijs2005/eventsnap/internal/server/ratelimit"
	"github.com/dmitrijs2005/eventsnap/internal/server/repositories/events"
	"github.com/dmitrijs2005/eventsnap/internal/server/tier"
)

// Limiter gates operations per client key.
type Limiter interface {
	Allow(key string) ratelimit.Decision
}

// Packager builds one archive from a batch of items.
type Packager interface {
	Package(ctx context.Context, items []models.MediaItemRef, opts PackageOptions) (*archive.Result, error)
}

type BulkItem struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// BulkRequest asks for one archive built synchronously. EventID is optional;
// when present the event's watermark rule is applied.
type BulkRequest struct {
	FileName string     `json:"filename"`
	EventID  string     `json:"eventId,omitempty"`
	Items    []BulkItem `json:"items"`
}

type BulkResult struct {
	FileName string
	Data     []byte
	Included int
	Failed   int
}

type BulkConfig struct {
	MaxItems        int
	MaxArchiveBytes int64
}

// BulkService serves the synchronous archive endpoint.
type BulkService struct {
	packager Packager
	events   events.Repository
	limiter  Limiter
	cfg      BulkConfig
	logger   logging.Logger
}

func NewBulkService(p Packager, ev events.Repository, l Limiter, cfg BulkConfig, logger logging.Logger) *BulkService {
	return &BulkService{
		packager: p,
		events:   ev,
		limiter:  l,
		cfg:      cfg,
		logger:   logger.With("module", "bulk"),
	}
}

// Build validates req, charges the client's quota and builds the archive.
func (s *BulkService) Build(ctx context.Context, client string, req BulkRequest) (*BulkResult, error) {
	items, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Allow(client).Err(); err != nil {
		return nil, err
	}

	opts := PackageOptions{MaxBytes: s.cfg.MaxArchiveBytes}
	if req.EventID != "" {
		ev, err := s.events.GetByID(ctx, req.EventID)
		if err != nil {
			return nil, fmt.Errorf("load event: %w", err)
		}
		rule := tier.RuleFor(*ev)
		opts.Rule = &rule
	}

	res, err := s.packager.Package(ctx, items, opts)
	if err != nil {
		return nil, err
	}

	name := archive.ArchiveFileName(req.FileName)
	s.logger.Info(ctx, "bulk archive built", "file", name, "included", res.Included, "failed", res.Failed, "bytes", len(res.Data))

	return &BulkResult{FileName: name, Data: res.Data, Included: res.Included, Failed: res.Failed}, nil
}

func (s *BulkService) validate(req BulkRequest) ([]models.MediaItemRef, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: items are required", common.ErrValidation)
	}
	if s.cfg.MaxItems > 0 && len(req.Items) > s.cfg.MaxItems {
		return nil, fmt.Errorf("%w: at most %d items per request, got %d", common.ErrValidation, s.cfg.MaxItems, len(req.Items))
	}

	items := make([]models.MediaItemRef, 0, len(req.Items))
	for i, it := range req.Items {
		if strings.TrimSpace(it.ID) == "" || strings.TrimSpace(it.URL) == "" {
			return nil, fmt.Errorf("%w: item %d needs id and url", common.ErrValidation, i)
		}
		name := it.Title
		if name == "" {
			name = it.ID
		}
		items = append(items, models.MediaItemRef{ID: it.ID, RemoteURL: it.URL, DisplayName: name})
	}
	return items, nil
}
