package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/eventsnap/internal/common"
)

// Getter opens the body behind an allow-listed URL.
type Getter interface {
	Get(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// ErrOutsideOrigin marks a URL, or a redirect target, outside the media base URL.
var ErrOutsideOrigin = errors.New("outside the media base url")

const maxRedirects = 10

// HTTPGetter fetches over plain HTTP(S), e.g. from a public CDN in front of the bucket.
type HTTPGetter struct {
	client *http.Client
}

// NewHTTPGetter uses a copy of client whose redirects must stay on allow.
func NewHTTPGetter(client *http.Client, allow *AllowList) *HTTPGetter {
	if client == nil {
		client = http.DefaultClient
	}
	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if !allow.Allowed(req.URL.String()) {
			return fmt.Errorf("redirect to %q: %w", req.URL.Redacted(), ErrOutsideOrigin)
		}
		return nil
	}
	return &HTTPGetter{client: &c}
}

func (g *HTTPGetter) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, common.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// Opener is the read side of the object store.
type Opener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// StorageGetter maps allow-listed URLs back to object keys and reads them
// through the storage client, so no public bucket access is needed.
type StorageGetter struct {
	store Opener
	allow *AllowList
}

func NewStorageGetter(store Opener, allow *AllowList) *StorageGetter {
	return &StorageGetter{store: store, allow: allow}
}

func (g *StorageGetter) Get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	key, ok := g.allow.Key(rawURL)
	if !ok {
		return nil, fmt.Errorf("%q: %w", rawURL, ErrOutsideOrigin)
	}
	return g.store.Open(ctx, key)
}
