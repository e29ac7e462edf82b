// Package httpapi exposes the download services over HTTP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/eventsnap/internal/logging"
	"github.com/dmitrijs2005/eventsnap/internal/netx"
)

type Services struct {
	Bulk     BulkBuilder
	Jobs     JobService
	Resolver MediaResolver
}

// Options configure client identification.
type Options struct {
	// Secret verifies bearer tokens.
	Secret []byte
	// TrustedProxies may set X-Forwarded-For; nil trusts nobody.
	TrustedProxies *netx.Proxies
}

// NewRouter mounts every route. Clients are identified for rate limiting
// per opts.
func NewRouter(svc Services, opts Options, logger logging.Logger) http.Handler {
	logger = logger.With("module", "http")
	h := &handler{bulk: svc.Bulk, jobs: svc.Jobs, resolver: svc.Resolver, logger: logger}

	r := chi.NewRouter()
	r.Use(requestID, accessLog(logger), metrics, middleware.Recoverer)

	r.Get("/health/live", live)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(identity(opts, logger))

		r.Post("/archives", h.createArchive)
		r.Post("/events/{eventID}/download-jobs", h.createJob)
		r.Get("/download-jobs/{jobID}", h.getJob)
		r.Get("/events/{eventID}/media/{photoID}/download", h.downloadMedia)
	})

	r.Post("/internal/maintenance/sweep", h.sweep)

	return r
}
