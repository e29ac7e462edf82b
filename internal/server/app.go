// Package server wires the download service together: metadata store, object
// storage, fetch and packaging pipelines, job manager and the HTTP API. It
// also owns the in-process sweep ticker and graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/eventsnap/internal/logging"
	"github.com/dmitrijs2005/eventsnap/internal/netx"
	"github.com/dmitrijs2005/eventsnap/internal/server/config"
	"github.com/dmitrijs2005/eventsnap/internal/server/downloads"
	"github.com/dmitrijs2005/eventsnap/internal/server/fetcher"
	"github.com/dmitrijs2005/eventsnap/internal/server/httpapi"
	"github.com/dmitrijs2005/eventsnap/internal/server/jobs"
	"github.com/dmitrijs2005/eventsnap/internal/server/ratelimit"
	"github.com/dmitrijs2005/eventsnap/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/eventsnap/internal/server/storage"
	"github.com/dmitrijs2005/eventsnap/internal/server/watermark"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	manager *jobs.Manager
	handler http.Handler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	objects, err := storage.NewS3Store(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	allow, err := fetcher.NewAllowList(c.MediaBaseURL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("media base url: %w", err)
	}

	proxies, err := netx.ParseProxies(c.TrustedProxies)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var store jobs.Store
	switch c.JobStore {
	case config.JobStoreMemory:
		store = jobs.NewMemoryStore()
	case config.JobStorePostgres:
		store = jobs.NewPostgresStore(db, rm)
	default:
		_ = db.Close()
		return nil, fmt.Errorf("unknown job store %q", c.JobStore)
	}

	opts := fetcher.Options{Concurrency: c.FetchConcurrency, Timeout: c.FetchTimeout, MaxFileBytes: c.MaxFileBytes}
	engine := watermark.New(c.WatermarkText)
	limiter := ratelimit.New("downloads", c.DownloadsPerHour)
	ev, md := rm.Events(db), rm.Media(db)

	// Client-supplied URLs are fetched from the public origin; whole-event
	// jobs read the bucket directly.
	httpFetcher := fetcher.New(fetcher.NewHTTPGetter(&http.Client{}, allow), allow, opts, logger)
	storageFetcher := fetcher.New(fetcher.NewStorageGetter(objects, allow), allow, opts, logger)

	bulk := downloads.NewBulkService(
		downloads.NewPipeline(httpFetcher, engine, c.FetchConcurrency, logger),
		ev, limiter,
		downloads.BulkConfig{MaxItems: c.MaxBulkItems, MaxArchiveBytes: c.MaxArchiveBytes},
		logger)

	resolver := downloads.NewResolver(ev, md, objects, engine, limiter,
		downloads.ResolverConfig{SignedURLTTL: c.SignedURLTTL, MaxFileBytes: c.MaxFileBytes}, logger)

	manager := jobs.NewManager(store, ev, md,
		downloads.NewPipeline(storageFetcher, engine, c.FetchConcurrency, logger),
		objects, allow,
		jobs.Config{MaxArchiveBytes: c.MaxArchiveBytes, SignedURLTTL: c.SignedURLTTL, JobTTL: c.JobTTL},
		logger)

	handler := httpapi.NewRouter(httpapi.Services{Bulk: bulk, Jobs: manager, Resolver: resolver},
		httpapi.Options{Secret: []byte(c.SecretKey), TrustedProxies: proxies}, logger)

	return &App{config: c, logger: logger, db: db, manager: manager, handler: handler}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "http server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			app.logger.Error(ctx, "http server failed", "error", err)
			cancelFunc()
			return
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http shutdown", "error", err)
	}
}

// runSweeper purges expired jobs every SweepInterval until ctx is done.
func (app *App) runSweeper(ctx context.Context) {
	ticker := time.NewTicker(app.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.manager.Sweep(ctx); err != nil {
				app.logger.Warn(ctx, "sweep incomplete", "error", err)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.SweepInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.runSweeper(ctx)
		}()
	}

	wg.Wait()

	app.logger.Info(context.Background(), "waiting for running jobs")
	app.manager.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close", "error", err)
	}
}
