// Package server provides the core application server and dependency wiring.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-ingest/internal/api"
	"github.com/JakeFAU/jobsearch-ingest/internal/config"
	"github.com/JakeFAU/jobsearch-ingest/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/jobsearch-ingest/internal/fetcher/colly"
	"github.com/JakeFAU/jobsearch-ingest/internal/metrics"
	"github.com/JakeFAU/jobsearch-ingest/internal/policy/ratelimit"
	"github.com/JakeFAU/jobsearch-ingest/internal/records"
	"github.com/JakeFAU/jobsearch-ingest/internal/source/hh"
	pgstore "github.com/JakeFAU/jobsearch-ingest/internal/storage/postgres"
	"github.com/JakeFAU/jobsearch-ingest/internal/worker"
)

type pipeline interface {
	Start(ctx context.Context) error
	Shutdown(timeout time.Duration) error
}

type storeReader interface {
	api.StoreReader
	Close()
}

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	apiServer *api.Server
	dispatch  pipeline
	reader    storeReader
	writers   []*pgstore.Writer
	started   bool
}

// Run starts the pipeline and the HTTP server and blocks until ctx is canceled
// or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		a.Close()
		return fmt.Errorf("listen: %w", err)
	}
	return a.serve(ctx, ln)
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Workers get their own lifetime; Shutdown decides when they stop.
	if err := a.dispatch.Start(context.WithoutCancel(ctx)); err != nil {
		a.Close()
		return fmt.Errorf("start dispatcher: %w", err)
	}
	a.started = true
	a.logger.Info("dispatcher started")

	srv := &http.Server{
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	closeErr := a.Close()
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// Close drains the pipeline and releases the store. HTTP must already be
// stopped so nothing new is enqueued.
func (a *App) Close() error {
	var err error
	if !a.started {
		a.closeWriters()
	}
	if a.dispatch != nil {
		if err = a.dispatch.Shutdown(a.cfg.Worker.ShutdownTimeout); err != nil {
			a.logger.Warn("dispatcher shutdown incomplete", zap.Error(err))
		}
	}
	if a.reader != nil {
		a.reader.Close()
	}
	if syncErr := a.logger.Sync(); syncErr != nil {
		a.logger.Debug("logger sync failed", zap.Error(syncErr))
	}
	a.logger.Info("shutdown complete")
	return err
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.Int("queue_max_depth", cfg.Queue.MaxDepth),
		zap.String("queue_overflow", cfg.Queue.Overflow),
	)

	reader, err := pgstore.NewReader(ctx, pgstore.PoolConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: cfg.DB.MaxConnLifetime,
		ConnectTimeout:  cfg.DB.ConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("reader init failed: %w", err)
	}
	app.reader = reader

	if cfg.DB.MigrateOnStart {
		if err := migrate(ctx, reader); err != nil {
			reader.Close()
			return nil, err
		}
		logger.Info("schema migrated")
	}

	dispatch, err := setupDispatcher(ctx, app)
	if err != nil {
		app.closeWriters()
		reader.Close()
		return nil, err
	}
	app.dispatch = dispatch

	adapter, err := setupSource(cfg, logger)
	if err != nil {
		app.closeWriters()
		reader.Close()
		return nil, err
	}

	app.apiServer = api.NewServer(adapter, dispatch, reader, api.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		DefaultLimit:   cfg.Query.DefaultLimit,
		MaxLimit:       cfg.Query.MaxLimit,
	}, logger.Named("api"))

	return app, nil
}

// Migrate applies the schema using a short-lived pool.
func Migrate(ctx context.Context, cfg config.Config) error {
	reader, err := pgstore.NewReader(ctx, pgstore.PoolConfig{
		DSN:            cfg.DB.DSN,
		MaxConns:       1,
		ConnectTimeout: cfg.DB.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("reader init failed: %w", err)
	}
	defer reader.Close()
	return migrate(ctx, reader)
}

func migrate(ctx context.Context, reader *pgstore.Reader) error {
	exec, ok := reader.Executor()
	if !ok {
		return fmt.Errorf("reader pool cannot execute statements")
	}
	if err := pgstore.Migrate(ctx, exec); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func setupDispatcher(ctx context.Context, app *App) (*dispatcher.Dispatcher, error) {
	cfg := app.cfg
	units := make(map[records.Kind]*dispatcher.Unit, len(records.Kinds))
	for _, kind := range records.Kinds {
		w, err := pgstore.Connect(ctx, pgstore.ConnConfig{
			DSN:            cfg.DB.DSN,
			ConnectTimeout: cfg.DB.ConnectTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("writer for %s: %w", kind, err)
		}
		app.writers = append(app.writers, w)
		units[kind] = dispatcher.NewUnit(kind, cfg.QueueOptions(), w, worker.Config{
			MaybeConnectionError: pgstore.IsConnectionError,
			PingTimeout:          cfg.Worker.PingTimeout,
		}, app.logger.Named(string(kind)))
	}
	app.logger.Info("persistence workers configured",
		zap.Int("kinds", len(units)),
		zap.Duration("shutdown_timeout", cfg.Worker.ShutdownTimeout),
	)
	return dispatcher.New(units, app.logger.Named("dispatcher")), nil
}

// closeWriters releases connections that no worker took ownership of. Once the
// dispatcher runs, each worker closes its own writer.
func (a *App) closeWriters() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, w := range a.writers {
		if err := w.Close(ctx); err != nil {
			a.logger.Warn("writer close failed", zap.Error(err))
		}
	}
}

func setupSource(cfg config.Config, logger *zap.Logger) (*hh.Adapter, error) {
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Source.UserAgent,
		Timeout:   cfg.Source.VacanciesTimeout,
	})
	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.Source.RateLimitRPS,
		Burst: cfg.Source.RateLimitBurst,
	})
	logger.Info("source configured",
		zap.String("api_base_url", cfg.Source.APIBaseURL),
		zap.String("user_agent", cfg.Source.UserAgent),
		zap.Float64("rate_limit_rps", cfg.Source.RateLimitRPS),
		zap.Int("rate_limit_burst", cfg.Source.RateLimitBurst),
	)
	adapter, err := hh.New(hh.Config{
		APIBaseURL:         cfg.Source.APIBaseURL,
		SiteBaseURL:        cfg.Source.SiteBaseURL,
		PerPage:            cfg.Source.PerPage,
		VacanciesTimeout:   cfg.Source.VacanciesTimeout,
		ResumeTimeout:      cfg.Source.ResumeTimeout,
		ResumeLinksTimeout: cfg.Source.ResumeLinksTimeout,
	}, fetcher, limiter, logger.Named("source"))
	if err != nil {
		return nil, fmt.Errorf("source adapter init failed: %w", err)
	}
	return adapter, nil
}
