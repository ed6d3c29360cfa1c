// Package worker implements the persistence loop that drains one kind's
// ingestion queue into the store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-ingest/internal/metrics"
	"github.com/JakeFAU/jobsearch-ingest/internal/records"
)

// ErrStoreUnavailable is returned by Run when the store connection is lost.
// The worker does not restart; records enqueued afterwards stay in the queue.
var ErrStoreUnavailable = errors.New("store unavailable")

// Queue is the consumer side of an ingestion queue.
type Queue interface {
	Dequeue(ctx context.Context) (records.Record, bool, error)
	Len() int
}

// Store is the worker's dedicated store handle.
type Store interface {
	Upsert(ctx context.Context, rec records.Record) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Config controls Worker behavior.
type Config struct {
	Kind records.Kind
	// MaybeConnectionError reports whether an upsert failure warrants a ping
	// before continuing. A nil func treats every failure that way.
	MaybeConnectionError func(error) bool
	PingTimeout          time.Duration
	CloseTimeout         time.Duration
}

// Worker consumes records of one kind and upserts them.
type Worker struct {
	queue  Queue
	store  Store
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(queue Queue, store Store, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 5 * time.Second
	}
	return &Worker{
		queue:  queue,
		store:  store,
		cfg:    cfg,
		logger: logger.With(zap.String("kind", string(cfg.Kind))),
	}
}

// Kind returns the record kind this worker persists.
func (w *Worker) Kind() records.Kind { return w.cfg.Kind }

// Run blocks until the queue yields its sentinel, the store is lost, or ctx is
// canceled. The store is closed before Run returns in every case.
func (w *Worker) Run(ctx context.Context) (err error) {
	kind := string(w.cfg.Kind)
	metrics.SetWorkerUp(kind, true)
	w.logger.Info("worker started")
	defer func() {
		w.closeStore()
		metrics.SetWorkerUp(kind, false)
		if err != nil {
			w.logger.Error("worker stopped", zap.Error(err))
			return
		}
		w.logger.Info("worker stopped")
	}()

	for {
		rec, ok, err := w.queue.Dequeue(ctx)
		if err != nil {
			return err
		}
		metrics.SetQueueDepth(kind, w.queue.Len())
		if !ok {
			return nil
		}
		if err := w.persist(ctx, rec); err != nil {
			return err
		}
	}
}

// persist upserts one record. It returns an error only when the worker must stop.
func (w *Worker) persist(ctx context.Context, rec records.Record) error {
	kind := string(w.cfg.Kind)
	if rec == nil || rec.Kind() != w.cfg.Kind {
		metrics.ObserveUpsert(kind, metrics.OutcomeMalformed)
		w.logger.Error("dropping record of wrong kind", zap.String("record_type", fmt.Sprintf("%T", rec)))
		return nil
	}
	if err := rec.Validate(); err != nil {
		metrics.ObserveUpsert(kind, metrics.OutcomeMalformed)
		w.logger.Error("dropping invalid record", zap.Error(err))
		return nil
	}

	err := w.store.Upsert(ctx, rec)
	if err == nil {
		metrics.ObserveUpsert(kind, metrics.OutcomeOK)
		w.logger.Debug("record upserted", zap.String("id", rec.Key()))
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("upsert interrupted: %w", ctx.Err())
	}
	metrics.ObserveUpsert(kind, metrics.OutcomeError)
	w.logger.Error("upsert failed", zap.String("id", rec.Key()), zap.Error(err))

	if w.cfg.MaybeConnectionError != nil && !w.cfg.MaybeConnectionError(err) {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, w.cfg.PingTimeout)
	defer cancel()
	if pingErr := w.store.Ping(pingCtx); pingErr != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ping interrupted: %w", ctx.Err())
		}
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, pingErr)
	}
	return nil
}

func (w *Worker) closeStore() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.CloseTimeout)
	defer cancel()
	if err := w.store.Close(ctx); err != nil {
		w.logger.Warn("close store failed", zap.Error(err))
	}
}
