// Package dispatcher owns the per-kind queues and persistence workers and
// coordinates their startup and bounded shutdown.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-ingest/internal/metrics"
	"github.com/JakeFAU/jobsearch-ingest/internal/queue/memory"
	"github.com/JakeFAU/jobsearch-ingest/internal/records"
	"github.com/JakeFAU/jobsearch-ingest/internal/worker"
)

var (
	// ErrShutdownTimeout is returned by Shutdown when workers had to be canceled.
	ErrShutdownTimeout = errors.New("workers did not drain before the shutdown timeout")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("dispatcher already started")
)

// Unit is one kind's queue together with the worker draining it.
type Unit struct {
	Queue  *memory.Queue[records.Record]
	Worker *worker.Worker
}

// NewUnit builds a queue and a worker for kind around store. Dropped records
// are logged and counted.
func NewUnit(kind records.Kind, opts memory.Options, store worker.Store, cfg worker.Config, logger *zap.Logger) *Unit {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := memory.NewQueue[records.Record](opts)
	q.OnDrop(func(rec records.Record) {
		metrics.ObserveQueueDrop(string(kind))
		key := ""
		if rec != nil {
			key = rec.Key()
		}
		logger.Warn("record dropped", zap.String("kind", string(kind)), zap.String("id", key))
	})
	cfg.Kind = kind
	return &Unit{
		Queue:  q,
		Worker: worker.New(q, store, cfg, logger.Named("worker")),
	}
}

type exit struct {
	err   error
	early bool
}

// Dispatcher routes records to their kind's queue.
type Dispatcher struct {
	units  map[records.Kind]*Unit
	logger *zap.Logger

	mu       sync.Mutex
	started  bool
	stopping bool
	exits    map[records.Kind]exit
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
	// grace bounds the wait for workers after their context is canceled.
	grace time.Duration
}

// New creates a Dispatcher over units.
func New(units map[records.Kind]*Unit, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		units:  units,
		logger: logger,
		exits:  make(map[records.Kind]exit, len(units)),
		grace:  5 * time.Second,
	}
}

// Start launches every worker exactly once. Workers run until Shutdown, until
// their store is lost, or until ctx ends.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return ErrAlreadyStarted
	}
	d.started = true

	workerCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	for kind, unit := range d.units {
		d.wg.Add(1)
		go func(kind records.Kind, w *worker.Worker) {
			defer d.wg.Done()
			err := w.Run(workerCtx)

			d.mu.Lock()
			early := !d.stopping
			d.exits[kind] = exit{err: err, early: early}
			d.mu.Unlock()
			if early {
				d.logger.Error("worker exited before shutdown; records of this kind are rejected until restart",
					zap.String("kind", string(kind)), zap.Int("pending", d.units[kind].Queue.Len()), zap.Error(err))
			}
		}(kind, unit.Worker)
	}
	d.logger.Info("dispatcher started", zap.Int("workers", len(d.units)))
	return nil
}

// Enqueue hands rec to its kind's queue without blocking. It reports false when
// the record was not accepted, including when the kind's worker is dead.
func (d *Dispatcher) Enqueue(rec records.Record) bool {
	if rec == nil {
		return false
	}
	unit, ok := d.units[rec.Kind()]
	if !ok {
		d.logger.Warn("no queue for record kind", zap.String("kind", string(rec.Kind())))
		return false
	}
	if d.Dead(rec.Kind()) {
		return false
	}
	accepted := unit.Queue.Enqueue(rec)
	metrics.SetQueueDepth(string(rec.Kind()), unit.Queue.Len())
	return accepted
}

// Shutdown stops intake, pushes one sentinel per queue and waits up to timeout
// for the workers to drain. After the timeout the workers' context is canceled
// and ErrShutdownTimeout is returned once they have all exited, or once a short
// grace period passes without them exiting. Only the first
// call does any work; later calls return its result.
func (d *Dispatcher) Shutdown(timeout time.Duration) error {
	d.stopOnce.Do(func() {
		d.stopErr = d.shutdown(timeout)
	})
	return d.stopErr
}

func (d *Dispatcher) shutdown(timeout time.Duration) error {
	d.mu.Lock()
	d.stopping = true
	started := d.started
	d.mu.Unlock()

	for _, unit := range d.units {
		unit.Queue.Stop()
	}
	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		d.cancel()
		d.logger.Info("workers drained")
		return nil
	case <-timer.C:
	}

	d.logger.Warn("shutdown timeout reached; canceling workers", zap.Duration("timeout", timeout))
	d.cancel()
	grace := time.NewTimer(d.grace)
	defer grace.Stop()
	select {
	case <-done:
	case <-grace.C:
		d.logger.Error("workers ignored cancellation; abandoning them", zap.Duration("grace", d.grace))
	}
	pending := 0
	for _, unit := range d.units {
		pending += unit.Queue.Len()
	}
	return fmt.Errorf("%w: %d records not persisted", ErrShutdownTimeout, pending)
}

// Dead reports whether kind's worker exited before Shutdown was requested.
// A dead worker is not restarted.
func (d *Dispatcher) Dead(kind records.Kind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.exits[kind]
	return ok && e.early
}

// Err returns the error kind's worker exited with, if it has exited.
func (d *Dispatcher) Err(kind records.Kind) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exits[kind].err
}

// DeadKinds lists the kinds whose worker has died, in records.Kinds order.
func (d *Dispatcher) DeadKinds() []records.Kind {
	var out []records.Kind
	for _, kind := range d.Kinds() {
		if d.Dead(kind) {
			out = append(out, kind)
		}
	}
	return out
}

// Kinds lists the kinds with a registered unit.
func (d *Dispatcher) Kinds() []records.Kind {
	out := make([]records.Kind, 0, len(d.units))
	for _, kind := range records.Kinds {
		if _, ok := d.units[kind]; ok {
			out = append(out, kind)
		}
	}
	return out
}
