// Package memory provides the in-process ingestion queue that hands records from
// request handlers to their persistence worker.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// OverflowPolicy decides what a bounded queue does when it is full.
type OverflowPolicy int

// Overflow policies. They only apply when Options.MaxDepth > 0.
const (
	DropNewest OverflowPolicy = iota
	DropOldest
)

// ParseOverflowPolicy maps a config value onto an OverflowPolicy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop_newest":
		return DropNewest, nil
	case "drop_oldest":
		return DropOldest, nil
	default:
		return DropNewest, fmt.Errorf("unknown overflow policy %q", s)
	}
}

// String returns the config spelling of the policy.
func (p OverflowPolicy) String() string {
	if p == DropOldest {
		return "drop_oldest"
	}
	return "drop_newest"
}

// Options configures a Queue. A zero MaxDepth leaves the queue unbounded, in which
// case memory grows without limit while the consumer lags behind producers.
type Options struct {
	MaxDepth int
	Overflow OverflowPolicy
}

type entry[T any] struct {
	value    T
	sentinel bool
}

// Queue is a FIFO with non-blocking Enqueue and blocking Dequeue. Any number of
// goroutines may enqueue; exactly one goroutine is expected to dequeue.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []entry[T]
	values  int
	stopped bool
	ready   chan struct{}
	opts    Options
	dropped atomic.Uint64
	onDrop  func(T)
}

// NewQueue constructs a queue with the given options.
func NewQueue[T any](opts Options) *Queue[T] {
	if opts.MaxDepth < 0 {
		opts.MaxDepth = 0
	}
	return &Queue[T]{
		ready: make(chan struct{}, 1),
		opts:  opts,
	}
}

// OnDrop registers a callback invoked for every value the queue discards. It must
// be set before the queue is shared.
func (q *Queue[T]) OnDrop(fn func(T)) {
	q.onDrop = fn
}

// Enqueue appends v and returns immediately. It reports false when v was not
// accepted: the queue was stopped, or it is full under DropNewest. Under
// DropOldest the head value is discarded instead and v is accepted.
func (q *Queue[T]) Enqueue(v T) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		q.drop(v)
		return false
	}
	var evicted *T
	if q.opts.MaxDepth > 0 && q.values >= q.opts.MaxDepth {
		if q.opts.Overflow == DropNewest {
			q.mu.Unlock()
			q.drop(v)
			return false
		}
		head := q.items[0].value
		evicted = &head
		q.items[0] = entry[T]{}
		q.items = q.items[1:]
		q.values--
	}
	q.items = append(q.items, entry[T]{value: v})
	q.values++
	q.mu.Unlock()

	if evicted != nil {
		q.drop(*evicted)
	}
	q.signal()
	return true
}

// Stop appends the sentinel. Values enqueued before Stop are still delivered;
// values enqueued after it are dropped. Calling Stop more than once is a no-op.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.items = append(q.items, entry[T]{sentinel: true})
	q.mu.Unlock()
	q.signal()
}

// Dequeue blocks until a value is available. ok is false once the sentinel is
// reached; the sentinel stays at the head so later calls keep reporting it.
// An error is returned only when ctx ends first.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, bool, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			head := q.items[0]
			if head.sentinel {
				q.mu.Unlock()
				return zero, false, nil
			}
			q.items[0] = entry[T]{}
			q.items = q.items[1:]
			q.values--
			q.mu.Unlock()
			return head.value, true, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, false, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.ready:
		}
	}
}

// Len returns the number of values waiting, excluding the sentinel.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.values
}

// Dropped returns how many values the queue has discarded.
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}

// Stopped reports whether Stop has been called.
func (q *Queue[T]) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *Queue[T]) drop(v T) {
	q.dropped.Add(1)
	if q.onDrop != nil {
		q.onDrop(v)
	}
}
