package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/jobsearch-ingest/internal/metrics"
	"github.com/JakeFAU/jobsearch-ingest/internal/queue/memory"
	"github.com/JakeFAU/jobsearch-ingest/internal/records"
)

func init() {
	metrics.Init()
}

type fakeStore struct {
	mu        sync.Mutex
	rows      map[string]records.Record
	upserts   int
	failIDs   map[string]error
	pingErr   error
	pings     int
	closed    int
	upsertGap time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]records.Record{}, failIDs: map[string]error{}}
}

func (f *fakeStore) Upsert(ctx context.Context, rec records.Record) error {
	if f.upsertGap > 0 {
		select {
		case <-time.After(f.upsertGap):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if err := f.failIDs[rec.Key()]; err != nil {
		return err
	}
	f.rows[rec.Key()] = rec
	return nil
}

func (f *fakeStore) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return f.pingErr
}

func (f *fakeStore) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeStore) snapshot() (rows map[string]records.Record, upserts, pings, closed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]records.Record, len(f.rows))
	for k, v := range f.rows {
		out[k] = v
	}
	return out, f.upserts, f.pings, f.closed
}

func vacancy(id, name string) records.Vacancy {
	return records.Vacancy{ID: id, Name: records.String(name)}
}

func runAsync(ctx context.Context, w *Worker) <-chan error {
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	return done
}

func TestWorker_DrainsQueueThenExitsOnSentinel(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue[records.Record](memory.Options{})
	store := newFakeStore()
	w := New(q, store, Config{Kind: records.KindVacancy}, zap.NewNop())

	q.Enqueue(vacancy("1", "first"))
	q.Enqueue(vacancy("2", "second"))
	q.Enqueue(vacancy("1", "first again"))
	q.Stop()

	err := <-runAsync(context.Background(), w)
	require.NoError(t, err)

	rows, upserts, _, closed := store.snapshot()
	require.Equal(t, 3, upserts)
	require.Len(t, rows, 2)
	require.Equal(t, "first again", *rows["1"].(records.Vacancy).Name)
	require.Equal(t, 1, closed)
}

func TestWorker_StatementErrorIsLoggedAndSkipped(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)
	q := memory.NewQueue[records.Record](memory.Options{})
	store := newFakeStore()
	store.failIDs["bad"] = errors.New("value too long for type")
	w := New(q, store, Config{
		Kind:                 records.KindVacancy,
		MaybeConnectionError: func(error) bool { return false },
	}, zap.New(core))

	q.Enqueue(vacancy("bad", "x"))
	q.Enqueue(vacancy("good", "y"))
	q.Stop()

	require.NoError(t, <-runAsync(context.Background(), w))

	rows, _, pings, _ := store.snapshot()
	require.Contains(t, rows, "good")
	require.NotContains(t, rows, "bad")
	require.Zero(t, pings)
	entries := logs.FilterMessage("upsert failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, "bad", entries[0].ContextMap()["id"])
	require.Equal(t, "vacancies", entries[0].ContextMap()["kind"])
}

func TestWorker_ContinuesWhenPingSucceeds(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue[records.Record](memory.Options{})
	store := newFakeStore()
	store.failIDs["flaky"] = errors.New("unexpected EOF")
	w := New(q, store, Config{Kind: records.KindVacancy}, zap.NewNop())

	q.Enqueue(vacancy("flaky", "x"))
	q.Enqueue(vacancy("after", "y"))
	q.Stop()

	require.NoError(t, <-runAsync(context.Background(), w))
	rows, _, pings, _ := store.snapshot()
	require.Equal(t, 1, pings)
	require.Contains(t, rows, "after")
}

func TestWorker_DiesWhenConnectionIsLost(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue[records.Record](memory.Options{})
	store := newFakeStore()
	store.failIDs["lost"] = errors.New("conn closed")
	store.pingErr = errors.New("connection refused")
	w := New(q, store, Config{Kind: records.KindVacancy}, zap.NewNop())

	q.Enqueue(vacancy("lost", "x"))
	q.Enqueue(vacancy("never", "y"))

	err := <-runAsync(context.Background(), w)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	rows, _, _, closed := store.snapshot()
	require.NotContains(t, rows, "never")
	require.Equal(t, 1, closed)
	require.Equal(t, 1, q.Len())
}

func TestWorker_SkipsWrongKindAndInvalidRecords(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue[records.Record](memory.Options{})
	store := newFakeStore()
	w := New(q, store, Config{Kind: records.KindResume}, zap.NewNop())

	q.Enqueue(vacancy("v1", "wrong kind"))
	q.Enqueue(records.Resume{})
	q.Enqueue(records.Resume{ID: "r1"})
	q.Stop()

	require.NoError(t, <-runAsync(context.Background(), w))
	rows, upserts, _, _ := store.snapshot()
	require.Equal(t, 1, upserts)
	require.Contains(t, rows, "r1")
}

func TestWorker_CancelForcesExit(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	q := memory.NewQueue[records.Record](memory.Options{})
	store := newFakeStore()
	w := New(q, store, Config{Kind: records.KindVacancy}, zap.NewNop())

	done := runAsync(ctx, w)
	q.Enqueue(vacancy("1", "x"))
	require.Eventually(t, func() bool {
		rows, _, _, _ := store.snapshot()
		return len(rows) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not observe cancellation")
	}
	_, _, _, closed := store.snapshot()
	require.Equal(t, 1, closed)
}

func TestWorker_CancelDuringUpsert(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	q := memory.NewQueue[records.Record](memory.Options{})
	store := newFakeStore()
	store.upsertGap = time.Minute
	w := New(q, store, Config{Kind: records.KindVacancy}, zap.NewNop())

	q.Enqueue(vacancy("slow", "x"))
	done := runAsync(ctx, w)
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not observe cancellation")
	}
	_, _, pings, _ := store.snapshot()
	require.Zero(t, pings)
}
