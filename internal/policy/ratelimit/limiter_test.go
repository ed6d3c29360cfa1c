package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobsearch-ingest/internal/metrics"
)

func TestLimiter_WaitSpacesCallsPerHost(t *testing.T) {
	metrics.Init()
	l := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://api.hh.ru/vacancies"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://api.hh.ru/vacancies?page=1"))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	start = time.Now()
	require.NoError(t, l.Wait(ctx, "https://hh.ru/search/resume"))
	require.Less(t, time.Since(start), 50*time.Millisecond, "other hosts have their own bucket")
}

func TestLimiter_CanceledContext(t *testing.T) {
	metrics.Init()
	l := New(Config{RPS: 0.001, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://api.hh.ru"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://api.hh.ru"))
}

func TestLimiter_DisabledWhenRPSIsZero(t *testing.T) {
	metrics.Init()
	l := New(Config{})
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://api.hh.ru"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestHostOf(t *testing.T) {
	require.Equal(t, "api.hh.ru", hostOf("https://API.hh.ru/vacancies"))
	require.Equal(t, "unknown", hostOf("::not a url"))
	require.Equal(t, "unknown", hostOf(""))
}
