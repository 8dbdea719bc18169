package fetcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"solanafetcher/internal/ratelimit"
)

func testPolicy(maxRetries int) Policy {
	return Policy{
		MaxRetries: maxRetries,
		RetryDelay: time.Millisecond,
		Limiter:    ratelimit.Unlimited(),
		Logger:     zerolog.Nop(),
	}
}

// countingSource returns a source whose fetch calls are counted and answered by fn.
func countingSource(calls *int32, def float64, fn func(call int32) (float64, error)) Source[float64] {
	return NewSource("test.price", ratelimit.APIDexScreener, def, func(ctx context.Context, id string) (float64, error) {
		n := atomic.AddInt32(calls, 1)
		return fn(n)
	})
}

func TestFetch_Success(t *testing.T) {
	var calls int32
	src := countingSource(&calls, 0, func(int32) (float64, error) {
		return 42.5, nil
	})

	got := Fetch(context.Background(), testPolicy(2), src, "mint")

	if !got.OK() {
		t.Fatalf("Fetch() returned failure: %v", got.Err)
	}
	if got.Value != 42.5 {
		t.Errorf("Fetch().Value = %v, want 42.5", got.Value)
	}
	if calls != 1 {
		t.Errorf("source called %d times, want 1", calls)
	}
}

func TestFetch_AlwaysFailing(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		wantCalls  int32
	}{
		{"no retries", 0, 1},
		{"one retry", 1, 2},
		{"default budget", DefaultMaxRetries, 3},
		{"five retries", 5, 6},
		{"negative treated as zero", -3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			boom := errors.New("upstream down")
			src := countingSource(&calls, -1, func(int32) (float64, error) {
				return 99, boom
			})

			got := Fetch(context.Background(), testPolicy(tt.maxRetries), src, "mint")

			if got.OK() {
				t.Fatal("Fetch() succeeded, want failure")
			}
			if calls != tt.wantCalls {
				t.Errorf("source called %d times, want %d", calls, tt.wantCalls)
			}
			if got.Value != -1 {
				t.Errorf("Fetch().Value = %v, want source default -1", got.Value)
			}
			if !errors.Is(got.Err, boom) {
				t.Errorf("Fetch().Err = %v, want %v", got.Err, boom)
			}
		})
	}
}

// counterTotal sums the data points of the named int64 counter.
func counterTotal(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s data = %T, want metricdata.Sum[int64]", name, m.Data)
			}
			total := int64(0)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestFetch_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { mp.Shutdown(context.Background()) })

	var calls int32
	src := countingSource(&calls, 0, func(int32) (float64, error) {
		return 0, errors.New("upstream down")
	})

	p := testPolicy(DefaultMaxRetries)
	p.Metrics = NewMetrics(mp)

	Fetch(context.Background(), p, src, "mint")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() returned unexpected error: %v", err)
	}

	if got, want := counterTotal(t, rm, "fetcher.attempts"), int64(DefaultMaxRetries+1); got != want {
		t.Errorf("fetcher.attempts = %d, want %d", got, want)
	}
	if got := counterTotal(t, rm, "fetcher.degraded"); got != 1 {
		t.Errorf("fetcher.degraded = %d, want 1", got)
	}
}

func TestFetch_SuccessRecordsNoDegradation(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { mp.Shutdown(context.Background()) })

	var calls int32
	src := countingSource(&calls, 0, func(int32) (float64, error) {
		return 1, nil
	})

	p := testPolicy(2)
	p.Metrics = NewMetrics(mp)

	Fetch(context.Background(), p, src, "mint")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() returned unexpected error: %v", err)
	}

	if got := counterTotal(t, rm, "fetcher.attempts"); got != 1 {
		t.Errorf("fetcher.attempts = %d, want 1", got)
	}
	if got := counterTotal(t, rm, "fetcher.degraded"); got != 0 {
		t.Errorf("fetcher.degraded = %d, want 0", got)
	}
}

func TestFetch_FailsOnceThenSucceeds(t *testing.T) {
	var calls int32
	src := countingSource(&calls, 0, func(n int32) (float64, error) {
		if n == 1 {
			return 0, NewServerError(503)
		}
		return 7, nil
	})

	got := Fetch(context.Background(), testPolicy(2), src, "mint")

	if !got.OK() {
		t.Fatalf("Fetch() returned failure: %v", got.Err)
	}
	if got.Value != 7 {
		t.Errorf("Fetch().Value = %v, want 7", got.Value)
	}
	if calls != 2 {
		t.Errorf("source called %d times, want 2", calls)
	}
}

func TestFetch_WaitsBetweenAttempts(t *testing.T) {
	var calls int32
	src := countingSource(&calls, 0, func(int32) (float64, error) {
		return 0, errors.New("nope")
	})

	p := testPolicy(2)
	p.RetryDelay = 20 * time.Millisecond

	start := time.Now()
	Fetch(context.Background(), p, src, "mint")
	elapsed := time.Since(start)

	if elapsed < 40*time.Millisecond {
		t.Errorf("Fetch() took %v, want at least two retry delays (40ms)", elapsed)
	}
}

func TestFetch_ContextCancelledStopsRetrying(t *testing.T) {
	var calls int32
	ctx, cancel := context.WithCancel(context.Background())

	src := countingSource(&calls, 0, func(int32) (float64, error) {
		cancel()
		return 0, context.Canceled
	})

	p := testPolicy(5)
	p.RetryDelay = time.Second

	start := time.Now()
	got := Fetch(ctx, p, src, "mint")

	if got.OK() {
		t.Fatal("Fetch() succeeded, want failure")
	}
	if calls != 1 {
		t.Errorf("source called %d times, want 1", calls)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Fetch() waited for retry delay after cancellation")
	}
}

func TestFetch_AlreadyCancelledContext(t *testing.T) {
	var calls int32
	src := countingSource(&calls, 3, func(int32) (float64, error) {
		return 1, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := Fetch(ctx, testPolicy(2), src, "mint")

	if got.OK() {
		t.Fatal("Fetch() succeeded with cancelled context")
	}
	if got.Value != 3 {
		t.Errorf("Fetch().Value = %v, want default 3", got.Value)
	}
	if calls != 0 {
		t.Errorf("source called %d times, want 0", calls)
	}
}

func TestFetch_RecoversPanickingSource(t *testing.T) {
	src := NewSource("test.panic", ratelimit.APIRPC, "fallback", func(ctx context.Context, id string) (string, error) {
		panic("bad payload")
	})

	got := Fetch(context.Background(), testPolicy(1), src, "id")

	if got.OK() {
		t.Fatal("Fetch() succeeded, want failure")
	}
	if got.Value != "fallback" {
		t.Errorf("Fetch().Value = %q, want %q", got.Value, "fallback")
	}
}

func TestFetch_WaitsForRateLimiter(t *testing.T) {
	var calls int32
	src := countingSource(&calls, 0, func(int32) (float64, error) {
		return 1, nil
	})

	p := testPolicy(0)
	p.Limiter = ratelimit.New(map[ratelimit.API]float64{ratelimit.APIDexScreener: 20})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if got := Fetch(context.Background(), p, src, "mint"); !got.OK() {
			t.Fatalf("Fetch() returned failure: %v", got.Err)
		}
	}
	elapsed := time.Since(start)

	// 20 rps with burst 1: the second and third calls wait 50ms each.
	if elapsed < 90*time.Millisecond {
		t.Errorf("3 fetches took %v, want at least 90ms at 20 rps", elapsed)
	}
	if calls != 3 {
		t.Errorf("source called %d times, want 3", calls)
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy(nil, zerolog.Nop())

	if p.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", p.MaxRetries)
	}
	if p.RetryDelay != time.Second {
		t.Errorf("RetryDelay = %v, want 1s", p.RetryDelay)
	}
}
