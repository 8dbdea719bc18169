package batch

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"solanafetcher/internal/fetcher"
)

const (
	// DefaultChunkSize is how many identifiers are fetched concurrently
	DefaultChunkSize = 5
	// DefaultChunkDelay is the pause between two chunks
	DefaultChunkDelay = 1000 * time.Millisecond
)

// Scheduler runs per-identifier work in fixed-size chunks. Members of a chunk
// run concurrently; chunks run one after another with a cooldown in between.
type Scheduler struct {
	chunkSize int
	delay     time.Duration
	logger    zerolog.Logger

	// sleep waits between chunks. Replaced in tests to count delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Scheduler. A chunk size below 1 is treated as 1.
func New(chunkSize int, delay time.Duration, logger zerolog.Logger) *Scheduler {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if delay < 0 {
		delay = 0
	}

	return &Scheduler{
		chunkSize: chunkSize,
		delay:     delay,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Each calls fn once for every index in [0, n). Indices are processed in
// consecutive chunks; a chunk completes only when every call in it returned.
// Between chunks, but not after the last one, Each waits for the configured
// delay. It returns ctx's error if ctx ends while waiting between chunks.
func (s *Scheduler) Each(ctx context.Context, n int, fn func(i int)) error {
	if n <= 0 {
		return nil
	}

	chunks := (n + s.chunkSize - 1) / s.chunkSize

	for c := 0; c < chunks; c++ {
		start := c * s.chunkSize
		end := min(start+s.chunkSize, n)

		p := pool.New().WithMaxGoroutines(end - start)
		for i := start; i < end; i++ {
			p.Go(func() {
				fn(i)
			})
		}
		p.Wait()

		s.logger.Debug().
			Int("chunk", c+1).
			Int("chunks", chunks).
			Int("size", end-start).
			Msg("chunk complete")

		if c == chunks-1 {
			break
		}

		if err := s.sleep(ctx, s.delay); err != nil {
			return err
		}
	}

	return nil
}

// Worker fetches the outcome for a single identifier. Workers must not fail:
// a failed fetch is expressed as a degraded Outcome.
type Worker[T any] func(ctx context.Context, id string) fetcher.Outcome[T]

// Run applies worker to every identifier and returns the outcomes in input
// order: output[i] always belongs to ids[i], and len(output) == len(ids).
func Run[T any](ctx context.Context, s *Scheduler, ids []string, worker Worker[T]) ([]fetcher.Outcome[T], error) {
	out := make([]fetcher.Outcome[T], len(ids))

	err := s.Each(ctx, len(ids), func(i int) {
		// Each slot is written by exactly one goroutine; the pool's Wait is the
		// only synchronisation needed.
		out[i] = worker(ctx, ids[i])
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// FetchAll runs fetcher.Fetch for every identifier against one source.
func FetchAll[T any](ctx context.Context, s *Scheduler, p fetcher.Policy, src fetcher.Source[T], ids []string) ([]fetcher.Outcome[T], error) {
	return Run(ctx, s, ids, func(ctx context.Context, id string) fetcher.Outcome[T] {
		return fetcher.Fetch(ctx, p, src, id)
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
