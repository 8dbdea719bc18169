package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"solanafetcher/internal/ratelimit"
)

const (
	// DefaultMaxRetries is the retry budget callers use unless configured otherwise
	DefaultMaxRetries = 2
	// DefaultRetryDelay is the fixed wait between two attempts for the same identifier
	DefaultRetryDelay = 1000 * time.Millisecond
)

// Policy controls how Fetch retries a failing source.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt. Negative
	// values are treated as zero.
	MaxRetries int

	// RetryDelay is the fixed wait before each retry.
	RetryDelay time.Duration

	// Limiter, when set, is waited on before every attempt.
	Limiter *ratelimit.Limiter

	// Metrics receives attempt and degradation counts. Nil records to the
	// global meter provider.
	Metrics *Metrics

	Logger zerolog.Logger
}

// DefaultPolicy returns the policy used by the endpoints: 2 retries, 1s apart.
func DefaultPolicy(limiter *ratelimit.Limiter, logger zerolog.Logger) Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		Limiter:    limiter,
		Logger:     logger,
	}
}

// Fetch retrieves the value for id from src, retrying failed attempts up to
// p.MaxRetries times with p.RetryDelay between them. It never returns an
// error: when every attempt fails, or ctx ends, the outcome carries the
// source default and the last failure as its reason.
func Fetch[T any](ctx context.Context, p Policy, src Source[T], id string) Outcome[T] {
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	metrics := p.Metrics
	if metrics == nil {
		metrics = defaultMetrics
	}

	attempts := 0
	operation := func() (value T, err error) {
		if err := ctx.Err(); err != nil {
			return value, backoff.Permanent(err)
		}
		if !p.Limiter.Allow(src.API()) {
			p.Logger.Debug().
				Str("source", src.Name()).
				Str("api", string(src.API())).
				Msg("throttled, waiting for rate limiter")
			if err := p.Limiter.Wait(ctx, src.API()); err != nil {
				return value, backoff.Permanent(err)
			}
		}

		attempts++
		metrics.recordAttempt(ctx, src.Name())

		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("source %s panicked: %v", src.Name(), r)
			}
		}()

		value, err = src.Fetch(ctx, id)
		if err != nil && ctx.Err() != nil {
			// No point waiting out the delay for a request nobody is listening to.
			return value, backoff.Permanent(err)
		}
		return value, err
	}

	value, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.RetryDelay)),
		backoff.WithMaxTries(uint(maxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.Logger.Debug().
				Err(err).
				Str("source", src.Name()).
				Str("id", id).
				Int("attempt", attempts).
				Dur("retry_in", next).
				Msg("retrying fetch")
		}),
	)
	if err == nil {
		return Succeeded(value)
	}

	metrics.recordDegraded(ctx, src.Name())
	logFailure(p.Logger, src.Name(), id, attempts, err)

	return Failed(src.Default(), err)
}

func logFailure(logger zerolog.Logger, source, id string, attempts int, err error) {
	event := logger.Warn().
		Err(err).
		Str("source", source).
		Str("id", id).
		Int("attempts", attempts)

	var fe *FetchError
	if errors.As(err, &fe) {
		event = event.
			Str("error_type", string(fe.Type)).
			Bool("retryable", fe.Retryable)
		if fe.Code != 0 {
			event = event.Int("code", fe.Code)
		}
	}

	event.Msg("fetch failed, using default")
}
