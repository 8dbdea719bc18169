package fetcher

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "solanafetcher/internal/fetcher"

// Metrics counts fetch attempts and degraded identifiers per source.
type Metrics struct {
	attempts metric.Int64Counter
	degraded metric.Int64Counter
}

// defaultMetrics records to the global provider. Instruments created before
// the host installs its provider are forwarded to it once it does.
var defaultMetrics = NewMetrics(otel.GetMeterProvider())

// NewMetrics creates the fetch instruments on mp.
func NewMetrics(mp metric.MeterProvider) *Metrics {
	meter := mp.Meter(meterName)

	attempts, err := meter.Int64Counter("fetcher.attempts",
		metric.WithDescription("Upstream calls issued, including retries"),
		metric.WithUnit("{call}"))
	if err != nil {
		otel.Handle(err)
	}

	degraded, err := meter.Int64Counter("fetcher.degraded",
		metric.WithDescription("Identifiers that fell back to the source default"),
		metric.WithUnit("{item}"))
	if err != nil {
		otel.Handle(err)
	}

	return &Metrics{attempts: attempts, degraded: degraded}
}

func (m *Metrics) recordAttempt(ctx context.Context, source string) {
	if m.attempts == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (m *Metrics) recordDegraded(ctx context.Context, source string) {
	if m.degraded == nil {
		return
	}
	m.degraded.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}
