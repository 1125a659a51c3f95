// Package metrics implements the minimal health/metrics contract spec
// §4.6 requires: lag histograms, drop counters by reason, resync counts
// and reconnect counts, exposed over a Prometheus endpoint via OTel's
// metric SDK. No tracing is added — out of proportion to "minimal".
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the instrument handles. The Supervisor is not given them,
// and no code in this module records values against them.
type Metrics struct {
	Registry *sdkmetric.MeterProvider

	EventLag     metric.Float64Histogram
	PublishLag   metric.Float64Histogram
	DropsTotal   metric.Int64Counter
	ResyncsTotal metric.Int64Counter
	ReconnectsTotal metric.Int64Counter
}

// New constructs a Meter provider backed by a Prometheus exporter and
// registers the event-lag, publish-lag, drop, resync and reconnect
// instruments.
func New() (*Metrics, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("metrics: new prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("marketprism.ingestion-fabric")

	eventLag, err := meter.Float64Histogram("ingestion.event_lag_seconds",
		metric.WithDescription("age of an inbound event when it was applied, seconds"))
	if err != nil {
		return nil, fmt.Errorf("metrics: event_lag histogram: %w", err)
	}
	publishLag, err := meter.Float64Histogram("ingestion.publish_lag_seconds",
		metric.WithDescription("time from normalize to bus publish acknowledgement, seconds"))
	if err != nil {
		return nil, fmt.Errorf("metrics: publish_lag histogram: %w", err)
	}
	drops, err := meter.Int64Counter("ingestion.drops_total",
		metric.WithDescription("events dropped, by reason"))
	if err != nil {
		return nil, fmt.Errorf("metrics: drops_total counter: %w", err)
	}
	resyncs, err := meter.Int64Counter("ingestion.resyncs_total",
		metric.WithDescription("OrderBookManager resync cycles entered"))
	if err != nil {
		return nil, fmt.Errorf("metrics: resyncs_total counter: %w", err)
	}
	reconnects, err := meter.Int64Counter("ingestion.reconnects_total",
		metric.WithDescription("WireAdapter reconnects"))
	if err != nil {
		return nil, fmt.Errorf("metrics: reconnects_total counter: %w", err)
	}

	return &Metrics{
		Registry:        provider,
		EventLag:        eventLag,
		PublishLag:      publishLag,
		DropsTotal:      drops,
		ResyncsTotal:    resyncs,
		ReconnectsTotal: reconnects,
	}, nil
}

// Shutdown flushes and stops the underlying meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.Registry.Shutdown(ctx)
}
