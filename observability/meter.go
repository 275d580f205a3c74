package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// InitMeter installs a global meter provider exporting over OTLP/HTTP.
func InitMeter(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(time.Duration(cfg.ExportIntervalSeconds)*time.Second))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns the notify meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Result labels for publish outcomes.
const (
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

// Metrics holds the delivery instruments.
type Metrics struct {
	sessionsActive    metric.Int64UpDownCounter
	eventsSent        metric.Int64Counter
	heartbeatsSent    metric.Int64Counter
	eventsDropped     metric.Int64Counter
	publishTotal      metric.Int64Counter
	publishDuration   metric.Float64Histogram
	sideEffectsFailed metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	if m.sessionsActive, err = meter.Int64UpDownCounter("notify.sessions.active",
		metric.WithDescription("Streaming sessions currently open")); err != nil {
		return nil, fmt.Errorf("creating notify.sessions.active: %w", err)
	}
	if m.eventsSent, err = meter.Int64Counter("notify.events.sent",
		metric.WithDescription("Events written to streaming sessions")); err != nil {
		return nil, fmt.Errorf("creating notify.events.sent: %w", err)
	}
	if m.heartbeatsSent, err = meter.Int64Counter("notify.heartbeats.sent",
		metric.WithDescription("Heartbeat comments written")); err != nil {
		return nil, fmt.Errorf("creating notify.heartbeats.sent: %w", err)
	}
	if m.eventsDropped, err = meter.Int64Counter("notify.events.dropped",
		metric.WithDescription("Events dropped from full session queues")); err != nil {
		return nil, fmt.Errorf("creating notify.events.dropped: %w", err)
	}
	if m.publishTotal, err = meter.Int64Counter("notify.publish.total",
		metric.WithDescription("Publish requests by result")); err != nil {
		return nil, fmt.Errorf("creating notify.publish.total: %w", err)
	}
	if m.publishDuration, err = meter.Float64Histogram("notify.publish.duration",
		metric.WithDescription("Publish latency up to broker acknowledgement"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating notify.publish.duration: %w", err)
	}
	if m.sideEffectsFailed, err = meter.Int64Counter("notify.side_effects.failed",
		metric.WithDescription("Failed persistence or push side effects")); err != nil {
		return nil, fmt.Errorf("creating notify.side_effects.failed: %w", err)
	}
	return &m, nil
}

// NopMetrics returns instruments backed by a no-op meter.
func NopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(instrumentationName))
	return m
}

// SessionOpened increments the active session count.
func (m *Metrics) SessionOpened(ctx context.Context) {
	m.sessionsActive.Add(ctx, 1)
}

// SessionClosed decrements the active session count.
func (m *Metrics) SessionClosed(ctx context.Context) {
	m.sessionsActive.Add(ctx, -1)
}

// EventSent counts one written event. raw marks undecodable payloads.
func (m *Metrics) EventSent(ctx context.Context, raw bool) {
	kind := "envelope"
	if raw {
		kind = "raw"
	}
	m.eventsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// HeartbeatSent counts one heartbeat.
func (m *Metrics) HeartbeatSent(ctx context.Context) {
	m.heartbeatsSent.Add(ctx, 1)
}

// EventsDropped counts events discarded by drop-oldest overflow.
func (m *Metrics) EventsDropped(ctx context.Context, n int64) {
	if n > 0 {
		m.eventsDropped.Add(ctx, n)
	}
}

// Published records one publish attempt.
func (m *Metrics) Published(ctx context.Context, result string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("result", result))
	m.publishTotal.Add(ctx, 1, attrs)
	m.publishDuration.Record(ctx, d.Seconds(), attrs)
}

// SideEffectFailed counts a failed side effect of the given kind.
func (m *Metrics) SideEffectFailed(ctx context.Context, kind string) {
	m.sideEffectsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
