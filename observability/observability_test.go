package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/notify/component"
	"github.com/kbukum/notify/logger"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	return m, reader
}

// sumOf returns the summed value of an int64 sum instrument, filtered by an
// optional attribute.
func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string, attr ...attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is %T, not an int64 sum", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				if len(attr) > 0 {
					v, ok := dp.Attributes.Value(attr[0].Key)
					if !ok || v != attr[0].Value {
						continue
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}

func TestMetricsRecording(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SessionOpened(ctx)
	m.SessionOpened(ctx)
	m.SessionClosed(ctx)
	m.EventSent(ctx, false)
	m.EventSent(ctx, false)
	m.EventSent(ctx, true)
	m.HeartbeatSent(ctx)
	m.EventsDropped(ctx, 3)
	m.EventsDropped(ctx, 0)
	m.Published(ctx, ResultAccepted, 5*time.Millisecond)
	m.Published(ctx, ResultFailed, time.Millisecond)
	m.SideEffectFailed(ctx, "push")

	tests := []struct {
		name string
		attr []attribute.KeyValue
		want int64
	}{
		{"notify.sessions.active", nil, 1},
		{"notify.events.sent", nil, 3},
		{"notify.events.sent", []attribute.KeyValue{attribute.String("kind", "raw")}, 1},
		{"notify.heartbeats.sent", nil, 1},
		{"notify.events.dropped", nil, 3},
		{"notify.publish.total", []attribute.KeyValue{attribute.String("result", ResultAccepted)}, 1},
		{"notify.side_effects.failed", []attribute.KeyValue{attribute.String("kind", "push")}, 1},
	}
	for _, tc := range tests {
		if got := sumOf(t, reader, tc.name, tc.attr...); got != tc.want {
			t.Errorf("%s %v = %d, want %d", tc.name, tc.attr, got, tc.want)
		}
	}
}

func TestNopMetrics(t *testing.T) {
	m := NopMetrics()
	ctx := context.Background()
	m.SessionOpened(ctx)
	m.EventSent(ctx, true)
	m.Published(ctx, ResultAccepted, time.Millisecond)
}

func TestEndSpanRecordsError(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	_, span := tp.Tracer("test").Start(context.Background(), SpanPublish)
	EndSpan(span, errors.New("broker down"))
	_, ok := tp.Tracer("test").Start(context.Background(), "ok")
	EndSpan(ok, nil)

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 ended spans, got %d", len(spans))
	}
	if spans[0].Status().Code != otelcodes.Error || len(spans[0].Events()) == 0 {
		t.Errorf("expected error status and event, got %+v", spans[0].Status())
	}
	if spans[1].Status().Code == otelcodes.Error {
		t.Error("expected no error status on successful span")
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
	}
	for _, tc := range tests {
		if got := sampler(tc.rate).Description(); got != tc.want {
			t.Errorf("sampler(%v) = %s, want %s", tc.rate, got, tc.want)
		}
	}
	if got := sampler(0.5).Description(); got == "AlwaysOnSampler" || got == "AlwaysOffSampler" {
		t.Errorf("expected ratio sampler, got %s", got)
	}
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.ExportIntervalSeconds != 15 || cfg.SampleRate != 1.0 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	cfg.SampleRate = 2
	if err := cfg.Validate(); err == nil {
		t.Error("expected sample rate error")
	}
}

func TestTelemetryDisabled(t *testing.T) {
	tel := NewTelemetry(Config{}, "notifyd", "1.0.0", "test", logger.NewNop())
	if err := tel.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if h := tel.Health(context.Background()); h.Status != component.StatusHealthy || h.Message != "disabled" {
		t.Errorf("unexpected health %+v", h)
	}
	if err := tel.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestTelemetryEnabledStartStop(t *testing.T) {
	cfg := Config{Enabled: true, Insecure: true}
	cfg.ApplyDefaults()
	tel := NewTelemetry(cfg, "notifyd", "1.0.0", "test", logger.NewNop())
	if err := tel.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if tel.mp == nil || tel.tp == nil {
		t.Fatal("expected providers to be installed")
	}
	// No collector is listening; shutdown must still return within the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = tel.Stop(ctx)
}
