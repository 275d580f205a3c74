package observability

import (
	"context"
	stderrors "errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/notify/component"
	"github.com/kbukum/notify/logger"
)

// Telemetry installs and shuts down the exporters.
type Telemetry struct {
	cfg         Config
	service     string
	version     string
	environment string
	log         *logger.Logger

	mp *sdkmetric.MeterProvider
	tp *sdktrace.TracerProvider
}

var (
	_ component.Component   = (*Telemetry)(nil)
	_ component.Describable = (*Telemetry)(nil)
)

// NewTelemetry creates the telemetry component.
func NewTelemetry(cfg Config, service, version, environment string, log *logger.Logger) *Telemetry {
	return &Telemetry{
		cfg:         cfg,
		service:     service,
		version:     version,
		environment: environment,
		log:         log.WithComponent("telemetry"),
	}
}

// Name implements component.Component.
func (t *Telemetry) Name() string { return "telemetry" }

// Start installs exporters when enabled. Disabled telemetry leaves the
// global no-op providers in place.
func (t *Telemetry) Start(ctx context.Context) error {
	if !t.cfg.Enabled {
		t.log.Info("telemetry disabled")
		return nil
	}
	res, err := NewResource(t.service, t.version, t.environment)
	if err != nil {
		return fmt.Errorf("creating resource: %w", err)
	}
	if t.mp, err = InitMeter(ctx, t.cfg, res); err != nil {
		return err
	}
	if t.tp, err = InitTracer(ctx, t.cfg, res); err != nil {
		return err
	}
	t.log.Info("telemetry initialized", logger.Fields("endpoint", t.cfg.Endpoint, "sample_rate", t.cfg.SampleRate))
	return nil
}

// Stop flushes and shuts down exporters.
func (t *Telemetry) Stop(ctx context.Context) error {
	var errs []error
	if t.tp != nil {
		errs = append(errs, t.tp.Shutdown(ctx))
	}
	if t.mp != nil {
		errs = append(errs, t.mp.Shutdown(ctx))
	}
	return stderrors.Join(errs...)
}

// Health implements component.Component.
func (t *Telemetry) Health(context.Context) component.Health {
	msg := "disabled"
	if t.cfg.Enabled {
		msg = "exporting to " + t.cfg.Endpoint
	}
	return component.Health{Name: t.Name(), Status: component.StatusHealthy, Message: msg}
}

// Describe implements component.Describable.
func (t *Telemetry) Describe() component.Description {
	details := "disabled"
	if t.cfg.Enabled {
		details = fmt.Sprintf("otlp/http %s sample=%.2f", t.cfg.Endpoint, t.cfg.SampleRate)
	}
	return component.Description{Name: "Telemetry", Type: "otel", Details: details}
}
