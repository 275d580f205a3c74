// Package observability wires OpenTelemetry metrics and traces for notify.
//
// Telemetry is a component that installs OTLP/HTTP exporters when enabled.
// Metrics holds the delivery instruments; it works against any
// metric.Meter, including the no-op meter used when telemetry is disabled.
package observability
