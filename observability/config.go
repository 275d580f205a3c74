package observability

import "fmt"

// Config configures telemetry export.
type Config struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Endpoint is the OTLP HTTP host:port.
	Endpoint              string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure              bool    `yaml:"insecure" mapstructure:"insecure"`
	ExportIntervalSeconds int     `yaml:"export_interval_seconds" mapstructure:"export_interval_seconds"`
	SampleRate            float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.ExportIntervalSeconds <= 0 {
		c.ExportIntervalSeconds = 15
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be within [0, 1] (got: %v)", c.SampleRate)
	}
	return nil
}
