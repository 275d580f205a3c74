package gateway

import (
	"fmt"
	"time"
)

// DefaultSideEffectTimeoutSeconds bounds one background store write or push.
const DefaultSideEffectTimeoutSeconds = 10

// Config is the gateway section of the service config.
type Config struct {
	SideEffectTimeoutSeconds int `yaml:"side_effect_timeout_seconds" mapstructure:"side_effect_timeout_seconds"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.SideEffectTimeoutSeconds == 0 {
		c.SideEffectTimeoutSeconds = DefaultSideEffectTimeoutSeconds
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.SideEffectTimeoutSeconds < 1 {
		return fmt.Errorf("gateway.side_effect_timeout_seconds must be at least 1 (got: %d)", c.SideEffectTimeoutSeconds)
	}
	return nil
}

// SideEffectTimeout returns the configured timeout.
func (c Config) SideEffectTimeout() time.Duration {
	return time.Duration(c.SideEffectTimeoutSeconds) * time.Second
}
