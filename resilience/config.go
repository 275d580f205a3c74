package resilience

import (
	"fmt"
	"time"
)

// Config is the resilience section of the service config.
type Config struct {
	// MaxAttempts includes the first call.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// InitialBackoff is the delay before the first retry (e.g. "100ms").
	InitialBackoff string `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	// MaxBackoff caps the delay between retries (e.g. "2s").
	MaxBackoff string `yaml:"max_backoff" mapstructure:"max_backoff"`
	// BreakerFailures is the number of consecutive failures that open a breaker.
	BreakerFailures int `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	// BreakerCooldown is how long an open breaker rejects calls (e.g. "30s").
	BreakerCooldown string `yaml:"breaker_cooldown" mapstructure:"breaker_cooldown"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff == "" {
		c.InitialBackoff = "100ms"
	}
	if c.MaxBackoff == "" {
		c.MaxBackoff = "2s"
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerCooldown == "" {
		c.BreakerCooldown = "30s"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("resilience.max_attempts must be at least 1 (got: %d)", c.MaxAttempts)
	}
	if c.BreakerFailures < 1 {
		return fmt.Errorf("resilience.breaker_failures must be at least 1 (got: %d)", c.BreakerFailures)
	}
	for name, v := range map[string]string{
		"initial_backoff":  c.InitialBackoff,
		"max_backoff":      c.MaxBackoff,
		"breaker_cooldown": c.BreakerCooldown,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("resilience.%s: invalid duration %q: %w", name, v, err)
		}
	}
	return nil
}

// RetryPolicy returns the retry settings for this config.
func (c Config) RetryPolicy() RetryConfig {
	initial, _ := time.ParseDuration(c.InitialBackoff)
	maxBackoff, _ := time.ParseDuration(c.MaxBackoff)
	return RetryConfig{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: initial,
		MaxBackoff:     maxBackoff,
		BackoffFactor:  2.0,
		Jitter:         0.1,
	}
}

// BreakerConfig returns breaker settings named name.
func (c Config) BreakerConfig(name string) CircuitBreakerConfig {
	cooldown, _ := time.ParseDuration(c.BreakerCooldown)
	return CircuitBreakerConfig{
		Name:        name,
		MaxFailures: c.BreakerFailures,
		Cooldown:    cooldown,
	}
}
