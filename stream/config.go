package stream

import (
	"fmt"
	"time"
)

// Defaults.
const (
	DefaultHeartbeatIntervalSeconds = 20
	DefaultRetryHintMilliseconds    = 1500
	DefaultQueueCapacity            = 256
)

// Config is the stream section of the service config.
type Config struct {
	HeartbeatIntervalSeconds int `yaml:"heartbeat_interval_seconds" mapstructure:"heartbeat_interval_seconds"`
	RetryHintMilliseconds    int `yaml:"retry_hint_milliseconds" mapstructure:"retry_hint_milliseconds"`
	QueueCapacity            int `yaml:"queue_capacity" mapstructure:"queue_capacity"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.HeartbeatIntervalSeconds == 0 {
		c.HeartbeatIntervalSeconds = DefaultHeartbeatIntervalSeconds
	}
	if c.RetryHintMilliseconds == 0 {
		c.RetryHintMilliseconds = DefaultRetryHintMilliseconds
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.HeartbeatIntervalSeconds < 1 {
		return fmt.Errorf("stream.heartbeat_interval_seconds must be at least 1 (got: %d)", c.HeartbeatIntervalSeconds)
	}
	if c.RetryHintMilliseconds < 0 {
		return fmt.Errorf("stream.retry_hint_milliseconds must not be negative (got: %d)", c.RetryHintMilliseconds)
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("stream.queue_capacity must be at least 1 (got: %d)", c.QueueCapacity)
	}
	return nil
}

// Settings returns the runtime settings for this config.
func (c Config) Settings() Settings {
	return Settings{
		HeartbeatInterval: time.Duration(c.HeartbeatIntervalSeconds) * time.Second,
		RetryHint:         time.Duration(c.RetryHintMilliseconds) * time.Millisecond,
		QueueCapacity:     c.QueueCapacity,
	}
}

// Settings are the per-session parameters.
type Settings struct {
	HeartbeatInterval time.Duration
	RetryHint         time.Duration
	QueueCapacity     int
}

func (s Settings) withDefaults() Settings {
	if s.HeartbeatInterval <= 0 {
		s.HeartbeatInterval = DefaultHeartbeatIntervalSeconds * time.Second
	}
	if s.RetryHint < 0 {
		s.RetryHint = 0
	}
	if s.QueueCapacity <= 0 {
		s.QueueCapacity = DefaultQueueCapacity
	}
	return s
}
