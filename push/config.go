package push

import "fmt"

// Config is the push section of the service config.
type Config struct {
	Topic string `yaml:"topic" mapstructure:"topic"`
}

// ApplyDefaults applies default values.
func (c *Config) ApplyDefaults() {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Topic == "" {
		return fmt.Errorf("push.topic is required")
	}
	return nil
}
