package main

import (
	"fmt"

	"github.com/kbukum/notify/auth"
	"github.com/kbukum/notify/config"
	"github.com/kbukum/notify/database"
	"github.com/kbukum/notify/gateway"
	"github.com/kbukum/notify/kafka"
	"github.com/kbukum/notify/observability"
	"github.com/kbukum/notify/push"
	"github.com/kbukum/notify/redis"
	"github.com/kbukum/notify/resilience"
	"github.com/kbukum/notify/server"
	"github.com/kbukum/notify/stream"
)

const serviceName = "notifyd"

// Broker drivers.
const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// BrokerConfig selects the pub/sub backend.
type BrokerConfig struct {
	// Driver is redis (multi-replica) or memory (single process).
	Driver string `yaml:"driver" mapstructure:"driver"`
}

// Config is the notifyd service config.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server     server.Config        `yaml:"server" mapstructure:"server"`
	Auth       auth.Config          `yaml:"auth" mapstructure:"auth"`
	Stream     stream.Config        `yaml:"stream" mapstructure:"stream"`
	Gateway    gateway.Config       `yaml:"gateway" mapstructure:"gateway"`
	Broker     BrokerConfig         `yaml:"broker" mapstructure:"broker"`
	Redis      redis.Config         `yaml:"redis" mapstructure:"redis"`
	Database   database.Config      `yaml:"database" mapstructure:"database"`
	Kafka      kafka.Config         `yaml:"kafka" mapstructure:"kafka"`
	Push       push.Config          `yaml:"push" mapstructure:"push"`
	Resilience resilience.Config    `yaml:"resilience" mapstructure:"resilience"`
	Telemetry  observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
}

// ApplyDefaults applies defaults to every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Stream.ApplyDefaults()
	c.Gateway.ApplyDefaults()
	if c.Broker.Driver == "" {
		c.Broker.Driver = DriverRedis
	}
	c.Redis.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Kafka.ApplyDefaults()
	c.Push.ApplyDefaults()
	c.Resilience.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
}

// Validate validates every section. Redis is checked only when it is the
// broker driver.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	switch c.Broker.Driver {
	case DriverRedis:
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("broker.driver must be %q or %q (got: %s)", DriverRedis, DriverMemory, c.Broker.Driver)
	}
	// Sections whose messages lack their own prefix are wrapped.
	for _, s := range []struct {
		prefix string
		v      interface{ Validate() error }
	}{
		{"", &c.Server},
		{"", &c.Auth},
		{"", &c.Stream},
		{"", &c.Gateway},
		{"database", &c.Database},
		{"kafka", &c.Kafka},
		{"", &c.Push},
		{"", &c.Resilience},
		{"", &c.Telemetry},
	} {
		if err := s.v.Validate(); err != nil {
			if s.prefix != "" {
				return fmt.Errorf("%s: %w", s.prefix, err)
			}
			return err
		}
	}
	return nil
}
