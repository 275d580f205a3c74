// Package config loads service configuration from a YAML file, an optional
// .env file and the process environment.
//
// Values are layered in that order: config.yml provides the base, then every
// environment variable is bound to the nested keys it could address, so
// STREAM_HEARTBEAT_INTERVAL_SECONDS overrides stream.heartbeat_interval_seconds.
//
//	var cfg MyConfig
//	err := config.LoadConfig("notifyd", &cfg)
package config
