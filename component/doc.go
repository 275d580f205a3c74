// Package component defines lifecycle-managed infrastructure (Redis, the
// database, the Kafka writer, the HTTP server) and a Registry that starts
// them in order, stops them in reverse and aggregates their health.
package component
