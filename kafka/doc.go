// Package kafka provides the Kafka producer that carries offline push
// requests. It wraps a segmentio/kafka-go Writer with TLS and SASL
// transport options, logging and component lifecycle.
//
//	kafka:
//	  enabled: true
//	  brokers: ["localhost:9092"]
//	  compression: snappy
package kafka
