package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// compressionCodecs maps config names to writer codecs.
var compressionCodecs = map[string]kafkago.Compression{
	"none":   0,
	"gzip":   kafkago.Gzip,
	"snappy": kafkago.Snappy,
	"lz4":    kafkago.Lz4,
	"zstd":   kafkago.Zstd,
}

var scramAlgorithms = map[string]scram.Algorithm{
	"SCRAM-SHA-256": scram.SHA256,
	"SCRAM-SHA-512": scram.SHA512,
}

// newTransport builds the writer transport from a validated config.
func newTransport(cfg *Config) (*kafkago.Transport, error) {
	t := &kafkago.Transport{
		ClientID:    "notify",
		IdleTimeout: duration(cfg.IdleTimeout),
		MetadataTTL: duration(cfg.MetadataTTL),
	}
	if cfg.EnableTLS {
		tc, err := cfg.tlsConfig()
		if err != nil {
			return nil, fmt.Errorf("kafka tls: %w", err)
		}
		t.TLS = tc
	}
	if cfg.EnableSASL {
		m, err := cfg.saslMechanism()
		if err != nil {
			return nil, fmt.Errorf("kafka sasl: %w", err)
		}
		t.SASL = m
	}
	return t, nil
}

func (c *Config) tlsConfig() (*tls.Config, error) {
	tc := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSSkipVerify}

	if c.TLSCAFile != "" {
		pem, err := os.ReadFile(c.TLSCAFile)
		if err != nil {
			return nil, err
		}
		tc.RootCAs = x509.NewCertPool()
		if !tc.RootCAs.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", c.TLSCAFile)
		}
	}
	if c.TLSCertFile != "" || c.TLSKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.TLSCertFile, c.TLSKeyFile)
		if err != nil {
			return nil, err
		}
		tc.Certificates = append(tc.Certificates, cert)
	}
	return tc, nil
}

func (c *Config) saslMechanism() (sasl.Mechanism, error) {
	if c.SASLMechanism == "PLAIN" {
		return plain.Mechanism{Username: c.Username, Password: c.Password}, nil
	}
	algo, ok := scramAlgorithms[c.SASLMechanism]
	if !ok {
		return nil, fmt.Errorf("unsupported mechanism %q", c.SASLMechanism)
	}
	return scram.Mechanism(algo, c.Username, c.Password)
}
