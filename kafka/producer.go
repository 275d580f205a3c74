package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/notify/component"
	"github.com/kbukum/notify/logger"
)

// ErrProducerClosed is returned by WriteMessages after Stop.
var ErrProducerClosed = errors.New("kafka: producer closed")

// Producer wraps a kafka-go Writer. The writer connects lazily, so a
// Producer can start while the cluster is unreachable.
type Producer struct {
	cfg    Config
	log    *logger.Logger
	mu     sync.RWMutex
	writer *kafkago.Writer
	closed bool

	lastErrMu sync.Mutex
	lastErr   error
	lastErrAt time.Time
}

var (
	_ component.Component   = (*Producer)(nil)
	_ component.Describable = (*Producer)(nil)
)

// NewProducer validates cfg and builds the writer.
func NewProducer(cfg Config, log *logger.Logger) (*Producer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka producer config: %w", err)
	}

	p := &Producer{cfg: cfg, log: log.WithComponent("kafka.producer")}
	transport, err := newTransport(&p.cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer transport: %w", err)
	}

	p.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Transport:    transport,
		Balancer:     &kafkago.Hash{},
		MaxAttempts:  cfg.MaxAttempts,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: duration(cfg.BatchTimeout),
		RequiredAcks: kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:  compressionCodecs[cfg.Compression],
		WriteTimeout: duration(cfg.WriteTimeout),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			p.log.Error("writer: " + fmt.Sprintf(msg, args...))
		}),
	}
	return p, nil
}

// WriteMessages sends msgs and waits for the configured acks.
func (p *Producer) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.lastErrMu.Lock()
		p.lastErr, p.lastErrAt = err, time.Now()
		p.lastErrMu.Unlock()
		return fmt.Errorf("kafka write: %w", err)
	}
	p.lastErrMu.Lock()
	p.lastErr = nil
	p.lastErrMu.Unlock()
	return nil
}

// Name returns the component name.
func (p *Producer) Name() string { return "kafka" }

// Start logs the producer settings. No connection is made until the first write.
func (p *Producer) Start(context.Context) error {
	p.log.Info("Kafka producer initialized", logger.Fields(
		"brokers", p.cfg.Brokers,
		"compression", p.cfg.Compression,
	))
	return nil
}

// Stop flushes pending messages and closes the writer.
func (p *Producer) Stop(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.log.Info("Kafka producer closing")
	return p.writer.Close()
}

// Health reports degraded while the most recent write failed.
func (p *Producer) Health(context.Context) component.Health {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return component.Health{Name: p.Name(), Status: component.StatusUnhealthy, Message: "producer closed"}
	}

	p.lastErrMu.Lock()
	defer p.lastErrMu.Unlock()
	if p.lastErr != nil {
		return component.Health{
			Name:    p.Name(),
			Status:  component.StatusDegraded,
			Message: fmt.Sprintf("last write failed %s ago: %v", time.Since(p.lastErrAt).Round(time.Second), p.lastErr),
		}
	}
	return component.Health{Name: p.Name(), Status: component.StatusHealthy}
}

// Describe returns infrastructure summary info for the bootstrap display.
func (p *Producer) Describe() component.Description {
	return component.Description{
		Name:    "Kafka",
		Type:    "kafka",
		Details: fmt.Sprintf("brokers=%v compression=%s", p.cfg.Brokers, p.cfg.Compression),
	}
}
