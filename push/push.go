// Package push asks an external push service to notify recipients that
// have no live stream. Requests are produced to a Kafka topic keyed by
// recipient, so one recipient's requests stay ordered.
package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/notify/envelope"
	"github.com/kbukum/notify/gateway"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/presence"
	"github.com/kbukum/notify/resilience"
)

// DefaultTopic receives push requests.
const DefaultTopic = "notify.push"

// Writer is the producing side of Kafka.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// Request is the message consumed by the push service.
type Request struct {
	EventID     string    `json:"event_id"`
	RecipientID string    `json:"recipient_id"`
	Type        string    `json:"type"`
	Permalink   string    `json:"permalink,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Notifier implements gateway.Notifier.
type Notifier struct {
	presence presence.Tracker
	writer   Writer
	topic    string
	breaker  *resilience.CircuitBreaker
	log      *logger.Logger
}

var _ gateway.Notifier = (*Notifier)(nil)

// Option configures a Notifier.
type Option func(*Notifier)

// WithTopic overrides DefaultTopic.
func WithTopic(topic string) Option { return func(n *Notifier) { n.topic = topic } }

// WithBreaker guards the writer with cb.
func WithBreaker(cb *resilience.CircuitBreaker) Option { return func(n *Notifier) { n.breaker = cb } }

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(n *Notifier) { n.log = l } }

// NewNotifier creates a Notifier that checks p before writing to w.
func NewNotifier(p presence.Tracker, w Writer, opts ...Option) *Notifier {
	n := &Notifier{presence: p, writer: w, topic: DefaultTopic, log: logger.NewNop()}
	for _, opt := range opts {
		opt(n)
	}
	if n.breaker == nil {
		n.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "push"})
	}
	n.log = n.log.WithComponent("push")
	return n
}

// NotifyIfOffline produces a push request unless the recipient has a live
// session somewhere. A presence lookup failure is treated as offline.
func (n *Notifier) NotifyIfOffline(ctx context.Context, env envelope.Envelope) error {
	online, err := n.presence.Online(ctx, env.RecipientID)
	if err != nil {
		n.log.Warn("presence lookup failed, sending push", logger.Fields(
			logger.FieldRecipientID, env.RecipientID,
			logger.FieldError, err.Error(),
		))
	} else if online {
		return nil
	}

	value, err := json.Marshal(Request{
		EventID:     env.ID,
		RecipientID: env.RecipientID,
		Type:        env.Type,
		Permalink:   env.Permalink,
		CreatedAt:   env.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal push request: %w", err)
	}

	msg := kafkago.Message{
		Topic: n.topic,
		Key:   []byte(env.RecipientID),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event-id", Value: []byte(env.ID)},
			{Key: "event-type", Value: []byte(env.Type)},
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: env.CreatedAt,
	}
	if err := n.breaker.Execute(func() error { return n.writer.WriteMessages(ctx, msg) }); err != nil {
		return fmt.Errorf("push %s: %w", env.ID, err)
	}

	n.log.Debug("push requested", logger.Fields(
		logger.FieldEventID, env.ID,
		logger.FieldRecipientID, env.RecipientID,
	))
	return nil
}
