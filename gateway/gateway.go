package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/notify/broker"
	"github.com/kbukum/notify/component"
	"github.com/kbukum/notify/envelope"
	"github.com/kbukum/notify/errors"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/observability"
	"github.com/kbukum/notify/resilience"
)

// Store persists envelopes published with persistent set.
type Store interface {
	Save(ctx context.Context, env envelope.Envelope) error
}

// Notifier sends an out-of-band push when the recipient has no live stream.
type Notifier interface {
	NotifyIfOffline(ctx context.Context, env envelope.Envelope) error
}

// Side effect kinds, used in logs and metrics.
const (
	KindStore = "store"
	KindPush  = "push"
)

// Gateway publishes envelopes and runs their side effects.
type Gateway struct {
	broker   broker.Broker
	builder  *envelope.Builder
	store    Store
	notifier Notifier
	retry    resilience.RetryConfig
	timeout  time.Duration
	metrics  *observability.Metrics
	log      *logger.Logger

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

var (
	_ component.Component   = (*Gateway)(nil)
	_ component.Describable = (*Gateway)(nil)
)

// Option configures a Gateway.
type Option func(*Gateway)

// WithStore persists envelopes published with persistent set.
func WithStore(s Store) Option { return func(g *Gateway) { g.store = s } }

// WithNotifier hands every envelope to n.
func WithNotifier(n Notifier) Option { return func(g *Gateway) { g.notifier = n } }

// WithRetry sets the retry policy for side effects.
func WithRetry(cfg resilience.RetryConfig) Option { return func(g *Gateway) { g.retry = cfg } }

// WithSideEffectTimeout bounds each side effect, retries included.
func WithSideEffectTimeout(d time.Duration) Option { return func(g *Gateway) { g.timeout = d } }

// WithBuilder sets the envelope builder.
func WithBuilder(b *envelope.Builder) Option { return func(g *Gateway) { g.builder = b } }

// WithMetrics records publish metrics on m.
func WithMetrics(m *observability.Metrics) Option { return func(g *Gateway) { g.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(g *Gateway) { g.log = l } }

// New creates a Gateway publishing on b.
func New(b broker.Broker, opts ...Option) *Gateway {
	g := &Gateway{
		broker:  b,
		retry:   resilience.DefaultRetryConfig(),
		timeout: DefaultSideEffectTimeoutSeconds * time.Second,
		log:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.builder == nil {
		g.builder = envelope.NewBuilder(nil, nil)
	}
	if g.metrics == nil {
		g.metrics = observability.NopMetrics()
	}
	g.log = g.log.WithComponent("gateway")
	return g
}

// Publish validates req, publishes the resulting envelope and schedules its
// side effects. The returned envelope's ID is the acceptance id.
func (g *Gateway) Publish(ctx context.Context, req Request) (env envelope.Envelope, err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, observability.SpanPublish, trace.WithAttributes(
		attribute.String(observability.AttrEventType, req.Type),
		attribute.String(observability.AttrRecipientID, req.RecipientID),
		attribute.Bool(observability.AttrPersistent, req.Persistent),
	))
	result := observability.ResultAccepted
	defer func() {
		g.metrics.Published(ctx, result, time.Since(start))
		observability.EndSpan(span, err)
	}()

	if err = req.Validate(); err != nil {
		result = observability.ResultRejected
		return envelope.Envelope{}, err
	}

	env = g.builder.Build(req.fields())
	span.SetAttributes(attribute.String(observability.AttrEventID, env.ID))

	payload, mErr := env.Marshal()
	if mErr != nil {
		result = observability.ResultFailed
		err = errors.Internal(fmt.Errorf("marshal envelope: %w", mErr))
		return envelope.Envelope{}, err
	}

	if pErr := g.broker.Publish(ctx, broker.ChannelFor(env.RecipientID), payload); pErr != nil {
		result = observability.ResultFailed
		g.log.Warn("publish failed", logger.Fields(
			logger.FieldEventID, env.ID,
			logger.FieldRecipientID, env.RecipientID,
			logger.FieldError, pErr.Error(),
		))
		err = errors.ServiceUnavailable("event broker").WithCause(pErr)
		return envelope.Envelope{}, err
	}

	g.log.Debug("event published", logger.Fields(
		logger.FieldEventID, env.ID,
		logger.FieldEventType, env.Type,
		logger.FieldRecipientID, env.RecipientID,
	))
	g.launch(ctx, env, req.Persistent)
	return env, nil
}

// launch starts the side effects for env. They inherit ctx's values, such as
// the publish span, but not its cancellation.
func (g *Gateway) launch(ctx context.Context, env envelope.Envelope, persistent bool) {
	type job struct {
		kind string
		span string
		fn   func(context.Context, envelope.Envelope) error
	}
	var jobs []job
	if persistent && g.store != nil {
		jobs = append(jobs, job{KindStore, observability.SpanSideStore, g.store.Save})
	}
	if g.notifier != nil {
		jobs = append(jobs, job{KindPush, observability.SpanSidePush, g.notifier.NotifyIfOffline})
	}
	if len(jobs) == 0 {
		return
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		g.log.Warn("gateway closed, side effects skipped", logger.Fields(logger.FieldEventID, env.ID))
		return
	}
	g.pending.Add(len(jobs))
	g.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	for _, j := range jobs {
		go g.run(detached, j.kind, j.span, env, j.fn)
	}
}

func (g *Gateway) run(parent context.Context, kind, spanName string, env envelope.Envelope, fn func(context.Context, envelope.Envelope) error) {
	defer g.pending.Done()

	ctx, cancel := context.WithTimeout(parent, g.timeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, spanName,
		trace.WithAttributes(attribute.String(observability.AttrEventID, env.ID)))

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		observability.EndSpan(span, err)
		if err != nil {
			g.metrics.SideEffectFailed(ctx, kind)
			g.log.Warn("side effect failed", logger.Fields(
				logger.FieldOperation, kind,
				logger.FieldEventID, env.ID,
				logger.FieldRecipientID, env.RecipientID,
				logger.FieldError, err.Error(),
			))
		}
	}()

	err = resilience.RetryFunc(ctx, g.retry, func() error {
		return fn(ctx, env)
	})
}

// Close stops accepting side effects and waits for the running ones,
// bounded by ctx. Publishing still works after Close.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for side effects: %w", ctx.Err())
	}
}

// Name implements component.Component.
func (g *Gateway) Name() string { return "gateway" }

// Start implements component.Component.
func (g *Gateway) Start(context.Context) error { return nil }

// Stop waits for in-flight side effects.
func (g *Gateway) Stop(ctx context.Context) error { return g.Close(ctx) }

// Health implements component.Component.
func (g *Gateway) Health(context.Context) component.Health {
	return component.Health{Name: g.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (g *Gateway) Describe() component.Description {
	return component.Description{
		Name:    "Gateway",
		Type:    "publish",
		Details: fmt.Sprintf("store=%t push=%t timeout=%s", g.store != nil, g.notifier != nil, g.timeout),
	}
}
