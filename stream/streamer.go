package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/notify/broker"
	"github.com/kbukum/notify/component"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/observability"
	"github.com/kbukum/notify/presence"
)

// Streamer opens sessions against a shared broker and tracks them until
// they close.
type Streamer struct {
	broker   broker.Broker
	settings Settings
	presence presence.Tracker
	metrics  *observability.Metrics
	log      *logger.Logger

	shutdown     chan struct{}
	shutdownOnce sync.Once

	mu       sync.Mutex
	sessions map[*Session]struct{}
	idle     *sync.Cond
}

var (
	_ component.Component   = (*Streamer)(nil)
	_ component.Describable = (*Streamer)(nil)
)

// Option configures a Streamer.
type Option func(*Streamer)

// WithPresence records joins and leaves on t.
func WithPresence(t presence.Tracker) Option {
	return func(s *Streamer) { s.presence = t }
}

// WithMetrics records session metrics on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Streamer) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Streamer) { s.log = l }
}

// NewStreamer creates a Streamer.
func NewStreamer(b broker.Broker, settings Settings, opts ...Option) *Streamer {
	s := &Streamer{
		broker:   b,
		settings: settings.withDefaults(),
		log:      logger.NewNop(),
		shutdown: make(chan struct{}),
		sessions: make(map[*Session]struct{}),
	}
	s.idle = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observability.NopMetrics()
	}
	s.log = s.log.WithComponent("stream")
	return s
}

// Open subscribes to the recipient's channel. Nothing is written to the
// client; on error the caller can still reply with an error status.
func (s *Streamer) Open(ctx context.Context, recipientID string) (*Session, error) {
	select {
	case <-s.shutdown:
		return nil, broker.ErrClosed
	default:
	}

	channel := broker.ChannelFor(recipientID)
	sub, err := s.broker.Subscribe(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	id := uuid.NewString()
	sess := &Session{
		id:          id,
		recipientID: recipientID,
		channel:     channel,
		settings:    s.settings,
		sub:         sub,
		streamer:    s,
		openedAt:    time.Now(),
		queue:       make(chan queued, s.settings.QueueCapacity),
		readerErr:   make(chan error, 1),
		readerDone:  make(chan struct{}),
		closing:     make(chan struct{}),
		log: s.log.WithFields(logger.Fields(
			logger.FieldSessionID, id,
			logger.FieldRecipientID, recipientID,
		)),
	}

	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	s.metrics.SessionOpened(ctx)
	if s.presence != nil {
		if err := s.presence.Join(ctx, recipientID); err != nil {
			sess.log.Warn("presence join failed", logger.Fields("error", err.Error()))
		}
	}
	sess.log.Info("session opened")
	return sess, nil
}

func (s *Streamer) release(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if s.presence != nil {
		if err := s.presence.Leave(ctx, sess.recipientID); err != nil {
			sess.log.Warn("presence leave failed", logger.Fields("error", err.Error()))
		}
	}
	s.metrics.SessionClosed(ctx)

	s.mu.Lock()
	delete(s.sessions, sess)
	if len(s.sessions) == 0 {
		s.idle.Broadcast()
	}
	s.mu.Unlock()
}

// Active returns the number of open sessions.
func (s *Streamer) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Name implements component.Component.
func (s *Streamer) Name() string { return "stream" }

// Start implements component.Component.
func (s *Streamer) Start(context.Context) error { return nil }

// Stop signals every running session to end and waits for all sessions to
// close, bounded by ctx. Sessions opened but never run are closed here.
func (s *Streamer) Stop(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.shutdown) })

	s.mu.Lock()
	pending := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		if sess.State() == StateConnecting {
			pending = append(pending, sess)
		}
	}
	s.mu.Unlock()
	for _, sess := range pending {
		_ = sess.Close()
	}

	done := make(chan struct{})
	// If ctx expires first this goroutine stays parked in idle.Wait until
	// the last session closes. At process exit that never matters.
	go func() {
		s.mu.Lock()
		for len(s.sessions) > 0 {
			s.idle.Wait()
		}
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d sessions: %w", s.Active(), ctx.Err())
	}
}

// Health implements component.Component.
func (s *Streamer) Health(context.Context) component.Health {
	status := component.StatusHealthy
	select {
	case <-s.shutdown:
		status = component.StatusUnhealthy
	default:
	}
	return component.Health{Name: s.Name(), Status: status, Message: fmt.Sprintf("%d active sessions", s.Active())}
}

// Describe implements component.Describable.
func (s *Streamer) Describe() component.Description {
	return component.Description{
		Name: "Streams",
		Type: "sse",
		Details: fmt.Sprintf("heartbeat=%s retry=%s queue=%d",
			s.settings.HeartbeatInterval, s.settings.RetryHint, s.settings.QueueCapacity),
	}
}
