package stream

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/notify/broker"
	"github.com/kbukum/notify/envelope"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/sse"
)

// State is the lifecycle stage of a Session.
type State int32

const (
	StateConnecting State = iota
	StateStreaming
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ReadyData is the payload of the event sent when a stream opens.
const ReadyData = "stream-open"

// ErrSessionClosed is returned by Run on a session that was already closed.
var ErrSessionClosed = stderrors.New("stream: session closed")

type queued struct {
	event sse.Event
	raw   bool
}

// Session streams one recipient's channel to one connection.
type Session struct {
	id          string
	recipientID string
	channel     string
	settings    Settings
	sub         broker.Subscription
	streamer    *Streamer
	log         *logger.Logger
	openedAt    time.Time

	state      atomic.Int32
	queue      chan queued
	drops      atomic.Int64
	readerErr  chan error
	readerDone chan struct{}
	closing    chan struct{}

	mu           sync.Mutex
	cancelReader context.CancelFunc

	closeOnce sync.Once
}

// ID returns the session id used in logs.
func (s *Session) ID() string { return s.id }

// RecipientID returns the recipient this session streams for.
func (s *Session) RecipientID() string { return s.recipientID }

// State returns the current lifecycle stage.
func (s *Session) State() State { return State(s.state.Load()) }

// Dropped returns how many events were discarded because the queue was full.
func (s *Session) Dropped() int64 { return s.drops.Load() }

// Run writes the ready event, starts the reader and drains the queue until
// the client disconnects, ctx ends, the streamer shuts down or the
// subscription fails. Only a subscription failure is returned as an error.
// The session is closed when Run returns.
func (s *Session) Run(ctx context.Context, conn Conn) error {
	defer s.Close()

	if s.State() != StateConnecting {
		return ErrSessionClosed
	}

	ready := sse.Event{Event: "ready", Data: ReadyData}
	if ms := int(s.settings.RetryHint / time.Millisecond); ms > 0 {
		ready.Retry = ms
	}
	if err := conn.Write(ready); err != nil {
		s.log.Debug("client gone before ready", logger.Fields("error", err.Error()))
		return nil
	}

	s.mu.Lock()
	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateStreaming)) {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	readerCtx, cancel := context.WithCancel(context.Background())
	s.cancelReader = cancel
	go s.read(readerCtx)
	s.mu.Unlock()

	return s.drain(ctx, conn)
}

func (s *Session) read(ctx context.Context) {
	defer close(s.readerDone)
	for {
		msg, err := s.sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.readerErr <- fmt.Errorf("receive on %s: %w", s.channel, err)
			return
		}
		s.enqueue(toQueued(envelope.Decode(msg)))
	}
}

// enqueue never blocks: when the queue is full the oldest entry is dropped.
// The reader is the only sender, so at most one retry follows a drop.
func (s *Session) enqueue(item queued) {
	for {
		select {
		case s.queue <- item:
			return
		default:
		}
		select {
		case <-s.queue:
			s.drops.Add(1)
			s.streamer.metrics.EventsDropped(context.Background(), 1)
		default:
		}
	}
}

func toQueued(r envelope.Result) queued {
	switch r := r.(type) {
	case envelope.Decoded:
		return queued{event: sse.Event{
			ID:    r.Envelope.ID,
			Event: r.Envelope.EventType(),
			Data:  string(r.Payload),
		}}
	case envelope.Raw:
		return queued{event: sse.Event{Data: string(r.Payload)}, raw: true}
	default:
		panic(fmt.Sprintf("stream: unexpected decode result %T", r))
	}
}

func (s *Session) drain(ctx context.Context, conn Conn) error {
	interval := s.settings.HeartbeatInterval
	heartbeat := time.NewTimer(interval)
	defer heartbeat.Stop()

	metrics := s.streamer.metrics
	for {
		select {
		case item := <-s.queue:
			if err := conn.Write(item.event); err != nil {
				s.log.Debug("write failed, treating as disconnect", logger.Fields("error", err.Error()))
				return nil
			}
			metrics.EventSent(ctx, item.raw)
			heartbeat.Reset(interval)

		case <-heartbeat.C:
			if err := conn.Write(sse.KeepaliveEvent()); err != nil {
				s.log.Debug("heartbeat failed, treating as disconnect", logger.Fields("error", err.Error()))
				return nil
			}
			metrics.HeartbeatSent(ctx)
			heartbeat.Reset(interval)

		case err := <-s.readerErr:
			s.flush(ctx, conn)
			return err

		case <-conn.Done():
			return nil
		case <-ctx.Done():
			return nil
		case <-s.streamer.shutdown:
			return nil
		case <-s.closing:
			return nil
		}
	}
}

// flush writes whatever is already queued, without waiting for more.
func (s *Session) flush(ctx context.Context, conn Conn) {
	for {
		select {
		case item := <-s.queue:
			if conn.Write(item.event) != nil {
				return
			}
			s.streamer.metrics.EventSent(ctx, item.raw)
		default:
			return
		}
	}
}

// Close tears the session down: it stops the reader, waits for it and
// releases the subscription. Safe to call more than once and from any
// goroutine.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state.Store(int32(StateClosing))
		close(s.closing)
		cancel := s.cancelReader
		s.mu.Unlock()
		if cancel != nil {
			cancel()
			<-s.readerDone
		}

		err = s.sub.Close()
		s.state.Store(int32(StateClosed))
		s.streamer.release(s)

		s.log.Info("session closed", logger.Fields(
			"dropped", s.drops.Load(),
			logger.FieldDuration, time.Since(s.openedAt).Milliseconds(),
		))
	})
	return err
}
