package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/notify/broker"
	"github.com/kbukum/notify/envelope"
	"github.com/kbukum/notify/logger"
	"github.com/kbukum/notify/sse"
)

var errConnClosed = errors.New("connection closed")

// fakeConn records frames. When gate is set, writes after the first block
// until the gate is closed.
type fakeConn struct {
	mu      sync.Mutex
	frames  []sse.Event
	at      []time.Time
	notify  chan struct{}
	done    chan struct{}
	fail    bool
	gate    chan struct{}
	blocked chan sse.Event
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (c *fakeConn) Write(ev sse.Event) error {
	c.mu.Lock()
	if c.fail {
		c.mu.Unlock()
		return errConnClosed
	}
	gate := c.gate
	first := len(c.frames) == 0
	c.mu.Unlock()

	if gate != nil && !first {
		select {
		case c.blocked <- ev:
		default:
		}
		<-gate
	}

	c.mu.Lock()
	c.frames = append(c.frames, ev)
	c.at = append(c.at, time.Now())
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) disconnect() { close(c.done) }

func (c *fakeConn) setFail() {
	c.mu.Lock()
	c.fail = true
	c.mu.Unlock()
}

func (c *fakeConn) snapshot() ([]sse.Event, []time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sse.Event(nil), c.frames...), append([]time.Time(nil), c.at...)
}

// waitFrames waits until at least n frames were written.
func (c *fakeConn) waitFrames(t *testing.T, n int, timeout time.Duration) []sse.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		frames, _ := c.snapshot()
		if len(frames) >= n {
			return frames
		}
		select {
		case <-c.notify:
		case <-deadline:
			t.Fatalf("timed out waiting for %d frames, have %d: %+v", n, len(frames), frames)
		}
	}
}

func testSettings() Settings {
	return Settings{HeartbeatInterval: time.Hour, RetryHint: 1500 * time.Millisecond, QueueCapacity: 16}
}

func newTestStreamer(t *testing.T, settings Settings, opts ...Option) (*Streamer, *broker.Memory) {
	t.Helper()
	b := broker.NewMemory(logger.NewNop())
	t.Cleanup(func() { _ = b.Close() })
	s := NewStreamer(b, settings, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s, b
}

type runResult struct {
	err error
}

// startSession opens and runs a session, returning after the ready frame.
func startSession(t *testing.T, s *Streamer, recipient string, conn *fakeConn) (*Session, <-chan runResult) {
	t.Helper()
	sess, err := s.Open(context.Background(), recipient)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	done := make(chan runResult, 1)
	go func() {
		done <- runResult{err: sess.Run(context.Background(), conn)}
	}()
	conn.waitFrames(t, 1, time.Second)
	waitState(t, sess, StateStreaming)
	return sess, done
}

func waitState(t *testing.T, sess *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for sess.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("session state %s, want %s", sess.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitRun(t *testing.T, done <-chan runResult, within time.Duration) error {
	t.Helper()
	select {
	case r := <-done:
		return r.err
	case <-time.After(within):
		t.Fatalf("Run did not return within %s", within)
		return nil
	}
}

var testBuilder = envelope.NewBuilder(nil, nil)

func publishEnvelope(t *testing.T, b broker.Broker, recipient, typ, data string) envelope.Envelope {
	t.Helper()
	env := testBuilder.Build(envelope.Fields{Type: typ, RecipientID: recipient, Data: json.RawMessage(data)})
	payload, err := env.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Publish(context.Background(), broker.ChannelFor(recipient), payload); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	return env
}

func publishRaw(t *testing.T, b broker.Broker, recipient, payload string) {
	t.Helper()
	if err := b.Publish(context.Background(), broker.ChannelFor(recipient), []byte(payload)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
}

// scriptedBroker fails Subscribe or hands out controllable subscriptions.
type scriptedBroker struct {
	subscribeErr error
	sub          *scriptedSub
}

func (b *scriptedBroker) Publish(context.Context, string, []byte) error { return nil }

func (b *scriptedBroker) Subscribe(context.Context, string) (broker.Subscription, error) {
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	return b.sub, nil
}

type scriptedSub struct {
	msgs   chan []byte
	fail   chan error
	mu     sync.Mutex
	closes int
}

func newScriptedSub() *scriptedSub {
	return &scriptedSub{msgs: make(chan []byte, 16), fail: make(chan error, 1)}
}

func (s *scriptedSub) Receive(ctx context.Context) ([]byte, error) {
	select {
	case m := <-s.msgs:
		return m, nil
	case err := <-s.fail:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *scriptedSub) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	return nil
}

func (s *scriptedSub) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
