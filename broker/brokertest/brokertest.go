// Package brokertest holds a conformance suite run against every
// broker.Broker implementation.
package brokertest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kbukum/notify/broker"
)

// Factory returns a fresh broker for one subtest.
type Factory func(t *testing.T) broker.Broker

// ReceiveTimeout bounds every blocking Receive in the suite.
const ReceiveTimeout = 2 * time.Second

// Run runs the conformance suite.
func Run(t *testing.T, newBroker Factory) {
	t.Run("FanOut", func(t *testing.T) { testFanOut(t, newBroker(t)) })
	t.Run("NoReplay", func(t *testing.T) { testNoReplay(t, newBroker(t)) })
	t.Run("ChannelIsolation", func(t *testing.T) { testChannelIsolation(t, newBroker(t)) })
	t.Run("Ordering", func(t *testing.T) { testOrdering(t, newBroker(t)) })
	t.Run("ReceiveCancellable", func(t *testing.T) { testReceiveCancellable(t, newBroker(t)) })
	t.Run("CloseIdempotent", func(t *testing.T) { testCloseIdempotent(t, newBroker(t)) })
}

// Receive reads one message or fails the test after ReceiveTimeout.
func Receive(t *testing.T, sub broker.Subscription) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), ReceiveTimeout)
	defer cancel()
	msg, err := sub.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	return msg
}

// ExpectNothing fails if sub yields a message within wait.
func ExpectNothing(t *testing.T, sub broker.Subscription, wait time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	msg, err := sub.Receive(ctx)
	if err == nil {
		t.Fatalf("expected no message, got %q", msg)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func subscribe(t *testing.T, b broker.Broker, channel string) broker.Subscription {
	t.Helper()
	sub, err := b.Subscribe(context.Background(), channel)
	if err != nil {
		t.Fatalf("Subscribe(%s) failed: %v", channel, err)
	}
	t.Cleanup(func() { _ = sub.Close() })
	return sub
}

func publish(t *testing.T, b broker.Broker, channel, msg string) {
	t.Helper()
	if err := b.Publish(context.Background(), channel, []byte(msg)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
}

func testFanOut(t *testing.T, b broker.Broker) {
	ch := broker.ChannelFor("42")
	subs := []broker.Subscription{subscribe(t, b, ch), subscribe(t, b, ch), subscribe(t, b, ch)}

	publish(t, b, ch, `{"id":"1"}`)
	for i, sub := range subs {
		if got := string(Receive(t, sub)); got != `{"id":"1"}` {
			t.Errorf("subscriber %d got %q", i, got)
		}
	}
}

func testNoReplay(t *testing.T, b broker.Broker) {
	ch := broker.ChannelFor("42")
	publish(t, b, ch, "before")

	sub := subscribe(t, b, ch)
	publish(t, b, ch, "after")
	if got := string(Receive(t, sub)); got != "after" {
		t.Fatalf("expected only the later message, got %q", got)
	}
	ExpectNothing(t, sub, 100*time.Millisecond)
}

func testChannelIsolation(t *testing.T, b broker.Broker) {
	a := subscribe(t, b, broker.ChannelFor("a"))
	bsub := subscribe(t, b, broker.ChannelFor("b"))

	publish(t, b, broker.ChannelFor("a"), "for-a")
	if got := string(Receive(t, a)); got != "for-a" {
		t.Fatalf("got %q", got)
	}
	ExpectNothing(t, bsub, 100*time.Millisecond)
}

func testOrdering(t *testing.T, b broker.Broker) {
	ch := broker.ChannelFor("ordered")
	sub := subscribe(t, b, ch)
	const n = 50
	for i := 0; i < n; i++ {
		publish(t, b, ch, fmt.Sprint(i))
	}
	for i := 0; i < n; i++ {
		if got := string(Receive(t, sub)); got != fmt.Sprint(i) {
			t.Fatalf("message %d: got %q", i, got)
		}
	}
}

func testReceiveCancellable(t *testing.T, b broker.Broker) {
	sub := subscribe(t, b, broker.ChannelFor("idle"))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := sub.Receive(ctx)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not return after cancel")
	}
}

func testCloseIdempotent(t *testing.T, b broker.Broker) {
	sub, err := b.Subscribe(context.Background(), broker.ChannelFor("closing"))
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := sub.Receive(ctx); !errors.Is(err, broker.ErrSubscriptionClosed) {
		t.Fatalf("expected ErrSubscriptionClosed after Close, got %v", err)
	}
}
