// Package broker defines the per-recipient publish/subscribe abstraction
// that connects publishers to streaming sessions, plus an in-process
// implementation. The Redis implementation lives in package redis.
package broker

import (
	"context"
	"errors"
)

var (
	// ErrSubscriptionClosed is returned by Receive once a subscription has
	// been released or lost.
	ErrSubscriptionClosed = errors.New("broker: subscription closed")
	// ErrClosed is returned by a broker that has been shut down.
	ErrClosed = errors.New("broker: closed")
)

// Broker fans a message out to every live subscriber of a channel.
// Implementations are safe for concurrent use.
type Broker interface {
	// Publish hands message to the transport. It does not wait for delivery.
	Publish(ctx context.Context, channel string, message []byte) error
	// Subscribe returns a live subscription. Messages published before it
	// returns are not delivered.
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription is a live handle on one channel.
type Subscription interface {
	// Receive blocks for the next message. Any error other than ctx's own
	// is terminal.
	Receive(ctx context.Context) ([]byte, error)
	// Close unsubscribes. It is idempotent and safe after Receive failed.
	Close() error
}

// ChannelFor returns the channel carrying events for a recipient.
func ChannelFor(recipientID string) string {
	return "user:" + recipientID
}
