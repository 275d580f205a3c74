package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/notify/broker"
	"github.com/kbukum/notify/logger"
)

// Broker implements broker.Broker over Redis PUBLISH/SUBSCRIBE.
type Broker struct {
	client       *Client
	pingInterval time.Duration
	log          *logger.Logger
}

var _ broker.Broker = (*Broker)(nil)

// NewBroker creates a Broker on client.
func NewBroker(client *Client) *Broker {
	return &Broker{
		client:       client,
		pingInterval: duration(client.cfg.PingInterval),
		log:          client.log.WithComponent("redis-broker"),
	}
}

// Publish sends message to channel. Redis does not report delivery, so a
// nil error only means the server accepted it.
func (b *Broker) Publish(ctx context.Context, channel string, message []byte) error {
	if err := b.client.rdb.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a dedicated connection and waits for the server to
// confirm the subscription before returning.
func (b *Broker) Subscribe(ctx context.Context, channel string) (broker.Subscription, error) {
	ps := b.client.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &subscription{
		ps:      ps,
		channel: channel,
		msgs:    make(chan []byte),
		failed:  make(chan struct{}),
		done:    make(chan struct{}),
		cancel:  cancel,
		log:     b.log.WithFields(logger.Fields(logger.FieldChannel, channel)),
	}
	s.wg.Add(1)
	go s.run(runCtx, b.replyTimeout())
	if b.pingInterval > 0 {
		s.wg.Add(1)
		go s.watch(runCtx, b.pingInterval)
	}
	return s, nil
}

// replyTimeout bounds each read on a subscription connection. Zero disables
// the bound along with pinging.
func (b *Broker) replyTimeout() time.Duration {
	return 2 * b.pingInterval
}

type subscription struct {
	ps      *goredis.PubSub
	channel string
	msgs    chan []byte
	log     *logger.Logger

	failOnce sync.Once
	failed   chan struct{}
	err      error

	closeOnce sync.Once
	done      chan struct{}
	cancel    context.CancelFunc
	closeErr  error
	wg        sync.WaitGroup
}

// run reads the subscription connection. A live server answers every ping,
// so a read that sees nothing for replyTimeout means the connection is dead
// even if writes still succeed.
func (s *subscription) run(ctx context.Context, replyTimeout time.Duration) {
	defer s.wg.Done()
	for {
		reply, err := s.ps.ReceiveTimeout(ctx, replyTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if isTimeout(err) {
				err = fmt.Errorf("no reply within %s: %w", replyTimeout, err)
			}
			s.fail(err)
			return
		}
		msg, ok := reply.(*goredis.Message)
		if !ok {
			// Pong or subscription confirmation.
			continue
		}
		select {
		case s.msgs <- []byte(msg.Payload):
		case <-ctx.Done():
			return
		}
	}
}

// watch pings the subscription connection. Replies are read by run.
func (s *subscription) watch(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.ps.Ping(ctx); err != nil {
				if ctx.Err() == nil {
					s.fail(fmt.Errorf("ping: %w", err))
				}
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (s *subscription) fail(err error) {
	s.failOnce.Do(func() {
		s.err = err
		s.log.Warn("subscription lost", logger.ErrorFields("receive", err))
		close(s.failed)
	})
}

func (s *subscription) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-s.done:
		return nil, broker.ErrSubscriptionClosed
	default:
	}
	select {
	case msg := <-s.msgs:
		return msg, nil
	case <-s.failed:
		return nil, errors.Join(broker.ErrSubscriptionClosed, s.err)
	case <-s.done:
		return nil, broker.ErrSubscriptionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		// Closing the connection unblocks a pending read.
		s.closeErr = s.ps.Close()
		s.wg.Wait()
	})
	return s.closeErr
}
