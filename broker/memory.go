package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/notify/component"
	"github.com/kbukum/notify/logger"
)

// Memory is an in-process Broker. Each subscription has an unbounded
// mailbox, so Publish never blocks on a slow subscriber.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	closed bool
	log    *logger.Logger
}

var (
	_ Broker              = (*Memory)(nil)
	_ component.Component = (*Memory)(nil)
)

// NewMemory creates an empty in-process broker.
func NewMemory(log *logger.Logger) *Memory {
	return &Memory{
		subs: make(map[string]map[*memorySubscription]struct{}),
		log:  log.WithComponent("broker.memory"),
	}
}

// Publish delivers message to every current subscriber of channel.
func (m *Memory) Publish(ctx context.Context, channel string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := append([]byte(nil), message...)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	for sub := range m.subs[channel] {
		sub.deliver(msg)
	}
	m.log.Debug("published", logger.Fields(logger.FieldChannel, channel, "subscribers", len(m.subs[channel])))
	return nil
}

// Subscribe registers a subscription on channel.
func (m *Memory) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	sub := &memorySubscription{
		broker:  m,
		channel: channel,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if m.subs[channel] == nil {
		m.subs[channel] = make(map[*memorySubscription]struct{})
	}
	m.subs[channel][sub] = struct{}{}
	return sub, nil
}

// Subscribers returns the number of live subscriptions on channel.
func (m *Memory) Subscribers(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[channel])
}

func (m *Memory) remove(sub *memorySubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.subs[sub.channel]
	delete(set, sub)
	if len(set) == 0 {
		delete(m.subs, sub.channel)
	}
}

// Close terminates every subscription and rejects further use.
func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	subs := m.subs
	m.subs = make(map[string]map[*memorySubscription]struct{})
	m.mu.Unlock()

	for _, set := range subs {
		for sub := range set {
			sub.terminate()
		}
	}
	return nil
}

// Name implements component.Component.
func (m *Memory) Name() string { return "broker" }

// Start implements component.Component.
func (m *Memory) Start(context.Context) error { return nil }

// Stop implements component.Component.
func (m *Memory) Stop(context.Context) error { return m.Close() }

// Health implements component.Component.
func (m *Memory) Health(context.Context) component.Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return component.Health{Name: m.Name(), Status: component.StatusUnhealthy, Message: "closed"}
	}
	n := 0
	for _, set := range m.subs {
		n += len(set)
	}
	return component.Health{Name: m.Name(), Status: component.StatusHealthy, Message: fmt.Sprintf("%d subscriptions", n)}
}

// Describe implements component.Describable.
func (m *Memory) Describe() component.Description {
	return component.Description{Name: "Broker", Type: "memory", Details: "in-process"}
}

type memorySubscription struct {
	broker  *Memory
	channel string

	mu      sync.Mutex
	mailbox [][]byte
	notify  chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func (s *memorySubscription) deliver(msg []byte) {
	s.mu.Lock()
	s.mailbox = append(s.mailbox, msg)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *memorySubscription) Receive(ctx context.Context) ([]byte, error) {
	for {
		select {
		case <-s.done:
			return nil, ErrSubscriptionClosed
		default:
		}

		s.mu.Lock()
		if len(s.mailbox) > 0 {
			msg := s.mailbox[0]
			s.mailbox[0] = nil
			s.mailbox = s.mailbox[1:]
			s.mu.Unlock()
			return msg, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.done:
			return nil, ErrSubscriptionClosed
		case <-s.notify:
		}
	}
}

func (s *memorySubscription) Close() error {
	s.terminate()
	s.broker.remove(s)
	return nil
}

func (s *memorySubscription) terminate() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.mailbox = nil
		s.mu.Unlock()
	})
}
