// Package presence tracks which recipients currently hold at least one live
// streaming session. The offline push path consults it before notifying.
package presence

import (
	"context"
	"sync"
)

// Tracker counts live sessions per recipient.
type Tracker interface {
	Join(ctx context.Context, recipientID string) error
	Leave(ctx context.Context, recipientID string) error
	Online(ctx context.Context, recipientID string) (bool, error)
}

// Memory is a process-local Tracker. It only sees sessions served by this
// process; use the Redis tracker when running several replicas.
type Memory struct {
	mu     sync.Mutex
	counts map[string]int
}

var _ Tracker = (*Memory)(nil)

// NewMemory creates an empty tracker.
func NewMemory() *Memory {
	return &Memory{counts: make(map[string]int)}
}

func (m *Memory) Join(_ context.Context, recipientID string) error {
	m.mu.Lock()
	m.counts[recipientID]++
	m.mu.Unlock()
	return nil
}

func (m *Memory) Leave(_ context.Context, recipientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := m.counts[recipientID]; n <= 1 {
		delete(m.counts, recipientID)
	} else {
		m.counts[recipientID] = n - 1
	}
	return nil
}

func (m *Memory) Online(_ context.Context, recipientID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[recipientID] > 0, nil
}
