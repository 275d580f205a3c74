package envelope

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"
)

// IDGenerator produces ids of the form "<unix ms, 13 digits>-<16 hex>".
// The millisecond prefix never decreases for one generator, so ids from a
// single publisher sort by creation order at millisecond resolution.
type IDGenerator struct {
	mu     sync.Mutex
	lastMS int64
	random io.Reader
}

// NewIDGenerator creates a generator backed by crypto/rand.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{random: rand.Reader}
}

// NewIDGeneratorWithSource creates a generator reading suffix bytes from r.
func NewIDGeneratorWithSource(r io.Reader) *IDGenerator {
	return &IDGenerator{random: r}
}

// Next returns a new id for an event created at now.
func (g *IDGenerator) Next(now time.Time) string {
	var suffix [8]byte
	if _, err := io.ReadFull(g.random, suffix[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(fmt.Sprintf("envelope: read random id suffix: %v", err))
	}

	ms := now.UnixMilli()
	g.mu.Lock()
	if ms < g.lastMS {
		ms = g.lastMS
	}
	g.lastMS = ms
	g.mu.Unlock()

	return fmt.Sprintf("%013d-%s", ms, hex.EncodeToString(suffix[:]))
}
