package testutil

import (
	"fmt"
	"sync"
)

// FixedIDs hands out predetermined correlation ids in order, ignoring the
// tag. It implements bridge.IDGenerator.
//
// Panics once all ids are consumed; a test that dispatches more calls than
// it planned for is misconfigured.
//
// Thread-safety: FixedIDs is safe for concurrent use via internal mutex.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDs creates a generator returning ids in order.
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// Next returns the next predetermined id.
func (g *FixedIDs) Next(string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic(fmt.Sprintf("FixedIDs: all %d ids exhausted", len(g.ids)))
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

// FixedSession always returns the same journal session id.
// It implements journal.SessionGenerator.
type FixedSession string

// Generate returns the fixed session id, or "test-session" when empty.
func (s FixedSession) Generate() string {
	if s == "" {
		return "test-session"
	}
	return string(s)
}
