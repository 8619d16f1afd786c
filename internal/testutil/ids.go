package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs generates deterministic ids "<prefix>-1", "<prefix>-2", ...
//
// Implements store.IDGenerator. It can be reset so the same scenario run
// twice produces the same ids.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSequenceIDs creates a generator starting at 1. An empty prefix
// defaults to "id".
func NewSequenceIDs(prefix string) *SequenceIDs {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Reset restarts the sequence; the next id ends in 1.
func (g *SequenceIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}

// FixedIDs returns predetermined ids in order.
//
// Panics once every id has been used, so a test fails loudly when it saves
// more entities than it planned for.
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

// Generate returns the next predetermined id.
func (g *FixedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic(fmt.Sprintf("testutil.FixedIDs: all %d ids used", len(g.ids)))
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
