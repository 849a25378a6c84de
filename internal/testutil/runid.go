package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs generates readable, reproducible run IDs:
// "<prefix>-0001", "<prefix>-0002", ...
//
// Run IDs are primary keys in the store, so a generator that repeats one
// token cannot back more than a single run. This one never repeats until
// Reset. It satisfies engine.RunIDGenerator.
type SequentialRunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRunIDs creates a generator. An empty prefix becomes "run".
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts numbering at 1.
func (g *SequentialRunIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
