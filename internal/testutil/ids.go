package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDGenerator generates predictable record ids: rec-0001, rec-0002, ...
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with a fresh SequenceIDGenerator produces byte-identical
// traces.
//
// Implements ir.IDGenerator.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDGenerator creates a generator for ids of the form prefix-NNNN.
//
// If prefix is empty, "rec" is used.
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "rec"
	}
	return &SequenceIDGenerator{prefix: prefix}
}

// Generate returns the next id in the sequence.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *SequenceIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
