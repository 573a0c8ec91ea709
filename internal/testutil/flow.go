package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator generates numbered revision ids: "<prefix>-0001",
// "<prefix>-0002", ...
//
// Unlike engine.FixedGenerator, which needs every id listed up front, it
// never runs out, which suits scenarios with an open-ended number of
// publishes.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator. An empty prefix means "rev".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "rev"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
