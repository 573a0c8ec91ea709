package engine

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// RevisionIDGenerator generates ids for public revisions and new versions.
// Implemented by UUIDv7Generator (production), FixedGenerator and
// testutil.SequenceGenerator (tests).
type RevisionIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids as 32 lowercase hex
// digits, the same width as model.ZeroID.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7. Panics if UUID generation fails.
func (g UUIDv7Generator) Generate() string {
	return strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
}

// FixedGenerator returns predetermined ids for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
//	gen := NewFixedGenerator("rev-1", "rev-2")
//	gen.Generate() // "rev-1"
//	gen.Generate() // "rev-2"
//	gen.Generate() // panic: all ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id. It panics once every id was
// handed out: the test published more often than it declared.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
