// Package clock assigns record identifiers derived from wall-clock time.
// Locally created records and remote-origin records share one numeric id
// space; millisecond-resolution ids make a cross-device collision
// astronomically unlikely, and the generator guarantees that a single
// device never reuses an id even for creates within the same millisecond.
package clock

import (
	"sync"
	"time"
)

// Generator produces strictly increasing millisecond-based ids.
type Generator struct {
	last int64
	now  func() time.Time
	mu   sync.Mutex
}

// NewGenerator creates a generator backed by the system clock.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// NewGeneratorWithNow creates a generator with an injected time source.
// Used for testing.
func NewGeneratorWithNow(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// NextID returns a fresh record id. Ids are monotonic: if the wall clock
// has not advanced past the previously issued id (same-millisecond
// creates, clock steps backwards), the id is bumped by one instead.
func (g *Generator) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id

	return id
}
