package testutil

import (
	"fmt"
	"sync"
	"time"

	"mdnotes/internal/notes"
)

// StubClock is a settable notes.Clock. Safe for concurrent use.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

var _ notes.Clock = (*StubClock)(nil)

func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t.UTC()}
}

// FixedClock starts at 2024-01-15 10:30:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d, so the next write wins a
// last-writer-wins comparison against the previous one.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// StubIDGenerator returns note-1, note-2 and so on.
type StubIDGenerator struct {
	mu   sync.Mutex
	next int
}

var _ notes.IDGenerator = (*StubIDGenerator)(nil)

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("note-%d", g.next)
}
