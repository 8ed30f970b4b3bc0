// Package clock provides the monotonic time source and delays used by the
// polling loop.
package clock

import (
	"sync"
	"time"
)

// Clock reports elapsed time since it was started and blocks for delays.
type Clock interface {
	Now() time.Duration
	Sleep(d time.Duration)
}

// System is a Clock backed by the runtime's monotonic clock.
type System struct {
	start time.Time
}

// NewSystem starts a System clock at zero.
func NewSystem() *System {
	return &System{start: time.Now()}
}

// Now implements Clock.Now.
func (s *System) Now() time.Duration {
	return time.Since(s.start)
}

// Sleep implements Clock.Sleep.
func (s *System) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Manual is a Clock that only moves when told to. Sleep advances it.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	sleeps []time.Duration
}

// Now implements Clock.Now.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Sleep implements Clock.Sleep without blocking.
func (m *Manual) Sleep(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += d
	m.sleeps = append(m.sleeps, d)
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += d
}

// Sleeps returns every delay requested so far.
func (m *Manual) Sleeps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.sleeps...)
}
