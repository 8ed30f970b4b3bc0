package dedup

import (
	"time"

	"cardreader/tag"
)

// Default timing constants.
const (
	DefaultWindow   = 3000 * time.Millisecond
	DefaultCooldown = 5 * time.Millisecond
)

// Classification is the outcome of evaluating a read.
type Classification int

const (
	New Classification = iota
	Duplicate
)

func (c Classification) String() string {
	if c == Duplicate {
		return "duplicate"
	}
	return "new"
}

// State remembers the last tag classified as New. The zero value is the
// startup state: an all-zero identifier seen at time 0.
type State struct {
	last   [tag.MaxUIDLength]byte
	lastAt time.Duration
}

// Last returns the stored identifier buffer and the time it was committed.
func (s State) Last() ([tag.MaxUIDLength]byte, time.Duration) {
	return s.last, s.lastAt
}

// Config holds dedup timing settings.
type Config struct {
	Window   time.Duration `yaml:"window"`
	Cooldown time.Duration `yaml:"cooldown"`
}

// Engine classifies reads against a State.
type Engine struct {
	Window   time.Duration
	Cooldown time.Duration
}

// NewEngine creates an Engine, filling unset values with the defaults.
func NewEngine(cfg Config) *Engine {
	e := &Engine{Window: cfg.Window, Cooldown: cfg.Cooldown}
	if e.Window <= 0 {
		e.Window = DefaultWindow
	}
	if e.Cooldown <= 0 {
		e.Cooldown = DefaultCooldown
	}
	return e
}

// Evaluate classifies ev and commits it to st when it is New.
//
// Only the first ev.UID.Len() bytes of the stored buffer take part in the
// comparison. The window re-arms on New only; repeated Duplicates do not
// extend it.
func (e *Engine) Evaluate(ev tag.Event, st *State) Classification {
	n := ev.UID.Len()
	if n > tag.MaxUIDLength {
		n = tag.MaxUIDLength
	}

	if equalPrefix(ev.UID.Bytes(), st.last[:], n) && ev.ObservedAt-st.lastAt < e.Window {
		return Duplicate
	}

	st.last = [tag.MaxUIDLength]byte{}
	copy(st.last[:], ev.UID.Bytes())
	st.lastAt = ev.ObservedAt
	return New
}

// equalPrefix reports whether the first n bytes of a and b match.
func equalPrefix(a, b []byte, n int) bool {
	if len(a) < n || len(b) < n {
		return false
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
