package indicator

// Noop implements Strip but does nothing.
// Used when no LEDs are configured.
type Noop struct {
	n int
}

// NewNoop creates a Noop strip reporting n positions.
func NewNoop(n int) *Noop {
	return &Noop{n: n}
}

// SetBrightness implements Strip.SetBrightness.
func (n *Noop) SetBrightness(level uint8) {}

// SetPixel implements Strip.SetPixel.
func (n *Noop) SetPixel(i int, c Color) {}

// Show implements Strip.Show.
func (n *Noop) Show() error {
	return nil
}

// Len implements Strip.Len.
func (n *Noop) Len() int {
	return n.n
}

// Release implements Strip.Release.
func (n *Noop) Release() error {
	return nil
}
