package indicator

// Multi combines multiple Strip implementations.
type Multi struct {
	strips []Strip
}

// SetBrightness implements Strip.SetBrightness.
func (m *Multi) SetBrightness(level uint8) {
	for _, s := range m.strips {
		s.SetBrightness(level)
	}
}

// SetPixel implements Strip.SetPixel.
func (m *Multi) SetPixel(i int, c Color) {
	for _, s := range m.strips {
		s.SetPixel(i, c)
	}
}

// Show implements Strip.Show.
func (m *Multi) Show() error {
	var lastErr error
	for _, s := range m.strips {
		if err := s.Show(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Len implements Strip.Len. It is the longest member strip.
func (m *Multi) Len() int {
	n := 0
	for _, s := range m.strips {
		if l := s.Len(); l > n {
			n = l
		}
	}
	return n
}

// Release implements Strip.Release.
func (m *Multi) Release() error {
	var lastErr error
	for _, s := range m.strips {
		if err := s.Release(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
