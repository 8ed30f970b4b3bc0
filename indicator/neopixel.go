package indicator

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Neopixel implements Strip using the external neopixel tool via named pipe.
// Each Show writes one static frame: "@0 rrggbb rrggbb ...\n", already scaled
// to the current brightness.
type Neopixel struct {
	pipe       io.WriteCloser
	pixels     []Color
	brightness uint8
}

// NewNeopixel opens the neopixel tool's pipe for a strip of n positions.
func NewNeopixel(pipePath string, n int) (*Neopixel, error) {
	f, err := os.OpenFile(pipePath, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open neopixel pipe %s: %w", pipePath, err)
	}
	return newNeopixel(f, n), nil
}

func newNeopixel(w io.WriteCloser, n int) *Neopixel {
	return &Neopixel{pipe: w, pixels: make([]Color, n), brightness: 0xFF}
}

// SetBrightness implements Strip.SetBrightness.
func (n *Neopixel) SetBrightness(level uint8) {
	n.brightness = level
}

// SetPixel implements Strip.SetPixel.
func (n *Neopixel) SetPixel(i int, c Color) {
	if i >= 0 && i < len(n.pixels) {
		n.pixels[i] = c
	}
}

// Show implements Strip.Show.
func (n *Neopixel) Show() error {
	if n.pipe == nil {
		return nil
	}
	var b strings.Builder
	b.WriteString("@0")
	for _, c := range n.pixels {
		b.WriteByte(' ')
		b.WriteString(c.Scale(n.brightness).String())
	}
	b.WriteByte('\n')
	if _, err := io.WriteString(n.pipe, b.String()); err != nil {
		return fmt.Errorf("write neopixel pipe: %w", err)
	}
	return nil
}

// Len implements Strip.Len.
func (n *Neopixel) Len() int {
	return len(n.pixels)
}

// Release implements Strip.Release.
func (n *Neopixel) Release() error {
	if n.pipe == nil {
		return nil
	}
	return n.pipe.Close()
}
