package indicator

import (
	"fmt"

	"github.com/hjkoskel/govattu"
)

// GPIO implements Strip using one discrete LED pin per position. A position
// is lit when its color is not black and brightness is above zero.
type GPIO struct {
	hw         govattu.Vattu
	pins       []uint8
	pixels     []Color
	brightness uint8
}

// NewGPIO creates a new GPIO-based strip.
func NewGPIO(pins []uint8) (*GPIO, error) {
	hw, err := govattu.Open()
	if err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	g := &GPIO{
		hw:         hw,
		pins:       append([]uint8(nil), pins...),
		pixels:     make([]Color, len(pins)),
		brightness: 0xFF,
	}

	// Initialize all pins as outputs, start off
	for _, pin := range g.pins {
		hw.PinMode(pin, govattu.ALToutput)
		hw.PinClear(pin)
	}
	return g, nil
}

// SetBrightness implements Strip.SetBrightness.
func (g *GPIO) SetBrightness(level uint8) {
	g.brightness = level
}

// SetPixel implements Strip.SetPixel.
func (g *GPIO) SetPixel(i int, c Color) {
	if i >= 0 && i < len(g.pixels) {
		g.pixels[i] = c
	}
}

// Show implements Strip.Show.
func (g *GPIO) Show() error {
	for i, pin := range g.pins {
		if g.brightness > 0 && g.pixels[i] != Black {
			g.hw.PinSet(pin)
		} else {
			g.hw.PinClear(pin)
		}
	}
	return nil
}

// Len implements Strip.Len.
func (g *GPIO) Len() int {
	return len(g.pins)
}

// Release implements Strip.Release.
func (g *GPIO) Release() error {
	for _, pin := range g.pins {
		g.hw.PinClear(pin)
	}
	return g.hw.Close()
}
