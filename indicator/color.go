package indicator

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Color is a 24-bit RGB value.
type Color uint32

// Named colors used by the reader.
const (
	Black      Color = 0x000000
	White      Color = 0xFFFFFF
	Red        Color = 0xFF0000
	Green      Color = 0x008000
	Blue       Color = 0x0000FF
	LimeGreen  Color = 0x32CD32
	Gold       Color = 0xFFD700
	BlueViolet Color = 0x8A2BE2
	OrangeRed  Color = 0xFF4500
)

var ErrUnknownColor = errors.New("unknown color")

var colorNames = map[string]Color{
	"black":      Black,
	"white":      White,
	"red":        Red,
	"green":      Green,
	"blue":       Blue,
	"limegreen":  LimeGreen,
	"gold":       Gold,
	"blueviolet": BlueViolet,
	"orangered":  OrangeRed,
}

// RGB splits c into its channels.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Scale dims c to brightness (0..255) the way FastLED's scale8 does.
func (c Color) Scale(brightness uint8) Color {
	r, g, b := c.RGB()
	s := func(v uint8) Color { return Color((uint16(v) * (1 + uint16(brightness))) >> 8) }
	return s(r)<<16 | s(g)<<8 | s(b)
}

func (c Color) String() string {
	return fmt.Sprintf("%06x", uint32(c))
}

// ParseColor accepts a color name ("LimeGreen") or hex ("#32CD32", "32cd32").
func ParseColor(s string) (Color, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if c, ok := colorNames[key]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(strings.TrimPrefix(key, "#"), "0x")
	if len(hex) == 6 {
		if v, err := strconv.ParseUint(hex, 16, 32); err == nil {
			return Color(v), nil
		}
	}
	return Black, fmt.Errorf("%w: %q", ErrUnknownColor, s)
}
