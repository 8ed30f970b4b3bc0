package indicator

import (
	"fmt"
	"time"

	"cardreader/tag"
)

// Strip is the interface for addressable LED outputs. Changes made with
// SetPixel and SetBrightness become visible on Show.
type Strip interface {
	// SetBrightness sets the global brightness (0..255).
	SetBrightness(level uint8)

	// SetPixel sets the color of position i. Out of range positions are ignored.
	SetPixel(i int, c Color)

	// Show pushes the current pixel state to the hardware.
	Show() error

	// Len returns the number of positions.
	Len() int

	// Release releases any hardware resources.
	Release() error
}

// Config holds configuration for the LED strip and the feedback script.
type Config struct {
	NumPixels   int           `yaml:"num_pixels" validate:"omitempty,min=2,max=256"`
	StatusPixel int           `yaml:"status_pixel" validate:"min=0"`
	Dim         uint8         `yaml:"dim"`
	Bright      uint8         `yaml:"bright"`
	StepDelay   time.Duration `yaml:"step_delay"`
	Frames      []string      `yaml:"frames"`

	// Status colors shown while waiting on each protocol.
	FeliCaColor    string `yaml:"felica_color"`
	ISO14443AColor string `yaml:"iso14443a_color"`

	// GPIO LED pins, one per position (empty = not configured)
	Pins []uint8 `yaml:"pins"`

	// Neopixel pipe path (empty = not configured)
	NeopixelPipe string `yaml:"neopixel_pipe"`
}

// Defaults taken from the reader firmware.
const (
	DefaultNumPixels = 7
	DefaultDim       = 8
	DefaultBright    = 14
	DefaultStepDelay = 35 * time.Millisecond
)

// DefaultFrames is the new-tag animation.
var DefaultFrames = []Color{LimeGreen, Black, Gold, Black}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.NumPixels == 0 {
		c.NumPixels = DefaultNumPixels
	}
	if c.Dim == 0 {
		c.Dim = DefaultDim
	}
	if c.Bright == 0 {
		c.Bright = DefaultBright
	}
	if c.StepDelay == 0 {
		c.StepDelay = DefaultStepDelay
	}
	if c.FeliCaColor == "" {
		c.FeliCaColor = "BlueViolet"
	}
	if c.ISO14443AColor == "" {
		c.ISO14443AColor = "OrangeRed"
	}
	return c
}

// Positions returns the number of positions New's strip will report.
// A GPIO-only strip has one position per pin.
func (c Config) Positions() int {
	c = c.WithDefaults()
	if len(c.Pins) > 0 && c.NeopixelPipe == "" {
		return len(c.Pins)
	}
	if len(c.Pins) > c.NumPixels {
		return len(c.Pins)
	}
	return c.NumPixels
}

// Script builds the feedback script from the configuration.
func (c Config) Script() (Script, error) {
	c = c.WithDefaults()

	frames := DefaultFrames
	if len(c.Frames) > 0 {
		frames = make([]Color, 0, len(c.Frames))
		for _, name := range c.Frames {
			col, err := ParseColor(name)
			if err != nil {
				return Script{}, fmt.Errorf("frames: %w", err)
			}
			frames = append(frames, col)
		}
	}
	if n := c.Positions(); c.StatusPixel >= n {
		return Script{}, fmt.Errorf("status pixel %d outside strip of %d", c.StatusPixel, n)
	}

	return Script{
		Frames:      frames,
		StepDelay:   c.StepDelay,
		Bright:      c.Bright,
		Dim:         c.Dim,
		StatusPixel: c.StatusPixel,
	}, nil
}

// StatusColors returns the "awaiting protocol" color for each protocol.
func (c Config) StatusColors() (map[tag.Protocol]Color, error) {
	c = c.WithDefaults()
	felica, err := ParseColor(c.FeliCaColor)
	if err != nil {
		return nil, fmt.Errorf("felica_color: %w", err)
	}
	iso, err := ParseColor(c.ISO14443AColor)
	if err != nil {
		return nil, fmt.Errorf("iso14443a_color: %w", err)
	}
	return map[tag.Protocol]Color{tag.FeliCa: felica, tag.ISO14443A: iso}, nil
}

// New creates a Strip based on the provided configuration.
// Returns a Multi strip if both GPIO and Neopixel are configured.
func New(cfg Config) (Strip, error) {
	cfg = cfg.WithDefaults()
	var strips []Strip

	// Add GPIO strip if any pins configured
	if len(cfg.Pins) > 0 {
		gpio, err := NewGPIO(cfg.Pins)
		if err != nil {
			return nil, err
		}
		strips = append(strips, gpio)
	}

	// Add Neopixel strip if pipe configured
	if cfg.NeopixelPipe != "" {
		neo, err := NewNeopixel(cfg.NeopixelPipe, cfg.NumPixels)
		if err != nil {
			releaseAll(strips)
			return nil, err
		}
		strips = append(strips, neo)
	}

	var s Strip
	switch len(strips) {
	case 0:
		s = NewNoop(cfg.NumPixels)
	case 1:
		s = strips[0]
	default:
		s = &Multi{strips: strips}
	}
	s.SetBrightness(cfg.Dim)
	return s, nil
}

func releaseAll(strips []Strip) {
	for _, s := range strips {
		s.Release()
	}
}
