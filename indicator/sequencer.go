package indicator

import (
	"time"

	"cardreader/clock"
)

// Script is the fixed new-tag animation.
type Script struct {
	Frames      []Color
	StepDelay   time.Duration
	Bright      uint8
	Dim         uint8
	StatusPixel int
}

// Sequencer plays a Script on a Strip and owns the status position.
type Sequencer struct {
	strip  Strip
	script Script
	clock  clock.Clock
}

// NewSequencer creates a Sequencer.
func NewSequencer(strip Strip, script Script, c clock.Clock) *Sequencer {
	return &Sequencer{strip: strip, script: script, clock: c}
}

// Play runs the script to completion. It blocks for
// len(Frames) * (Len()-1) * StepDelay. Every frame sweeps all positions
// except the status position, one position per step. Brightness is back at
// Dim when Play returns, even if a Show failed; the first Show error is
// returned.
func (s *Sequencer) Play() error {
	var firstErr error

	s.strip.SetBrightness(s.script.Bright)
	for _, c := range s.script.Frames {
		for i := 0; i < s.strip.Len(); i++ {
			if i == s.script.StatusPixel {
				continue
			}
			s.strip.SetPixel(i, c)
			if err := s.strip.Show(); err != nil && firstErr == nil {
				firstErr = err
			}
			s.clock.Sleep(s.script.StepDelay)
		}
	}
	s.strip.SetBrightness(s.script.Dim)

	return firstErr
}

// Status shows c on the status position.
func (s *Sequencer) Status(c Color) error {
	s.strip.SetPixel(s.script.StatusPixel, c)
	return s.strip.Show()
}
