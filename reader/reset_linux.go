//go:build linux

package reader

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// ResetLine drives the PN532 RSTPDN pin.
type ResetLine struct {
	line *gpiocdev.Line
}

// NewResetLine requests offset on chip as an output, initially high
// (chip running).
func NewResetLine(chip string, offset int) (*ResetLine, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(1),
		gpiocdev.WithConsumer("cardreader"))
	if err != nil {
		return nil, fmt.Errorf("request %s line %d: %w", chip, offset, err)
	}
	return &ResetLine{line: l}, nil
}

// Pulse holds the chip in reset briefly and waits for it to boot.
func (r *ResetLine) Pulse() error {
	if err := r.line.SetValue(0); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	if err := r.line.SetValue(1); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	return nil
}

// Close releases the line.
func (r *ResetLine) Close() error {
	if r == nil || r.line == nil {
		return nil
	}
	return r.line.Close()
}
