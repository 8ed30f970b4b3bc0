//go:build !linux

package reader

import "errors"

var ErrResetNotSupported = errors.New("reset line not supported on this platform")

// ResetLine is a stub for non-linux platforms.
type ResetLine struct{}

// NewResetLine returns an error on non-linux platforms.
func NewResetLine(chip string, offset int) (*ResetLine, error) {
	return nil, ErrResetNotSupported
}

func (r *ResetLine) Pulse() error { return ErrResetNotSupported }
func (r *ResetLine) Close() error { return nil }
