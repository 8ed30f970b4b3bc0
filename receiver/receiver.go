// Package receiver turns the reader's serial output back into card codes on
// the host side.
package receiver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"cardreader/logger"
)

// CodeLength is the length of a card code in hex digits.
const CodeLength = 16

// CodePrefix is forced onto every card code.
const CodePrefix = "012E"

var uidLine = regexp.MustCompile(`UID Value: ([0-9A-F]+)`)

// Config holds configuration for the host receiver.
type Config struct {
	Device string        `yaml:"device" validate:"required"` // e.g., "/dev/ttyACM0" or "COM3"
	Baud   int           `yaml:"baud" validate:"omitempty,min=9600"`
	Output string        `yaml:"output" validate:"required"` // card code file
	Log    logger.Config `yaml:"log"`
}

// DefaultBaud matches the reader's report output.
const DefaultBaud = 115200

// Parse extracts the card code from a report line. The UID is left padded
// with zeros to CodeLength digits and its first four digits are replaced
// with CodePrefix. Longer UIDs keep their length.
func Parse(line string) (string, bool) {
	m := uidLine.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	code := m[1]
	if len(code) < CodeLength {
		code = strings.Repeat("0", CodeLength-len(code)) + code
	}
	if !strings.HasPrefix(code, CodePrefix) {
		code = CodePrefix + code[len(CodePrefix):]
	}
	return code, true
}

// WriteCode replaces the contents of path with code. Readers of path never
// see a partial write.
func WriteCode(path, code string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(code), 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Open opens the serial port the reader reports on (8N1).
func Open(device string, baud int) (serial.Port, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", device, err)
	}
	if err := p.SetReadTimeout(100 * time.Millisecond); err != nil {
		p.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return p, nil
}

// Receiver reads report lines and writes each card code to a file.
type Receiver struct {
	src  io.Reader
	path string
	log  zerolog.Logger

	// OnCode is called after each code has been written.
	OnCode func(code string)
}

// New creates a Receiver reading from src and writing codes to path.
// src may return (0, nil) on read timeouts.
func New(src io.Reader, path string, log zerolog.Logger) *Receiver {
	return &Receiver{src: src, path: path, log: log}
}

// Run processes lines until ctx is cancelled or src fails. io.EOF ends Run
// without error.
func (r *Receiver) Run(ctx context.Context) error {
	buf := make([]byte, 256)
	var pending []byte

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.src.Read(buf)
		pending = append(pending, buf[:n]...)
		for {
			i := bytes.IndexByte(pending, '\n')
			if i < 0 {
				break
			}
			r.handleLine(string(pending[:i]))
			pending = pending[i+1:]
		}

		if errors.Is(err, io.EOF) {
			if len(pending) > 0 {
				r.handleLine(string(pending))
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
	}
}

func (r *Receiver) handleLine(raw string) {
	line := strings.TrimSpace(strings.ToValidUTF8(raw, "\uFFFD"))
	if line == "" {
		return
	}
	r.log.Debug().Str("line", line).Msg("serial")

	code, ok := Parse(line)
	if !ok {
		return
	}
	if err := WriteCode(r.path, code); err != nil {
		r.log.Error().Err(err).Str("code", code).Msg("write card code")
		return
	}
	r.log.Info().Str("code", code).Str("file", r.path).Msg("card code written")
	if r.OnCode != nil {
		r.OnCode(code)
	}
}
