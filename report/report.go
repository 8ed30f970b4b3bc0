package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cardreader/tag"
)

// Record describes one New detection.
type Record struct {
	ID         uuid.UUID
	Protocol   tag.Protocol
	UID        tag.UID
	ObservedAt time.Duration // monotonic, since start
	Time       time.Time     // wall clock
}

// NewRecord builds a Record for ev stamped with the current wall time.
func NewRecord(ev tag.Event) Record {
	return Record{
		ID:         uuid.New(),
		Protocol:   ev.Protocol,
		UID:        ev.UID,
		ObservedAt: ev.ObservedAt,
		Time:       time.Now(),
	}
}

// Reporter is the interface for detection sinks.
type Reporter interface {
	Report(r Record) error
}

// Config holds reporter settings.
type Config struct {
	// Output receives the human readable record lines; "" or "-" is stdout.
	// Typically a USB gadget serial port such as /dev/ttyGS0. Logs go to
	// stderr so stdout carries only records.
	Output string `yaml:"output"`
}

// Console writes the human readable two-line record:
//
//	Found a FeliCa card!
//	UID Value: 012E4C3A11223344
type Console struct {
	w   io.Writer
	log zerolog.Logger
}

// NewConsole creates a Console reporter writing to w.
func NewConsole(w io.Writer, log zerolog.Logger) *Console {
	return &Console{w: w, log: log}
}

// OpenConsole opens the configured output for a Console reporter. The
// returned closer is nil for stdout.
func OpenConsole(cfg Config, log zerolog.Logger) (*Console, io.Closer, error) {
	if cfg.Output == "" || cfg.Output == "-" {
		return NewConsole(os.Stdout, log), nil, nil
	}
	f, err := os.OpenFile(cfg.Output, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open report output %s: %w", cfg.Output, err)
	}
	return NewConsole(f, log), f, nil
}

// Report implements Reporter.Report.
func (c *Console) Report(r Record) error {
	c.log.Info().
		Stringer("protocol", r.Protocol).
		Str("uid", r.UID.String()).
		Str("id", r.ID.String()).
		Msg("tag detected")

	_, err := fmt.Fprintf(c.w, "\nFound a %s card!\nUID Value: %s\n", r.Protocol, r.UID)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Multi fans a record out to several reporters.
type Multi []Reporter

// Report implements Reporter.Report. Every reporter is called; the last
// error is returned.
func (m Multi) Report(r Record) error {
	var lastErr error
	for _, rep := range m {
		if err := rep.Report(r); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
