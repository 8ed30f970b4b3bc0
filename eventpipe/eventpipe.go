// Package eventpipe is a stand-in for the PN532 that takes tag presentations
// from a named pipe, for running the reader loop on a bench without an
// antenna.
package eventpipe

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"cardreader/reader"
	"cardreader/tag"
)

// Config holds configuration for the event pipe.
type Config struct {
	Path string `yaml:"path"` // Path to named pipe (e.g., "/tmp/cardreader-events")
}

// simulated is the firmware block reported by Initialize.
var simulated = reader.Firmware{IC: 0x32, Version: 1, Revision: 6, Support: 0x07}

// EventPipe listens for commands on a named pipe and implements
// reader.Transport. A presented tag stays in the field until removed.
type EventPipe struct {
	path   string
	log    zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	present *presentation
}

type presentation struct {
	proto tag.Protocol
	uid   []byte
}

// New creates a new EventPipe. Returns nil if path is empty.
func New(cfg Config, log zerolog.Logger) (*EventPipe, error) {
	if cfg.Path == "" {
		return nil, nil
	}

	// Remove existing pipe if it exists
	os.Remove(cfg.Path)

	if err := syscall.Mkfifo(cfg.Path, 0666); err != nil {
		return nil, fmt.Errorf("create named pipe %s: %w", cfg.Path, err)
	}

	ep := newEventPipe(log)
	ep.path = cfg.Path
	return ep, nil
}

func newEventPipe(log zerolog.Logger) *EventPipe {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventPipe{log: log, ctx: ctx, cancel: cancel}
}

// Start begins listening for commands on the pipe.
// This should be called as a goroutine.
func (ep *EventPipe) Start() {
	ep.log.Info().Str("path", ep.path).Msg("event pipe listening")

	for {
		if ep.ctx.Err() != nil {
			return
		}

		// Blocks until a writer connects.
		file, err := os.OpenFile(ep.path, os.O_RDONLY, 0)
		if err != nil {
			if ep.ctx.Err() != nil {
				return
			}
			ep.log.Error().Err(err).Msg("event pipe open")
			time.Sleep(time.Second)
			continue
		}

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			if ep.ctx.Err() != nil {
				file.Close()
				return
			}
			if err := ep.Exec(scanner.Text()); err != nil {
				ep.log.Warn().Err(err).Msg("event pipe")
			}
		}

		file.Close()
		// Writer closed the pipe, loop back to wait for next writer
	}
}

// Exec applies a single command line. Blank lines and # comments are ignored.
//
//	felica <hex>      - FeliCa tag with the given IDm enters the field
//	iso14443a <hex>   - ISO14443A tag with the given UID enters the field
//	mifare <hex>      - alias for iso14443a
//	remove            - the tag leaves the field
func (ep *EventPipe) Exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	p, err := parseLine(line)
	if err != nil {
		return err
	}

	ep.mu.Lock()
	ep.present = p
	ep.mu.Unlock()

	if p == nil {
		ep.log.Debug().Msg("tag removed")
	} else {
		ep.log.Debug().Stringer("protocol", p.proto).Str("uid", strings.ToUpper(hex.EncodeToString(p.uid))).Msg("tag presented")
	}
	return nil
}

// parseLine returns nil for "remove".
func parseLine(line string) (*presentation, error) {
	parts := strings.Fields(line)
	cmd := strings.ToLower(parts[0])

	var proto tag.Protocol
	switch cmd {
	case "remove":
		return nil, nil
	case "felica":
		proto = tag.FeliCa
	case "iso14443a", "mifare":
		proto = tag.ISO14443A
	default:
		return nil, fmt.Errorf("unknown command: %s", cmd)
	}

	if len(parts) < 2 {
		return nil, fmt.Errorf("%s requires a hex UID", cmd)
	}
	uid, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(parts[1]), "0x"))
	if err != nil || len(uid) == 0 {
		return nil, fmt.Errorf("invalid UID: %s", parts[1])
	}
	if proto == tag.FeliCa && len(uid) != 8 {
		return nil, fmt.Errorf("FeliCa IDm must be 8 bytes, got %d", len(uid))
	}
	if proto == tag.ISO14443A && len(uid) > 10 {
		return nil, fmt.Errorf("ISO14443A UID too long: %d bytes", len(uid))
	}
	return &presentation{proto: proto, uid: uid}, nil
}

func (ep *EventPipe) take(proto tag.Protocol, timeout time.Duration) ([]byte, bool) {
	ep.mu.Lock()
	p := ep.present
	ep.mu.Unlock()

	if p == nil || p.proto != proto {
		// An empty field costs the whole wait on the real chip.
		time.Sleep(timeout)
		return nil, false
	}
	return p.uid, true
}

// Initialize implements reader.Transport.Initialize.
func (ep *EventPipe) Initialize() (reader.Firmware, error) {
	ep.log.Info().Msg("using simulated reader")
	return simulated, nil
}

// PollFeliCa implements reader.Transport.PollFeliCa.
func (ep *EventPipe) PollFeliCa(timeout time.Duration) (reader.FeliCaTarget, bool, error) {
	uid, ok := ep.take(tag.FeliCa, timeout)
	if !ok {
		return reader.FeliCaTarget{}, false, nil
	}
	var t reader.FeliCaTarget
	copy(t.IDm[:], uid)
	return t, true, nil
}

// PollISO14443A implements reader.Transport.PollISO14443A.
func (ep *EventPipe) PollISO14443A(timeout time.Duration) (reader.ISO14443ATarget, bool, error) {
	uid, ok := ep.take(tag.ISO14443A, timeout)
	if !ok {
		return reader.ISO14443ATarget{}, false, nil
	}
	return reader.ISO14443ATarget{UID: append([]byte(nil), uid...)}, true, nil
}

// Close stops the listener and removes the pipe.
func (ep *EventPipe) Close() error {
	ep.cancel()
	if ep.path == "" {
		return nil
	}
	// Unblock a Start waiting for a writer.
	if f, err := os.OpenFile(ep.path, os.O_WRONLY|syscall.O_NONBLOCK, 0); err == nil {
		f.Close()
	}
	return os.Remove(ep.path)
}
