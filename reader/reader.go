package reader

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Firmware is the version block returned by the PN532 handshake.
type Firmware struct {
	IC       byte
	Version  byte
	Revision byte
	Support  byte
}

// String renders the firmware the way the chip names itself.
func (f Firmware) String() string {
	return fmt.Sprintf("PN5%X firmware %d.%d", f.IC, f.Version, f.Revision)
}

// FeliCaTarget is a FeliCa polling response.
type FeliCaTarget struct {
	IDm        [8]byte
	PMm        [8]byte
	SystemCode uint16
}

// ISO14443ATarget is an ISO14443A passive target.
type ISO14443ATarget struct {
	UID     []byte
	SensRes uint16
	SelRes  byte
}

// Transport is the link to the NFC controller.
// A poll that finds no tag returns ok == false and a nil error.
type Transport interface {
	// Initialize performs the firmware handshake and configures the controller.
	Initialize() (Firmware, error)

	// PollFeliCa waits up to timeout for a FeliCa tag.
	PollFeliCa(timeout time.Duration) (FeliCaTarget, bool, error)

	// PollISO14443A waits up to timeout for an ISO14443A tag.
	PollISO14443A(timeout time.Duration) (ISO14443ATarget, bool, error)

	// Close releases the link.
	Close() error
}

// Config holds configuration for the PN532 reader.
type Config struct {
	Device            string        `yaml:"device"`                                     // e.g., "/dev/ttyUSB0"
	Baud              int           `yaml:"baud" validate:"omitempty,min=9600"`         // HSU baud rate
	Attempts          int           `yaml:"attempts" validate:"omitempty,min=1,max=16"` // polls per protocol per cycle
	Timeout           time.Duration `yaml:"timeout"`                                    // wait per poll attempt
	ActivationRetries int           `yaml:"activation_retries" validate:"omitempty,max=255"`
	HandshakeInterval time.Duration `yaml:"handshake_interval"`
	StartupDelay      time.Duration `yaml:"startup_delay"`
	ResetChip         string        `yaml:"reset_chip"` // gpio chip for the RSTPDN line
	ResetPin          *int          `yaml:"reset_pin"`  // nil = no reset line
}

// Defaults taken from the reader firmware.
const (
	DefaultBaud              = 115200
	DefaultAttempts          = 1
	DefaultTimeout           = 5 * time.Millisecond
	DefaultActivationRetries = 0xFF
	DefaultHandshakeInterval = 100 * time.Millisecond
	DefaultStartupDelay      = 500 * time.Millisecond
)

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.Baud == 0 {
		c.Baud = DefaultBaud
	}
	if c.Attempts == 0 {
		c.Attempts = DefaultAttempts
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ActivationRetries == 0 {
		c.ActivationRetries = DefaultActivationRetries
	}
	if c.HandshakeInterval == 0 {
		c.HandshakeInterval = DefaultHandshakeInterval
	}
	if c.StartupDelay == 0 {
		c.StartupDelay = DefaultStartupDelay
	}
	if c.ResetChip == "" {
		c.ResetChip = "gpiochip0"
	}
	return c
}

// Budget returns the per-protocol poll budget.
func (c Config) Budget() Budget {
	return Budget{Attempts: c.Attempts, Timeout: c.Timeout}
}

// New opens the PN532 on the configured serial device.
func New(cfg Config, log zerolog.Logger) (*PN532, error) {
	cfg = cfg.WithDefaults()

	var reset *ResetLine
	if cfg.ResetPin != nil {
		var err error
		reset, err = NewResetLine(cfg.ResetChip, *cfg.ResetPin)
		if err != nil {
			return nil, fmt.Errorf("reset line: %w", err)
		}
	}

	port, err := OpenSerial(cfg.Device, cfg.Baud)
	if err != nil {
		if reset != nil {
			reset.Close()
		}
		return nil, err
	}

	log.Info().Str("device", cfg.Device).Int("baud", cfg.Baud).Msg("PN532 serial link opened")
	return NewPN532(port, reset, byte(cfg.ActivationRetries), log), nil
}

// Handshake initializes t, retrying every interval until it answers or ctx
// is cancelled. Each failed attempt is logged.
func Handshake(ctx context.Context, t Transport, interval time.Duration, log zerolog.Logger) (Firmware, error) {
	for {
		fw, err := t.Initialize()
		if err == nil {
			log.Info().
				Str("chip", fmt.Sprintf("PN5%X", fw.IC)).
				Str("firmware", fmt.Sprintf("%d.%d", fw.Version, fw.Revision)).
				Msg("Found chip")
			return fw, nil
		}
		log.Warn().Err(err).Msg("Didn't find PN53x board")

		select {
		case <-ctx.Done():
			return Firmware{}, ctx.Err()
		case <-time.After(interval):
		}
	}
}
