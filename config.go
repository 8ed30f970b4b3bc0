package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"cardreader/dedup"
	"cardreader/eventpipe"
	"cardreader/indicator"
	"cardreader/logger"
	"cardreader/mqtt"
	"cardreader/reader"
	"cardreader/report"
)

// Config is the main configuration structure for the card reader.
type Config struct {
	ClientID string `yaml:"client_id" validate:"required"`

	// Logging
	Log logger.Config `yaml:"log"`

	// PN532 link and poll budget
	Reader reader.Config `yaml:"reader"`

	// Named pipe that stands in for the PN532 (empty = use the PN532)
	EventPipe eventpipe.Config `yaml:"event_pipe"`

	// Duplicate suppression
	Dedup dedup.Config `yaml:"dedup"`

	// LED strip and feedback script
	Indicator indicator.Config `yaml:"indicator"`

	// Detection output
	Report report.Config `yaml:"report"`

	// MQTT connection settings (empty host = disabled)
	MQTT mqtt.Config `yaml:"mqtt"`

	// Heartbeat period for <prefix>/<client id>/ping; 0 uses the default.
	PingInterval time.Duration `yaml:"ping_interval" validate:"min=0"`
}

const defaultPingInterval = 120 * time.Second

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// loadConfig reads, decodes and validates the YAML config at path.
func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and that every configured color parses.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Reader.Device == "" && c.EventPipe.Path == "" {
		return errors.New("invalid config: reader.device is required")
	}
	if _, err := c.Indicator.Script(); err != nil {
		return fmt.Errorf("invalid config: indicator: %w", err)
	}
	if _, err := c.Indicator.StatusColors(); err != nil {
		return fmt.Errorf("invalid config: indicator: %w", err)
	}
	return nil
}

func (c *Config) pingInterval() time.Duration {
	if c.PingInterval <= 0 {
		return defaultPingInterval
	}
	return c.PingInterval
}
