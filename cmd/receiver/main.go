// Command receiver listens to the card reader's serial output on the host and
// keeps the latest card code in a file.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"cardreader/logger"
	"cardreader/receiver"
)

func main() {
	cfgfile := flag.String("cfg", "receiver.cfg", "Config file")
	flag.Parse()

	boot := logger.New(logger.Config{}, os.Stderr)

	f, err := os.Open(*cfgfile)
	if err != nil {
		boot.Fatal().Err(err).Msg("open config")
	}
	var cfg receiver.Config
	err = yaml.NewDecoder(f).Decode(&cfg)
	f.Close()
	if err != nil {
		boot.Fatal().Err(err).Msg("decode config")
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		boot.Fatal().Err(err).Msg("invalid config")
	}

	log := logger.New(cfg.Log, os.Stdout)

	port, err := receiver.Open(cfg.Device, cfg.Baud)
	if err != nil {
		log.Fatal().Err(err).Msg("open serial")
	}
	defer port.Close()
	log.Info().Str("device", cfg.Device).Str("output", cfg.Output).Msg("listening")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = receiver.New(port, cfg.Output, log).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("receiver stopped")
		port.Close()
		os.Exit(1)
	}
	log.Info().Msg("Exiting...")
}
