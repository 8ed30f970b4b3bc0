package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"cardreader/clock"
	"cardreader/cycle"
	"cardreader/dedup"
	"cardreader/eventpipe"
	"cardreader/indicator"
	"cardreader/logger"
	"cardreader/mqtt"
	"cardreader/reader"
	"cardreader/report"
)

var myBuild string

// App holds the application state and dependencies.
type App struct {
	cfg     *Config
	log     zerolog.Logger
	clock   clock.Clock
	reader  reader.Transport
	strip   indicator.Strip
	mqtt    *mqtt.Client
	cycle   *cycle.Orchestrator
	closers []io.Closer
}

func main() {
	cfgfile := flag.String("cfg", "cardreader.cfg", "Config file")
	flag.Parse()

	boot := logger.New(logger.Config{}, os.Stderr)
	cfg, err := loadConfig(*cfgfile)
	if err != nil {
		boot.Fatal().Err(err).Str("file", *cfgfile).Msg("load config")
	}

	log := logger.New(cfg.Log, os.Stderr)
	log.Info().Str("build", myBuild).Str("client_id", cfg.ClientID).Msg("cardreader starting")

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Shutting down...")
		cancel()
	}()

	app := &App{cfg: cfg, log: log, clock: clock.NewSystem()}
	err = app.run(ctx)
	app.shutdown()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("cardreader stopped")
	}
	log.Info().Msg("Shutdown complete")
}

// run brings up the hardware and blocks in the poll loop until ctx is done.
func (app *App) run(ctx context.Context) error {
	cfg := app.cfg
	rcfg := cfg.Reader.WithDefaults()

	// Let the controller come out of power-on reset.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(rcfg.StartupDelay):
	}

	script, err := cfg.Indicator.Script()
	if err != nil {
		return fmt.Errorf("indicator script: %w", err)
	}
	status, err := cfg.Indicator.StatusColors()
	if err != nil {
		return fmt.Errorf("indicator colors: %w", err)
	}
	app.strip, err = indicator.New(cfg.Indicator)
	if err != nil {
		return fmt.Errorf("init indicator: %w", err)
	}
	seq := indicator.NewSequencer(app.strip, script, app.clock)

	app.reader, err = app.openReader(rcfg)
	if err != nil {
		return fmt.Errorf("init reader: %w", err)
	}
	if _, err := reader.Handshake(ctx, app.reader, rcfg.HandshakeInterval, app.log); err != nil {
		return err
	}

	app.mqtt, err = mqtt.New(cfg.MQTT, cfg.ClientID, mqtt.Handlers{
		OnConnect:    app.onMQTTConnect,
		OnDisconnect: app.onMQTTDisconnect,
	}, app.log.With().Str("component", "mqtt").Logger())
	if err != nil {
		return fmt.Errorf("init MQTT: %w", err)
	}
	go func() {
		if err := app.mqtt.Connect(); err != nil {
			app.log.Error().Err(err).Msg("MQTT connect")
		}
	}()

	rep, err := app.reporters()
	if err != nil {
		return err
	}

	poller := reader.NewPoller(app.reader, app.clock, rcfg.Budget(), app.log)
	app.cycle = cycle.New(poller, dedup.NewEngine(cfg.Dedup), seq, status, rep, app.clock, app.log)

	go app.pingSender(ctx)
	return app.cycle.Run(ctx)
}

// openReader returns the event pipe stand-in when one is configured and the
// PN532 otherwise.
func (app *App) openReader(rcfg reader.Config) (reader.Transport, error) {
	log := app.log.With().Str("component", "reader").Logger()
	ep, err := eventpipe.New(app.cfg.EventPipe, log)
	if err != nil {
		return nil, err
	}
	if ep != nil {
		go ep.Start()
		return ep, nil
	}
	pn, err := reader.New(rcfg, log)
	if err != nil {
		return nil, err
	}
	return pn, nil
}

func (app *App) reporters() (report.Reporter, error) {
	console, closer, err := report.OpenConsole(app.cfg.Report, app.log)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}

	reps := report.Multi{console}
	if app.mqtt.IsEnabled() {
		reps = append(reps, report.NewMQTT(app.mqtt))
	}
	return reps, nil
}

func (app *App) shutdown() {
	if app.cycle != nil {
		app.log.Info().Interface("stats", app.cycle.Stats().Snapshot()).Msg("final counters")
	}
	if app.mqtt != nil {
		app.mqtt.Disconnect()
	}
	if app.reader != nil {
		if err := app.reader.Close(); err != nil {
			app.log.Debug().Err(err).Msg("close reader")
		}
	}
	if app.strip != nil {
		app.strip.SetBrightness(0)
		if err := app.strip.Show(); err != nil {
			app.log.Debug().Err(err).Msg("blank strip")
		}
		app.strip.Release()
	}
	for _, c := range app.closers {
		c.Close()
	}
}

func (app *App) onMQTTConnect() {
	app.log.Info().Str("topic", app.mqtt.Topic("tag")).Msg("publishing detections")
}

func (app *App) onMQTTDisconnect() {
	app.log.Warn().Msg("detections will not be published until MQTT reconnects")
}

type pingMessage struct {
	Status string           `json:"status"`
	Build  string           `json:"build,omitempty"`
	Stats  map[string]int64 `json:"stats"`
}

func (app *App) pingPayload() ([]byte, error) {
	return json.Marshal(pingMessage{
		Status: "ok",
		Build:  myBuild,
		Stats:  app.cycle.Stats().Snapshot(),
	})
}

func (app *App) pingSender(ctx context.Context) {
	if !app.mqtt.IsEnabled() {
		return
	}
	ticker := time.NewTicker(app.cfg.pingInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, err := app.pingPayload()
			if err != nil {
				app.log.Error().Err(err).Msg("encode ping")
				continue
			}
			if err := app.mqtt.Publish(app.mqtt.Topic("ping"), payload); err != nil {
				app.log.Warn().Err(err).Msg("ping")
			}
		}
	}
}
