package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vadiminshakov/tokencore/app"
	"github.com/vadiminshakov/tokencore/config"
	"github.com/vadiminshakov/tokencore/core/content"
	"github.com/vadiminshakov/tokencore/core/device"
	"github.com/vadiminshakov/tokencore/core/flow"
	"github.com/vadiminshakov/tokencore/core/flow/hooks"
	"github.com/vadiminshakov/tokencore/io/display"
	"github.com/vadiminshakov/tokencore/io/gateway/grpc/server"
	"github.com/vadiminshakov/tokencore/io/store"
	"github.com/vadiminshakov/tokencore/io/transport"
)

func main() {
	conf := config.Get()
	if err := setupLogging(conf); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf); err != nil {
		log.Fatal(err)
	}
}

func setupLogging(conf *config.Config) error {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	level, err := log.ParseLevel(conf.Log.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	// the terminal emulator owns stdout
	if conf.UI.Mode == config.ModeTUI && conf.Log.File == "" {
		conf.Log.File = "tokencore.log"
	}
	if conf.Log.File != "" {
		f, err := os.OpenFile(conf.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return errors.Wrap(err, "open log file")
		}
		log.SetOutput(f)
	}
	return nil
}

func run(ctx context.Context, conf *config.Config) error {
	seed, err := deviceSeed(conf.Device.Seed)
	if err != nil {
		return err
	}

	devCfg := device.Config{
		Target:    content.Target(conf.Device.Target),
		MTU:       conf.Transport.MTU,
		AppName:   conf.Device.AppName,
		Version:   conf.Device.Version,
		Developer: conf.Device.Developer,
		Seed:      seed,
		Tick:      conf.UI.Tick,
	}

	events := make(chan flow.Event, 16)
	opts := []device.Option{device.WithEvents(events)}

	metrics := hooks.NewMetricsHook()
	opts = append(opts, device.WithHooks(metrics))

	if conf.Store.DBPath != "" {
		wal, err := store.OpenWAL(conf.Store.WALPath)
		if err != nil {
			return err
		}
		defer wal.Close()

		st, state, err := store.New(wal, conf.Store.DBPath)
		if err != nil {
			return errors.Wrap(err, "open store")
		}
		defer st.Close()
		log.Infof("store recovered: next index %d, %d decisions", state.NextIndex, state.Decisions)

		if devCfg.Expert, err = st.Expert(); err != nil {
			return errors.Wrap(err, "read expert mode")
		}
		opts = append(opts, device.WithHooks(hooks.NewAuditHook(st), hooks.NewSettingsHook(st)))
	}

	var link transport.Link
	switch conf.Transport.Channel {
	case config.ChannelGRPC:
		link = server.New(conf.Node.Addr, server.WithWhitelist(conf.Node.Whitelist...))
	case config.ChannelMemory:
		link = transport.NewMemLink(1)
	}

	var term *display.Terminal
	if conf.UI.Mode == config.ModeTUI {
		term = display.NewTerminal(events)
		opts = append(opts, device.WithRenderer(term))
	} else {
		opts = append(opts, device.WithRenderer(display.NewHeadless()))
	}

	dev, err := device.New(devCfg, link, opts...)
	if err != nil {
		return errors.Wrap(err, "create device")
	}

	defer func() {
		approved, rejected, toggles := metrics.GetStats()
		log.Infof("sessions: %d approved, %d rejected, %d expert toggles", approved, rejected, toggles)
	}()

	if term == nil {
		return dev.Run(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- dev.Run(ctx)
		term.Quit()
	}()
	if err := term.Run(); err != nil {
		log.Errorf("terminal stopped: %v", err)
	}
	cancel()
	return <-done
}

// deviceSeed decodes the configured secret or draws a fresh one.
func deviceSeed(s string) ([app.SeedSize]byte, error) {
	var seed [app.SeedSize]byte
	if s == "" {
		if _, err := rand.Read(seed[:]); err != nil {
			return seed, errors.Wrap(err, "generate seed")
		}
		log.Warn("no device.seed configured, keys are ephemeral")
		return seed, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return seed, errors.Wrap(err, "decode device.seed")
	}
	if len(raw) != app.SeedSize {
		return seed, errors.Errorf("device.seed must be %d bytes, got %d", app.SeedSize, len(raw))
	}
	copy(seed[:], raw)
	return seed, nil
}
