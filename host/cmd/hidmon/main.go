// hidmon listens on the proxy's serial link, decodes each packet and
// prints it in human-readable form. With MQTT configured it also forwards
// every decoded event to the broker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"hidlink/host/bridge"
	"hidlink/host/config"
	"hidlink/host/link"
	"hidlink/host/serial"
	"hidlink/protocol"
)

var (
	device  = flag.String("device", "", "Serial device path (overrides config)")
	baud    = flag.Int("baud", 0, "Baud rate (overrides config)")
	cfgPath = flag.String("config", "", "Path to TOML config file")
	verbose = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := initLogger(cfg.Log.Level)

	l, err := link.Dial(&serial.Config{
		Device:      cfg.Serial.Device,
		Baud:        cfg.Serial.Baud,
		ReadTimeout: cfg.Serial.ReadTimeoutMS,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open link")
	}
	defer l.Close()

	var mq *bridge.Bridge
	if cfg.MQTT.Enabled {
		mq, err = bridge.Connect(bridge.Options{
			Broker:       cfg.MQTT.Broker,
			TopicPrefix:  cfg.MQTT.TopicPrefix,
			ClientSuffix: cfg.MQTT.ClientSuffix,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect mqtt bridge")
		}
		defer mq.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Listening on %s (Ctrl+C to exit)...\n", cfg.Serial.Device)
	err = l.Run(ctx, func(msg protocol.Message) {
		fmt.Println(msg)
		if mq != nil {
			mq.Publish(msg)
		}
	})

	stats := l.Stats()
	log.Info().
		Uint64("decoded", stats.Decoded).
		Uint64("checksum_errors", stats.ChecksumErrors).
		Uint64("header_errors", stats.HeaderErrors).
		Uint64("body_errors", stats.BodyErrors).
		Uint64("malformed", stats.Malformed).
		Uint64("unknown_types", stats.UnknownTypes).
		Msg("link closed")

	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
	default:
		log.Fatal().Err(err).Msg("link failed")
	}
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, config.Validate(cfg)
}

func initLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "hidmon").Logger()
}
