// Package config loads the TOML configuration shared by the host tools.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Serial SerialConfig `toml:"serial"`
	MQTT   MQTTConfig   `toml:"mqtt"`
	Log    LogConfig    `toml:"log"`
}

type SerialConfig struct {
	Device        string `toml:"device"`
	Baud          int    `toml:"baud"`
	ReadTimeoutMS int    `toml:"read_timeout_ms"`
}

type MQTTConfig struct {
	Enabled      bool   `toml:"enabled"`
	Broker       string `toml:"broker"`
	TopicPrefix  string `toml:"topic_prefix"`
	ClientSuffix string `toml:"client_suffix"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is given. The serial
// settings match the proxy firmware's UART.
func Default() Config {
	return Config{
		Serial: SerialConfig{
			Device:        "/dev/ttyUSB1",
			Baud:          921600,
			ReadTimeoutMS: 100,
		},
		MQTT: MQTTConfig{
			TopicPrefix: "hidlink",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a TOML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks a configuration regardless of how it was assembled.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Serial.Device) == "" {
		return fmt.Errorf("serial config missing device")
	}
	if cfg.Serial.Baud <= 0 {
		return fmt.Errorf("serial config baud must be positive, got %d", cfg.Serial.Baud)
	}
	if cfg.Serial.ReadTimeoutMS < 0 {
		return fmt.Errorf("serial config read_timeout_ms must not be negative, got %d", cfg.Serial.ReadTimeoutMS)
	}
	if cfg.MQTT.Enabled && strings.TrimSpace(cfg.MQTT.Broker) == "" {
		return fmt.Errorf("mqtt enabled but broker missing")
	}
	return nil
}
