// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads servostat settings from a config file, environment
// variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (SERVOSTAT_SERIAL_PORT, ...)
const EnvPrefix = "SERVOSTAT"

// SerialConfig describes the serial bus connection
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

// WebSocketConfig describes a serial-over-WebSocket bridge
type WebSocketConfig struct {
	URL              string        `mapstructure:"url"`
	Username         string        `mapstructure:"username"`
	NoSSLVerify      bool          `mapstructure:"noSSLVerify"`
	HandshakeTimeout time.Duration `mapstructure:"handshakeTimeout"`
}

// ProtocolConfig holds packet layer settings
type ProtocolConfig struct {
	ByteOrder string `mapstructure:"byteOrder"`
}

// LumberjackConfig configures rotated log files
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures diagnostics logging
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig configures the Prometheus endpoint of the poll command
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// PollConfig configures the poll command
type PollConfig struct {
	IDs  []int   `mapstructure:"ids"`
	Rate float64 `mapstructure:"rate"`
}

// Config is the top level configuration
type Config struct {
	Serial    SerialConfig    `mapstructure:"serial"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Protocol  ProtocolConfig  `mapstructure:"protocol"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Poll      PollConfig      `mapstructure:"poll"`
	Capture   string          `mapstructure:"capture"`
}

// FlagBindings maps config keys to the command line flags that override them
var FlagBindings = map[string]string{
	"serial.port":           "port",
	"serial.baud":           "baud",
	"serial.readTimeout":    "timeout",
	"websocket.url":         "url",
	"websocket.username":    "username",
	"websocket.noSSLVerify": "no-ssl-verify",
	"protocol.byteOrder":    "byte-order",
	"logging.level":         "log-level",
	"capture":               "capture",
}

// Load reads configuration from path (YAML, TOML or JSON), the
// environment and flags. An empty path searches ./servostat.* and
// ~/.config/servostat/; a missing file is not an error.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/servostat")
		v.SetConfigName("servostat")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range FlagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a command
func (c *Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("serial.readTimeout must be positive, got %s", c.Serial.ReadTimeout)
	}
	if c.WebSocket.HandshakeTimeout <= 0 {
		return fmt.Errorf("websocket.handshakeTimeout must be positive, got %s", c.WebSocket.HandshakeTimeout)
	}
	for _, id := range c.Poll.IDs {
		if id < 0 || id > 0xFD {
			return fmt.Errorf("poll.ids: %d is not an addressable device id", id)
		}
	}
	if c.Poll.Rate <= 0 {
		return fmt.Errorf("poll.rate must be positive, got %g", c.Poll.Rate)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 1000000)
	v.SetDefault("serial.readTimeout", "50ms")

	v.SetDefault("websocket.url", "")
	v.SetDefault("websocket.username", "")
	v.SetDefault("websocket.noSSLVerify", false)
	v.SetDefault("websocket.handshakeTimeout", "10s")

	v.SetDefault("protocol.byteOrder", "little")

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 7)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("poll.ids", []int{1, 2, 3, 4, 5, 6})
	v.SetDefault("poll.rate", 50.0)

	v.SetDefault("capture", "")
}
