// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Thermoquad/m16ctl/pkg/m16"
)

// EnvPrefix prefixes every environment override, e.g. M16_SERIAL_PORT
const EnvPrefix = "M16"

// SerialConfig selects the local serial port
type SerialConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

// BridgeConfig selects a remote serial bridge reached over WebSocket
type BridgeConfig struct {
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	NoSSLVerify bool   `mapstructure:"noSSLVerify"`
}

// ModemConfig is the configuration pushed to the modem on connect
type ModemConfig struct {
	Channel        int  `mapstructure:"channel"`
	Level          int  `mapstructure:"level"`
	Diagnostic     bool `mapstructure:"diagnostic"`
	ApplyOnConnect bool `mapstructure:"applyOnConnect"`
}

// TimingConfig holds the hardware delays
type TimingConfig struct {
	Unit         time.Duration `mapstructure:"unit"`
	Poll         time.Duration `mapstructure:"poll"`
	FrameWait    time.Duration `mapstructure:"frameWait"`
	ChunkTimeout time.Duration `mapstructure:"chunkTimeout"`
}

// LumberjackConfig configures log file rotation
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig selects log level and outputs
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// Config is the top-level configuration
type Config struct {
	Serial  SerialConfig  `mapstructure:"serial"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Modem   ModemConfig   `mapstructure:"modem"`
	Timing  TimingConfig  `mapstructure:"timing"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// flagKeys maps config keys to the CLI flags that override them
var flagKeys = map[string]string{
	"serial.port":         "port",
	"serial.baud":         "baud",
	"bridge.url":          "url",
	"bridge.username":     "username",
	"bridge.noSSLVerify":  "no-ssl-verify",
	"logging.level":       "log-level",
	"metrics.addr":        "metrics-addr",
	"timing.chunkTimeout": "chunk-timeout",
}

// Load reads configuration from a YAML/TOML/JSON file, M16_* environment
// variables and, if given, command-line flags (highest precedence).
// With an empty path m16ctl.yaml is looked up in the working directory and
// $HOME/.config/m16ctl; a missing file is not an error.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/m16ctl")
		v.SetConfigName("m16ctl")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
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
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 9600)

	v.SetDefault("bridge.url", "")
	v.SetDefault("bridge.username", "")
	v.SetDefault("bridge.noSSLVerify", false)

	v.SetDefault("modem.channel", 1)
	v.SetDefault("modem.level", 4)
	v.SetDefault("modem.diagnostic", false)
	v.SetDefault("modem.applyOnConnect", true)

	v.SetDefault("timing.unit", "1s")
	v.SetDefault("timing.poll", "100ms")
	v.SetDefault("timing.frameWait", "2s")
	v.SetDefault("timing.chunkTimeout", "5s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 28)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks values the driver would otherwise reject at runtime
func (c *Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if err := m16.ValidateChannel(c.Modem.Channel); err != nil {
		return fmt.Errorf("modem.channel: %w", err)
	}
	if err := m16.ValidatePowerLevel(c.Modem.Level); err != nil {
		return fmt.Errorf("modem.level: %w", err)
	}
	if c.Timing.Unit <= 0 || c.Timing.Poll <= 0 || c.Timing.FrameWait <= 0 || c.Timing.ChunkTimeout <= 0 {
		return fmt.Errorf("timing values must be positive: %+v", c.Timing)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// DeviceConfig is the modem section as a driver configuration
func (c ModemConfig) DeviceConfig() m16.DeviceConfig {
	return m16.DeviceConfig{
		Channel:    c.Channel,
		PowerLevel: c.Level,
		Mode:       m16.ModeFromBool(c.Diagnostic),
	}
}

// Timing is the timing section as driver delays
func (c TimingConfig) Timing() m16.Timing {
	return m16.Timing{
		Unit:      c.Unit,
		Poll:      c.Poll,
		FrameWait: c.FrameWait,
	}
}
