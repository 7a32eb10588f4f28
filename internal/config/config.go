// Package config loads client and relay settings from YAML or TOML files with
// COURSEHUB_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COURSEHUB_"

// ErrUnknownFormat is returned for files that are neither YAML nor TOML.
var ErrUnknownFormat = errors.New("unknown config format")

type Config struct {
	Client ClientConfig `yaml:"client" toml:"client" envPrefix:"CLIENT_"`
	Relay  RelayConfig  `yaml:"relay" toml:"relay" envPrefix:"RELAY_"`
	Log    LogConfig    `yaml:"log" toml:"log" envPrefix:"LOG_"`
}

type ClientConfig struct {
	BaseURL   string          `yaml:"base_url" toml:"base_url" env:"BASE_URL"`
	Token     string          `yaml:"token" toml:"token" env:"TOKEN"`
	Threads   []string        `yaml:"threads" toml:"threads" env:"THREADS" envSeparator:","`
	LiveClass string          `yaml:"live_class" toml:"live_class" env:"LIVE_CLASS"`
	Reconnect ReconnectConfig `yaml:"reconnect" toml:"reconnect" envPrefix:"RECONNECT_"`
}

type ReconnectConfig struct {
	Interval     time.Duration `yaml:"interval" toml:"interval" env:"INTERVAL"`
	MaxAttempts  int           `yaml:"max_attempts" toml:"max_attempts" env:"MAX_ATTEMPTS"`
	MaxDelay     time.Duration `yaml:"max_delay" toml:"max_delay" env:"MAX_DELAY"`
	PingInterval time.Duration `yaml:"ping_interval" toml:"ping_interval" env:"PING_INTERVAL"`
}

type RelayConfig struct {
	Host           string        `yaml:"host" toml:"host" env:"HOST"`
	Port           int           `yaml:"port" toml:"port" env:"PORT"`
	JWTSecret      string        `yaml:"jwt_secret" toml:"jwt_secret" env:"JWT_SECRET"`
	AllowedOrigins []string      `yaml:"allowed_origins" toml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	MaxClients     int           `yaml:"max_clients" toml:"max_clients" env:"MAX_CLIENTS"`
	SendBuffer     int           `yaml:"send_buffer" toml:"send_buffer" env:"SEND_BUFFER"`
	Mock           bool          `yaml:"mock" toml:"mock" env:"MOCK"`
	MockInterval   time.Duration `yaml:"mock_interval" toml:"mock_interval" env:"MOCK_INTERVAL"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level" env:"LEVEL"`
	File  string `yaml:"file" toml:"file" env:"FILE"`
}

func defaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			BaseURL: "http://127.0.0.1:8080",
			Reconnect: ReconnectConfig{
				Interval:    3 * time.Second,
				MaxAttempts: 5,
				MaxDelay:    30 * time.Second,
			},
		},
		Relay: RelayConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			MaxClients:   1000,
			SendBuffer:   64,
			MockInterval: 2 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load returns the defaults overlaid with the file at path (skipped when path
// is empty) and then with environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Validate rejects settings the client or relay cannot run with.
func (c *Config) Validate() error {
	r := c.Client.Reconnect
	if r.Interval < 0 || r.MaxDelay < 0 || r.PingInterval < 0 {
		return errors.New("reconnect durations must not be negative")
	}
	if r.MaxDelay > 0 && r.MaxDelay < r.Interval {
		return fmt.Errorf("reconnect max_delay %s is shorter than interval %s", r.MaxDelay, r.Interval)
	}
	if c.Relay.Port < 0 || c.Relay.Port > 65535 {
		return fmt.Errorf("relay port %d out of range", c.Relay.Port)
	}
	if c.Relay.SendBuffer <= 0 {
		return errors.New("relay send_buffer must be positive")
	}
	return nil
}

// Addr is the relay listen address.
func (r RelayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
