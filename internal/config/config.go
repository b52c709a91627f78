// Package config loads the light client configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the light client.
type Config struct {
	Hub        HubConfig        `yaml:"hub"`
	Client     ClientConfig     `yaml:"client"`
	API        APIConfig        `yaml:"api"`
	Polling    PollingConfig    `yaml:"polling"`
	Watchtower WatchtowerConfig `yaml:"watchtower"`
	Storage    StorageConfig    `yaml:"storage"`
	LogLevel   string           `yaml:"log_level"`
}

// HubConfig configures the hub transport.
type HubConfig struct {
	URL               string        `yaml:"url"`
	APIKey            string        `yaml:"api_key"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// ClientConfig identifies the light client on chain.
type ClientConfig struct {
	Address string `yaml:"address"`
	ChainID int64  `yaml:"chain_id"`
	KeyFile string `yaml:"key_file"`
}

// APIConfig configures the local HTTP API.
type APIConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

// PollingConfig configures the hub message poller.
type PollingConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// WatchtowerConfig configures delegation resubmission. ResubmitSchedule is a
// cron expression; empty disables the retry loop.
type WatchtowerConfig struct {
	ResubmitSchedule string `yaml:"resubmit_schedule"`
}

// StorageConfig configures the snapshot store. An empty DSN keeps snapshots
// in memory.
type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Hub: HubConfig{
			URL:               "http://localhost:5001/api/v1",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 10,
		},
		Client: ClientConfig{
			ChainID: 33,
			KeyFile: "lightclient.key",
		},
		API: APIConfig{
			ListenAddress: ":8080",
		},
		Polling: PollingConfig{
			Interval: 5 * time.Second,
		},
		Watchtower: WatchtowerConfig{
			ResubmitSchedule: "@every 1m",
		},
		LogLevel: "info",
	}
}

// Load reads and validates the configuration at path. Fields missing from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the configuration at path, falling back to defaults
// when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks the configuration for values the client cannot run with.
func (c *Config) Validate() error {
	if c.Hub.URL == "" {
		return fmt.Errorf("config: hub.url is required")
	}
	if c.Hub.Timeout < 0 {
		return fmt.Errorf("config: hub.timeout must not be negative")
	}
	if c.Polling.Interval < 0 {
		return fmt.Errorf("config: polling.interval must not be negative")
	}
	if c.API.ListenAddress == "" {
		return fmt.Errorf("config: api.listen_address is required")
	}
	return nil
}
