// Package config loads the YAML file describing how a beryldb server
// should run, in the same style cmd/warren's apply command parses its
// resource manifests: read the file, unmarshal with gopkg.in/yaml.v3,
// fill in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Database holds the per-database settings a config file may override.
// Entries not listed here are created lazily with the top-level defaults.
type Database struct {
	Name       string `yaml:"name"`
	BloomBits  uint64 `yaml:"bloom_bits,omitempty"`
	BloomHash  int    `yaml:"bloom_hash,omitempty"`
}

// Config is the root of a beryldb YAML config file.
type Config struct {
	// Listen is the TCP address the server accepts client connections on.
	Listen string `yaml:"listen"`

	// DataDir is the directory holding one bbolt file per database.
	DataDir string `yaml:"data_dir"`

	// Workers is the size of the Flusher's worker pool.
	Workers int `yaml:"workers"`

	// IterLimit bounds how many items a streaming query packs into one
	// partial result before yielding control back to the event loop.
	IterLimit int `yaml:"iter_limit"`

	// SweepInterval controls how often the event loop checks the Expire
	// and Future indexes for due timers.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// MetricsListen is the address the /metrics, /health, and /ready
	// HTTP handlers are mounted on. Empty disables the sidecar.
	MetricsListen string `yaml:"metrics_listen"`

	// Databases lists the databases to open at startup. When the list is
	// empty, a single database named "main" is opened as the default.
	Databases []Database `yaml:"databases"`

	// LogLevel is passed straight through to log.Config.
	LogLevel string `yaml:"log_level"`

	// LogJSON selects structured JSON logging over the console writer.
	LogJSON bool `yaml:"log_json"`
}

// Default returns the configuration a bare `beryldb serve` runs with when
// no --config file is given.
func Default() *Config {
	return &Config{
		Listen:        "127.0.0.1:8910",
		DataDir:       "./data",
		Workers:       8,
		IterLimit:     100,
		SweepInterval: time.Second,
		MetricsListen: "127.0.0.1:9910",
		LogLevel:      "info",
		LogJSON:       false,
	}
}

// Load reads and parses a YAML config file at path, filling any field left
// zero with Default()'s value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Listen == "" {
		cfg.Listen = def.Listen
	}
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.Workers == 0 {
		cfg.Workers = def.Workers
	}
	if cfg.IterLimit == 0 {
		cfg.IterLimit = def.IterLimit
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
}

// Validate rejects settings that would leave the server unable to start.
func (cfg *Config) Validate() error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("config: workers must be positive, got %d", cfg.Workers)
	}
	if cfg.IterLimit <= 0 {
		return fmt.Errorf("config: iter_limit must be positive, got %d", cfg.IterLimit)
	}
	if cfg.SweepInterval <= 0 {
		return fmt.Errorf("config: sweep_interval must be positive, got %s", cfg.SweepInterval)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	for _, db := range cfg.Databases {
		if db.Name == "" {
			return fmt.Errorf("config: database entry with empty name")
		}
	}
	return nil
}
