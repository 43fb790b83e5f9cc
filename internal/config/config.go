// Package config handles configuration loading and validation for chunkchain.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/kk-code-lab/chunkchain/internal/storage/chunk"
	"github.com/kk-code-lab/chunkchain/pkg/bytesize"
)

// Environment variables that override file values.
const (
	EnvChunkSize  = "CHUNKCHAIN_CHUNK_SIZE"
	EnvSinkPath   = "CHUNKCHAIN_SINK_PATH"
	EnvLedgerPath = "CHUNKCHAIN_LEDGER_PATH"
	EnvLogLevel   = "CHUNKCHAIN_LOG_LEVEL"
)

// DefaultLedgerPath is the send ledger used when none is configured.
const DefaultLedgerPath = "chunkchain.db"

// LedgerOff disables the send ledger when given as ledger_path.
const LedgerOff = "off"

// Config holds all configuration for a chunkchain session.
type Config struct {
	ChunkSize    bytesize.Size `yaml:"chunk_size"`
	SinkPath     string        `yaml:"sink_path"`   // flat byte file written by send/delete
	LedgerPath   string        `yaml:"ledger_path"` // SQLite send history, empty or "off" disables it
	LogLevel     string        `yaml:"log_level"`
	VerifyOnLoad *bool         `yaml:"verify_on_load,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	on := true
	return &Config{
		ChunkSize:    bytesize.Size(chunk.DefaultSize),
		SinkPath:     "received_file.bin",
		LedgerPath:   DefaultLedgerPath,
		LogLevel:     "info",
		VerifyOnLoad: &on,
	}
}

// Load starts from Default, overlays the YAML file at path (optional), loads
// a .env file from the working directory if present, then applies
// environment overrides. Variables already set in the environment win over
// .env values. Keys present in the file replace defaults even when zero, so
// an explicit chunk_size of 0 fails validation.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.LedgerPath == LedgerOff {
		cfg.LedgerPath = ""
	}
	if cfg.VerifyOnLoad == nil {
		on := true
		cfg.VerifyOnLoad = &on
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvChunkSize); v != "" {
		n, err := bytesize.Parse(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w: %w", EnvChunkSize, chunk.ErrInvalidArgument, err)
		}
		c.ChunkSize = bytesize.Size(n)
	}
	if v := os.Getenv(EnvSinkPath); v != "" {
		c.SinkPath = v
	}
	if v := os.Getenv(EnvLedgerPath); v != "" {
		c.LedgerPath = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk_size must be positive, got %d: %w", c.ChunkSize.Bytes(), chunk.ErrInvalidArgument)
	}
	if strings.TrimSpace(c.SinkPath) == "" {
		return fmt.Errorf("config: sink_path is required")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	return nil
}

// ShouldVerifyOnLoad reports whether a freshly loaded list is verified.
func (c *Config) ShouldVerifyOnLoad() bool {
	return c.VerifyOnLoad == nil || *c.VerifyOnLoad
}

// Level returns the configured zerolog level, falling back to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
