// Package config loads and validates this module's demo binary
// configuration, composing flag-sourced values with an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	pkgerrors "github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	oplog "github.com/cpstream/aligner/log"
	"github.com/cpstream/aligner/metrics"
)

var (
	ErrInvalidChannelCount = errors.New("config: channel count must be positive")
)

// Config is the full configuration for cmd/aligner-demo.
type Config struct {
	Log     oplog.Config
	Metrics metrics.Config

	Channels           int
	CheckpointInterval time.Duration
	Duration           time.Duration
}

// Check validates Config, returning the first violated invariant wrapped
// with its source (the same shape the rest of this codebase's Config.Check
// methods use so callers can require.ErrorIs against a stable sentinel).
func (c Config) Check() error {
	if c.Channels <= 0 {
		return ErrInvalidChannelCount
	}
	if err := c.Metrics.Check(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	return nil
}

// NewConfig builds a Config from parsed CLI flags, merging in a TOML file
// at flags.ConfigFlag's path if one was given. CLI flags that were
// explicitly set always win over the file.
func NewConfig(ctx *cli.Context) (Config, error) {
	cfg := Config{
		Log:                oplog.ReadCLIConfig(ctx),
		Channels:           ctx.Int("demo.channels"),
		CheckpointInterval: ctx.Duration("demo.checkpoint-interval"),
		Duration:           ctx.Duration("demo.duration"),
		Metrics: metrics.Config{
			Enabled: ctx.Bool("metrics.enabled"),
			Host:    ctx.String("metrics.addr"),
			Port:    ctx.Int("metrics.port"),
		},
	}

	if path := ctx.String("config"); path != "" {
		if err := mergeFromFile(ctx, path, &cfg); err != nil {
			return Config{}, pkgerrors.Wrapf(err, "loading config file %q", path)
		}
	}

	return cfg, nil
}

// fileConfig mirrors Config's fields that may be set from TOML; flags not
// explicitly passed on the CLI fall back to whatever the file sets.
type fileConfig struct {
	Channels           *int    `toml:"channels"`
	CheckpointInterval *string `toml:"checkpoint_interval"`
	Duration           *string `toml:"duration"`
	MetricsEnabled     *bool   `toml:"metrics_enabled"`
	MetricsHost        *string `toml:"metrics_host"`
	MetricsPort        *int    `toml:"metrics_port"`
}

func mergeFromFile(ctx *cli.Context, path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if _, err := toml.Decode(string(data), &fc); err != nil {
		return err
	}

	if !ctx.IsSet("demo.channels") && fc.Channels != nil {
		cfg.Channels = *fc.Channels
	}
	if !ctx.IsSet("demo.checkpoint-interval") && fc.CheckpointInterval != nil {
		d, err := time.ParseDuration(*fc.CheckpointInterval)
		if err != nil {
			return pkgerrors.Wrap(err, "checkpoint_interval")
		}
		cfg.CheckpointInterval = d
	}
	if !ctx.IsSet("demo.duration") && fc.Duration != nil {
		d, err := time.ParseDuration(*fc.Duration)
		if err != nil {
			return pkgerrors.Wrap(err, "duration")
		}
		cfg.Duration = d
	}
	if !ctx.IsSet("metrics.enabled") && fc.MetricsEnabled != nil {
		cfg.Metrics.Enabled = *fc.MetricsEnabled
	}
	if !ctx.IsSet("metrics.addr") && fc.MetricsHost != nil {
		cfg.Metrics.Host = *fc.MetricsHost
	}
	if !ctx.IsSet("metrics.port") && fc.MetricsPort != nil {
		cfg.Metrics.Port = *fc.MetricsPort
	}
	return nil
}
