// Package flags defines the CLI surface shared by this module's binaries.
package flags

import (
	"github.com/urfave/cli/v2"

	oplog "github.com/cpstream/aligner/log"
)

const envPrefix = "ALIGNER"

func prefixEnvVar(name string) []string {
	return []string{envPrefix + "_" + name}
}

var (
	LogLevelFlag = &cli.StringFlag{
		Name:    oplog.LevelFlagName,
		Usage:   "Log level: trace, debug, info, warn, error, crit",
		Value:   "info",
		EnvVars: prefixEnvVar("LOG_LEVEL"),
	}
	LogFormatFlag = &cli.StringFlag{
		Name:    oplog.FormatFlagName,
		Usage:   "Log format: text, json",
		Value:   oplog.FormatText,
		EnvVars: prefixEnvVar("LOG_FORMAT"),
	}
	LogColorFlag = &cli.BoolFlag{
		Name:    oplog.ColorFlagName,
		Usage:   "Force color on/off; unset auto-detects a terminal",
		EnvVars: prefixEnvVar("LOG_COLOR"),
	}
	LogPidFlag = &cli.BoolFlag{
		Name:    oplog.PidFlagName,
		Usage:   "Include the process id on every log line",
		EnvVars: prefixEnvVar("LOG_PID"),
	}

	MetricsEnabledFlag = &cli.BoolFlag{
		Name:    "metrics.enabled",
		Usage:   "Serve Prometheus metrics",
		EnvVars: prefixEnvVar("METRICS_ENABLED"),
	}
	MetricsAddrFlag = &cli.StringFlag{
		Name:    "metrics.addr",
		Usage:   "Metrics listening address",
		Value:   "0.0.0.0",
		EnvVars: prefixEnvVar("METRICS_ADDR"),
	}
	MetricsPortFlag = &cli.IntFlag{
		Name:    "metrics.port",
		Usage:   "Metrics listening port",
		Value:   7300,
		EnvVars: prefixEnvVar("METRICS_PORT"),
	}

	ChannelsFlag = &cli.IntFlag{
		Name:    "demo.channels",
		Usage:   "Number of synthetic input channels to align over",
		Value:   4,
		EnvVars: prefixEnvVar("DEMO_CHANNELS"),
	}
	CheckpointIntervalFlag = &cli.DurationFlag{
		Name:    "demo.checkpoint-interval",
		Usage:   "How often the synthetic gate injects a new barrier",
		Value:   0,
		EnvVars: prefixEnvVar("DEMO_CHECKPOINT_INTERVAL"),
	}
	DurationFlag = &cli.DurationFlag{
		Name:    "demo.duration",
		Usage:   "How long to run the demo before shutting down; 0 runs until interrupted (SIGINT/SIGTERM)",
		EnvVars: prefixEnvVar("DEMO_DURATION"),
	}
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "Path to a TOML config file; CLI flags override values it sets",
		EnvVars: prefixEnvVar("CONFIG"),
	}
)

// Flags is the full set registered on the root app.
var Flags = []cli.Flag{
	LogLevelFlag,
	LogFormatFlag,
	LogColorFlag,
	LogPidFlag,
	MetricsEnabledFlag,
	MetricsAddrFlag,
	MetricsPortFlag,
	ChannelsFlag,
	CheckpointIntervalFlag,
	DurationFlag,
	ConfigFlag,
}
