// Package log wires the go-ethereum structured logger up to a urfave/cli
// app the way the rest of this codebase's services do, so every binary
// gets the same level/format/color flags and the same global handler setup.
package log

import (
	"io"
	"log/slog"
	"os"

	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
)

const (
	LevelFlagName  = "log.level"
	FormatFlagName = "log.format"
	ColorFlagName  = "log.color"
	PidFlagName    = "log.pid"
)

// FormatText and FormatJSON select the handler Config.Handler builds.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config describes how to build a gethlog.Logger from CLI flags.
type Config struct {
	Level  gethlog.Level
	Format string
	// Color is nil when not explicitly set: auto-detect via isatty.
	Color *bool
	Pid    bool
}

func (c Config) useColor(w io.Writer) bool {
	if c.Color != nil {
		return *c.Color
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Handler builds the slog.Handler described by this Config, writing to w.
func (c Config) Handler(w io.Writer) slog.Handler {
	switch c.Format {
	case FormatJSON:
		return gethlog.JSONHandlerWithLevel(w, c.Level)
	default:
		return gethlog.NewTerminalHandlerWithLevel(w, c.Level, c.useColor(w))
	}
}

// NewLogger builds the root logger for a Config, writing to w. The returned
// logger carries a process id attribute when Config.Pid is set, mirroring
// multi-process deployments where stdout is shared.
func NewLogger(w io.Writer, cfg Config) gethlog.Logger {
	handler := cfg.Handler(w)
	l := gethlog.NewLogger(handler)
	if cfg.Pid {
		l = l.With("pid", os.Getpid())
	}
	return l
}

// SetGlobalLogHandler installs h as the root logger's handler, so packages
// that log through the package-level gethlog.Info/Warn/etc. helpers (most
// notably third-party libraries) share this process's format and level.
func SetGlobalLogHandler(h gethlog.Handler) {
	gethlog.SetDefault(gethlog.NewLogger(h))
}

// SetupDefaults installs a sensible root logger before CLI flags have been
// parsed, so anything logged during flag parsing itself (urfave/cli errors)
// is still formatted consistently.
func SetupDefaults() {
	SetGlobalLogHandler(gethlog.NewTerminalHandlerWithLevel(os.Stderr, gethlog.LevelInfo, isatty.IsTerminal(os.Stderr.Fd())))
}

// AppOut is the writer a CLI app's logger should write to; always stderr so
// stdout stays free for a command's actual output.
func AppOut(ctx *cli.Context) io.Writer { return os.Stderr }

func levelFromString(s string) gethlog.Level {
	switch s {
	case "trace":
		return gethlog.LevelTrace
	case "debug":
		return gethlog.LevelDebug
	case "warn":
		return gethlog.LevelWarn
	case "error":
		return gethlog.LevelError
	case "crit":
		return gethlog.LevelCrit
	default:
		return gethlog.LevelInfo
	}
}

// ReadCLIConfig extracts a Config from parsed CLI flags.
func ReadCLIConfig(ctx *cli.Context) Config {
	cfg := Config{
		Level:  levelFromString(ctx.String(LevelFlagName)),
		Format: ctx.String(FormatFlagName),
		Pid:    ctx.Bool(PidFlagName),
	}
	if ctx.IsSet(ColorFlagName) {
		v := ctx.Bool(ColorFlagName)
		cfg.Color = &v
	}
	return cfg
}
