// Package common provides shared constants, types, and utilities
// used across the AWS VPN client CLI.
package common

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Log output formats.
const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// LogConfig holds configuration options for the logger.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is the output format (auto, text, json). Auto picks a
	// colored terminal handler when the output is a terminal.
	Format string
	// Output is the output writer (defaults to os.Stderr).
	Output io.Writer
	// NoColor disables color even on a terminal.
	NoColor bool
	// AddSource adds source file information to log entries.
	AddSource bool
}

// DefaultLogConfig returns the default logger configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: LogFormatAuto,
		Output: os.Stderr,
	}
}

// NewLogger builds a *slog.Logger from the configuration. There is no
// process-wide logger; callers construct one at startup and hand it to each
// component. An unknown level or format falls back to the default.
func NewLogger(cfg LogConfig) *slog.Logger {
	level := new(slog.LevelVar)
	if lvl, err := ParseLevel(cfg.Level); err == nil {
		level.Set(lvl)
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case LogFormatJSON:
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.AddSource,
		})
	case LogFormatText:
		handler = newTextHandler(output, level, cfg.AddSource)
	default:
		if isTerminal(output) {
			handler = newTerminalHandler(output, level, cfg)
		} else {
			handler = newTextHandler(output, level, cfg.AddSource)
		}
	}

	return slog.New(handler)
}

// ParseLevel parses a textual log level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalidInput, s)
	}
}

func newTextHandler(output io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return slog.NewTextHandler(output, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					return slog.String(a.Key, strings.ToLower(lvl.String()))
				}
			}
			return a
		},
	})
}

func newTerminalHandler(output io.Writer, level slog.Leveler, cfg LogConfig) slog.Handler {
	return tint.NewHandler(output, &tint.Options{
		NoColor:    cfg.NoColor,
		AddSource:  cfg.AddSource,
		Level:      level,
		TimeFormat: "15:04:05",
	})
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
