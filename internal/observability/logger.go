package observability

import (
	"io"
	"log/slog"
	"strings"
)

// LoggerOptions controls NewLogger.
type LoggerOptions struct {
	// Format is "json" or "text". Anything else means text.
	Format string
	// Verbose enables debug level.
	Verbose bool
	// Quiet drops time and level attributes, for CLI output meant for humans.
	Quiet bool
}

// NewLogger builds the process logger.
func NewLogger(out io.Writer, opts LoggerOptions) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.Quiet {
		handlerOpts.ReplaceAttr = func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		}
	}

	if strings.EqualFold(opts.Format, "json") {
		return slog.New(slog.NewJSONHandler(out, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(out, handlerOpts))
}
