// Package logging wires up the process-wide structured logger: a plain
// text handler on stderr, fanned out via slog-multi to an optional file
// handler (JSON or text, per Options.JSON) when one is configured.
package logging

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	slogmulti "github.com/samber/slog-multi"
)

// Options configures Setup.
type Options struct {
	Verbose bool
	Quiet   bool
	LogFile string
	JSON    bool
}

// Setup installs the process-wide logger per opts and returns a cleanup
// function that closes any opened log file.
func Setup(opts Options) (cleanup func(), err error) {
	level := slog.LevelInfo
	switch {
	case opts.Quiet:
		level = slog.LevelWarn
	case opts.Verbose:
		level = slog.LevelDebug
	}

	handlers := []slog.Handler{slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})}
	cleanup = func() {}

	if opts.LogFile != "" {
		f, ferr := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if ferr != nil {
			return cleanup, fmt.Errorf("opening log file %s: %w", opts.LogFile, ferr)
		}
		cleanup = func() { _ = f.Close() }

		if opts.JSON {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		} else {
			handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = slogmulti.Fanout(handlers...)
	}

	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

var (
	levelColors = map[slog.Level]*color.Color{
		slog.LevelDebug: color.New(color.FgHiBlack),
		slog.LevelInfo:  color.New(color.FgCyan),
		slog.LevelWarn:  color.New(color.FgYellow),
		slog.LevelError: color.New(color.FgRed, color.Bold),
	}
)

// LevelLabel renders a colorized level label for manual log-style output
// outside of slog.
func LevelLabel(level slog.Level) string {
	c, ok := levelColors[level]
	if !ok {
		return level.String()
	}
	return c.Sprint(level.String())
}
