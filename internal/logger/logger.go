// Package logger holds the process-wide structured logger used by the
// allocator packages. It discards everything until Init is called, so
// library users who never configure logging pay nothing.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// L is the global logger instance. It's initialized to discard all output by default.
// Call Init() to enable logging.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options configures the logger initialization.
type Options struct {
	Enabled bool       // If false, all logging is discarded
	Writer  io.Writer  // Destination. Default: os.Stderr
	Level   slog.Level // Minimum log level. Default: LevelInfo when enabled
	JSON    bool       // Emit JSON records instead of key=value text
}

// Init configures logging. Call from main() before any log calls.
// If opts.Enabled is false, all log output is discarded.
func Init(opts Options) {
	if !opts.Enabled {
		L = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}

	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(w, hopts))
	} else {
		L = slog.New(slog.NewTextHandler(w, hopts))
	}
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Unknown names yield LevelInfo.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) { L.Error(msg, args...) }
