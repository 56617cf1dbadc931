// Package observability sets up structured logging. The TUI owns stdout,
// so logs go to a file.
package observability

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Logger wraps slog with the file it writes to.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// NewLogger returns a JSON logger appending to path at the given level
// ("debug", "info", "warn" or "error"). An empty path discards output.
func NewLogger(serviceName, path, level string) (*Logger, error) {
	var (
		out    io.Writer = io.Discard
		closer io.Closer
	)
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening log file %s: %w", path, err)
		}
		out, closer = f, f
	}

	return newLogger(out, closer, serviceName, level), nil
}

func newLogger(out io.Writer, closer io.Closer, serviceName, level string) *Logger {
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return &Logger{
		Logger: slog.New(handler).With("service", serviceName),
		closer: closer,
	}
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// ParseLevel maps a config level name to a slog level. Unknown names
// map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
