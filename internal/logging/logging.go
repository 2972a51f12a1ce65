// Package logging sets up the structured file logger. The terminal UI owns
// stdout, so logs go to <data_dir>/soundstage.log as JSON lines.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileName is the log file created inside the data directory.
const FileName = "soundstage.log"

// Logger is an open file logger. Close flushes and closes the file.
type Logger struct {
	*slog.Logger
	SessionID string
	closer    io.Closer
}

// Open appends to the log file in dataDir. Every record carries the
// component name and a fresh session id.
func Open(dataDir, component string, level slog.Level) (*Logger, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dataDir, FileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l := New(f, component, level)
	l.closer = f
	return l, nil
}

// New logs JSON to w.
func New(w io.Writer, component string, level slog.Level) *Logger {
	id := uuid.NewString()
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{
		Logger: slog.New(handler).With(
			slog.String("component", component),
			slog.String("session", id),
		),
		SessionID: id,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, "discard", slog.LevelError)
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
