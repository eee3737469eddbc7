// Package logging builds the zerolog logger used across apidash.
//
// The TUI owns the terminal, so nothing is written to stdout or stderr. When
// debug logging is enabled, JSON lines are appended to a file instead.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// DefaultFile is where debug logs go when no file is configured.
var DefaultFile = filepath.Join(os.TempDir(), "apidash.log")

// Nop discards everything.
var Nop = zerolog.Nop()

// New returns a logger writing to w at level.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Open returns a debug logger appending to path, or Nop when debug is
// false. The returned closer must be called on exit.
func Open(debug bool, path string) (zerolog.Logger, io.Closer, error) {
	if !debug {
		return Nop, io.NopCloser(nil), nil
	}
	if path == "" {
		path = DefaultFile
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Nop, io.NopCloser(nil), fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Nop, io.NopCloser(nil), fmt.Errorf("open log file %s: %w", path, err)
	}
	return New(f, zerolog.DebugLevel).With().Caller().Logger(), f, nil
}
