package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

var DebugEnabled bool

// New returns a text logger writing to w, at debug level when DebugEnabled is set.
func New(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if DebugEnabled {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Setup installs the stderr logger as the slog default and returns it.
func Setup(debug bool) *slog.Logger {
	DebugEnabled = debug
	logger := New(os.Stderr)
	slog.SetDefault(logger)
	return logger
}

// Debugf logs only if DebugEnabled is true
func Debugf(format string, args ...interface{}) {
	if DebugEnabled {
		slog.Debug(fmt.Sprintf(format, args...))
	}
}
