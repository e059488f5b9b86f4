// Package logger constructs the application's structured zap logger.
package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Logger wraps a zap.Logger so callers can defer initialization until the
// desired level is known.
type Logger struct {
	// Log is the underlying zap logger. It is a no-op until Init is called.
	Log *zap.Logger
}

// New returns a Logger with a no-op zap logger.
func New() *Logger {
	return &Logger{Log: zap.NewNop()}
}

// Init replaces the underlying logger with a production zap logger at the
// given level ("Debug", "Info", "Warn", "Error"). Returns an error if the
// level cannot be parsed or the logger cannot be built.
func (l *Logger) Init(level string) error {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	z, err := cfg.Build()
	if err != nil {
		return err
	}

	l.Log = z
	return nil
}
