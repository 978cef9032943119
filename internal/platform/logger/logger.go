package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON output so log shippers can index the
// structured fields the pipeline attaches (number, stage, verdict).
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops everything; used by tests and as the
// default when callers do not inject one.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
