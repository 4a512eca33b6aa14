package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. Services receive it via options and
// attach their own component key.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
