package observability

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide structured logger. JSON to stdout so log
// collectors can parse it without extra configuration.
func NewLogger(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "development" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("env", appEnv)
}
