package telemetry

import (
	"log/slog"
	"os"
)

// InitSlog sets the default logger, verbose enables debug logs which
// also turns on http message dumps in restyutil.
func InitSlog(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
