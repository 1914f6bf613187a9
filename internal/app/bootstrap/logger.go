package bootstrap

import (
	"log/slog"
	"os"
	"strings"

	"gathering/internal/platform/config"
)

// newLogger installs the process-wide handler and returns the default
// logger tagged with service and process.
func newLogger(cfg config.Config, process string) *slog.Logger {
	options := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, options)
	} else {
		handler = slog.NewTextHandler(os.Stderr, options)
	}
	slog.SetDefault(slog.New(handler))
	return slog.Default().With("service", cfg.ServiceName, "process", process)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
