// Package logging sets up the structured logger shared by kashir components
// and provides secret masking for log lines that mention tokens.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps a config level name to a slog level.
// An empty string selects info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Init installs a text logger writing to w as the slog default and returns it.
// It should be called once at startup by the host.
func Init(level slog.Level, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// For returns a logger tagged with the given subsystem.
// A nil base falls back to slog.Default().
func For(base *slog.Logger, subsystem string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("subsystem", subsystem)
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Mask renders a secret for diagnostics: four leading and four trailing
// characters plus the length. Secrets of eight characters or fewer only
// show their length.
func Mask(secret string) string {
	r := []rune(secret)
	n := len(r)
	if n <= 8 {
		return fmt.Sprintf("…(len=%d)", n)
	}
	return fmt.Sprintf("%s…%s (len=%d)", string(r[:4]), string(r[n-4:]), n)
}
