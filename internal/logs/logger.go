package logs

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// New creates the process logger. Pretty selects the text handler for local
// development; otherwise records are JSON.
func New(level string, pretty bool) (*slog.Logger, error) {
	return NewWithWriter(os.Stdout, level, pretty)
}

func NewWithWriter(w io.Writer, level string, pretty bool) (*slog.Logger, error) {
	lvl, err := parseLogLevel(level)
	if err != nil {
		return nil, err
	}

	var logger *slog.Logger
	if pretty {
		logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	} else {
		logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	}

	return logger, nil
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, errors.Errorf("unknown log level: %s", level)
	}
}
