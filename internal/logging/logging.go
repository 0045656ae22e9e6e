// Package logging builds the slog loggers used by the server and CLI.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger at level writing json or text records. When file is
// set, records go to a rotating file instead of stderr.
func New(level, format, file string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var w io.Writer = os.Stderr
	if file != "" {
		w = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    64, // MB
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		}
	}
	return NewWriter(w, lvl, format), nil
}

func NewWriter(w io.Writer, lvl slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
}
