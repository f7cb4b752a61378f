// Package logging builds the process logger and carries request scoped
// loggers through a context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/paulexconde/surveyrun/internal/config"
)

// Rotation limits for LOG_FILE.
const (
	maxSizeMB  = 50
	maxBackups = 5
	maxAgeDays = 28
)

// New builds a logger writing to out, and also to a rotated LOG_FILE when one
// is configured. The returned closer releases the file and is never nil.
func New(cfg config.Config, out io.Writer) (*slog.Logger, io.Closer) {
	var closer io.Closer = nopCloser{}
	w := out
	if cfg.LogFile != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(out, rotated)
		closer = rotated
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel), AddSource: cfg.LogSource}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler), closer
}

// ParseLevel maps debug, info, warn and error to their slog level. Anything
// else is info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Stderr is the minimal logger used until the configured one exists.
func Stderr() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

type key struct{}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, key{}, logger)
}

// FromContext returns the logger stored in ctx, or fallback.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(key{}).(*slog.Logger); ok {
		return logger
	}
	return fallback
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
