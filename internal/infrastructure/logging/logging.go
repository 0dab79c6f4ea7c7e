// Package logging installs the process-wide slog logger.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Console defaults to stderr when nil.
	Console io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init builds a text logger writing to the console and, when File is set, to a
// size-rotated file. The returned closer releases the file.
func Init(cfg Config, attrs ...any) (*slog.Logger, io.Closer, error) {
	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}
	level := ParseLevel(cfg.Level)

	var (
		out    io.Writer = console
		closer io.Closer = nopCloser{}
	)
	if strings.TrimSpace(cfg.File) != "" {
		rotating, err := NewRotatingWriter(cfg.File, cfg.MaxSizeMB, cfg.MaxBackups)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(console, rotating)
		closer = rotating
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler).With(attrs...)
	slog.SetDefault(logger)

	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(logger.Handler(), slog.LevelInfo).Writer())
	return logger, closer, nil
}

func ParseLevel(raw string) slog.Level {
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
