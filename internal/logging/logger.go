// Package logging owns the daemon's slog setup. Every subsystem gets its
// logger through ForComponent so records are filterable by the part of the
// runtime that produced them (container_backend, process_backend, scheduler).
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger    *slog.Logger
	initOnce  sync.Once
	logCloser io.Closer
)

// Options configures the daemon logger.
type Options struct {
	// Level is one of debug, info, warn, error. Debug additionally
	// annotates records with their source location.
	Level  string
	Format string

	// File enables rotated file output alongside stdout. Rotation sizes
	// are megabytes, ages are days.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init configures the process-wide logger once. The stdlib log package is
// redirected too, so engine client libraries logging through it end up in
// the same stream.
func Init(opts Options) (*slog.Logger, error) {
	initOnce.Do(func() {
		level := parseLevel(opts.Level)
		output, closer := buildOutput(opts)
		logCloser = closer

		handlerOpts := &slog.HandlerOptions{
			Level: level,
			// Source locations only matter when someone is debugging
			// the daemon itself.
			AddSource: level == slog.LevelDebug,
		}
		var handler slog.Handler
		if strings.EqualFold(opts.Format, "text") {
			handler = slog.NewTextHandler(output, handlerOpts)
		} else {
			handler = slog.NewJSONHandler(output, handlerOpts)
		}

		logger = slog.New(handler)
		slog.SetDefault(logger)
		log.SetFlags(0)
		log.SetOutput(stdLogBridge{logger: logger})
	})

	return L(), nil
}

// L returns the configured logger, falling back to the process default
// before Init has run.
func L() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// ForComponent returns a logger scoped to one subsystem of the daemon.
func ForComponent(name string) *slog.Logger {
	return L().With("component", name)
}

// Close flushes and closes the rotated log file, when one is configured.
func Close() error {
	if logCloser != nil {
		return logCloser.Close()
	}
	return nil
}

// stdLogBridge feeds stdlib log output into slog at info level.
type stdLogBridge struct {
	logger *slog.Logger
}

func (w stdLogBridge) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}
	w.logger.Info(msg)
	return len(p), nil
}

func buildOutput(opts Options) (io.Writer, io.Closer) {
	if strings.TrimSpace(opts.File) == "" {
		return os.Stdout, nil
	}

	fileLogger := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}

	return io.MultiWriter(os.Stdout, fileLogger), fileLogger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
