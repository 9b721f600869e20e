// Package logging provides file-backed structured logging for tunectl.
// Unlike a process-wide logging singleton, a Logger is constructed once and
// injected into every component that needs it; subprocess output from
// mutator units is forwarded through the same instance so one run produces
// one coherent log file.
//
// Basic usage:
//
//	logger, err := logging.New(logging.Config{Level: "info", Path: path})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	log := logger.Named("phase")
//	log.Info("phase started", "unit", "network")
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) toCharmLevel() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures a Logger.
type Config struct {
	// Level is the minimum level written (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty disables the file sink.
	Path string

	// Rotation configures size-based log rotation for the file sink.
	Rotation RotationConfig

	// Console enables a second sink on stderr.
	Console bool
}

// Logger writes structured log lines to a file and optionally to stderr.
type Logger struct {
	file    *log.Logger
	console *log.Logger
	writer  *RotatingWriter
}

// New creates a Logger from the given configuration. The parent directory
// of cfg.Path is created if needed.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	l := &Logger{}

	fileSink := io.Writer(io.Discard)
	if cfg.Path != "" {
		w, err := NewRotatingWriter(cfg.Path, cfg.Rotation)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		l.writer = w
		fileSink = w
	}

	l.file = log.NewWithOptions(fileSink, log.Options{
		Level:           level.toCharmLevel(),
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05.000",
	})

	if cfg.Console {
		l.console = log.NewWithOptions(os.Stderr, log.Options{
			Level:           level.toCharmLevel(),
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
		})
	}

	return l, nil
}

// Discard returns a logger that drops everything. Useful in tests and for
// optional logger parameters.
func Discard() *Logger {
	return &Logger{
		file: log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel}),
	}
}

// Named returns a logger with a component prefix.
func (l *Logger) Named(component string) *Logger {
	out := &Logger{
		file:   l.file.WithPrefix(component),
		writer: l.writer,
	}
	if l.console != nil {
		out.console = l.console.WithPrefix(component)
	}
	return out
}

// With returns a logger with additional key-value context.
func (l *Logger) With(args ...interface{}) *Logger {
	out := &Logger{
		file:   l.file.With(args...),
		writer: l.writer,
	}
	if l.console != nil {
		out.console = l.console.With(args...)
	}
	return out
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args...) }

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) { l.log(LevelInfo, msg, args...) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) { l.log(LevelWarn, msg, args...) }

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args...) }

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	logTo(l.file, level, msg, args...)
	if l.console != nil {
		logTo(l.console, level, msg, args...)
	}
}

func logTo(logger *log.Logger, level Level, msg string, args ...interface{}) {
	switch level {
	case LevelDebug:
		logger.Debug(msg, args...)
	case LevelWarn:
		logger.Warn(msg, args...)
	case LevelError:
		logger.Error(msg, args...)
	default:
		logger.Info(msg, args...)
	}
}

// Close flushes and closes the file sink.
func (l *Logger) Close() error {
	if l.writer != nil {
		return l.writer.Close()
	}
	return nil
}
