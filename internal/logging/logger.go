// Package logging provides leveled logging with console, JSON and rolling
// file output, built on zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents log severity
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel converts a level name to a Level, defaulting to INFO
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error", "fatal":
		return ERROR
	default:
		return INFO
	}
}

// Config holds logger configuration
type Config struct {
	Level       Level
	LogDir      string // Directory for log files
	EnableFile  bool   // Write to rolling files
	EnableColor bool   // Color console output
	EnableJSON  bool   // JSON lines instead of console format
	Component   string
	Version     string
	Output      io.Writer // Console destination, stdout when nil
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Level:       INFO,
		LogDir:      "logs",
		EnableFile:  false,
		EnableColor: true,
		Component:   "fodder-analyzer",
	}
}

// Logger provides leveled, structured logging
type Logger struct {
	zl      zerolog.Logger
	level   *levelVar
	closers []io.Closer
}

type levelVar struct {
	mu    sync.RWMutex
	level Level
}

func (v *levelVar) get() Level {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.level
}

func (v *levelVar) set(l Level) {
	v.mu.Lock()
	v.level = l
	v.mu.Unlock()
}

var (
	defaultLogger *Logger
	defaultMu     sync.RWMutex
	once          sync.Once
)

// New creates a new logger with the given config
func New(cfg Config) (*Logger, error) {
	console := cfg.Output
	if console == nil {
		console = os.Stdout
	}

	var writers []io.Writer
	if cfg.EnableJSON || IsLambda() {
		writers = append(writers, console)
	} else {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        console,
			NoColor:    !cfg.EnableColor,
			TimeFormat: "2006-01-02 15:04:05.000",
		})
	}

	l := &Logger{level: &levelVar{level: cfg.Level}}

	if cfg.EnableFile && !IsLambda() {
		rcfg := DefaultRollingConfig()
		rcfg.LogDir = cfg.LogDir
		if cfg.Component != "" {
			rcfg.BaseName = cfg.Component
		}
		rw, err := NewRollingWriter(rcfg, true)
		if err != nil {
			return nil, fmt.Errorf("failed to set up file logging: %w", err)
		}
		writers = append(writers, rw)
		l.closers = append(l.closers, rw)
	}

	zctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp()
	if cfg.Component != "" {
		zctx = zctx.Str("component", cfg.Component)
	}
	if cfg.Version != "" {
		zctx = zctx.Str("version", cfg.Version)
	}
	l.zl = zctx.Logger()

	return l, nil
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), level: &levelVar{level: ERROR}}
}

// GetDefault returns the default logger, initializing it if needed
func GetDefault() *Logger {
	once.Do(func() {
		l, err := New(DefaultConfig())
		if err != nil {
			l = &Logger{
				zl:    zerolog.New(os.Stdout).With().Timestamp().Logger(),
				level: &levelVar{level: INFO},
			}
		}
		defaultMu.Lock()
		if defaultLogger == nil {
			defaultLogger = l
		}
		defaultMu.Unlock()
	})
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(l *Logger) {
	once.Do(func() {})
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Close closes any file outputs
func (l *Logger) Close() error {
	var firstErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SetLevel changes the log level
func (l *Logger) SetLevel(level Level) {
	l.level.set(level)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() Level {
	return l.level.get()
}

func (l *Logger) log(level Level, msg string, args ...interface{}) {
	if level < l.level.get() {
		return
	}
	evt := l.zl.WithLevel(level.zerolog())
	if len(args) > 0 {
		evt.Msgf(msg, args...)
		return
	}
	evt.Msg(msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(DEBUG, msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(INFO, msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(WARN, msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(ERROR, msg, args...)
}

// Fields are structured key/value pairs attached to every entry
type Fields map[string]interface{}

// WithFields returns a child logger that carries the given fields.
// The child shares the parent's level and outputs.
func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{
		zl:    l.zl.With().Fields(map[string]interface{}(fields)).Logger(),
		level: l.level,
	}
}

// With returns a child logger carrying a single field
func (l *Logger) With(key string, value interface{}) *Logger {
	return l.WithFields(Fields{key: value})
}

// Timed logs how long an operation took once the returned func is called
func (l *Logger) Timed(op string) func() {
	start := time.Now()
	return func() {
		l.Debug("%s completed in %s", op, time.Since(start).Round(time.Millisecond))
	}
}

// Package-level convenience functions using default logger

// Debug logs a debug message using the default logger
func Debug(msg string, args ...interface{}) {
	GetDefault().Debug(msg, args...)
}

// Info logs an info message using the default logger
func Info(msg string, args ...interface{}) {
	GetDefault().Info(msg, args...)
}

// Warn logs a warning message using the default logger
func Warn(msg string, args ...interface{}) {
	GetDefault().Warn(msg, args...)
}

// Error logs an error message using the default logger
func Error(msg string, args ...interface{}) {
	GetDefault().Error(msg, args...)
}
