package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type LogLevel uint8

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
)

func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "critical":
		return LevelCritical
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerologLevel() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError, LevelCritical:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type Logger struct {
	level LogLevel
	zl    zerolog.Logger
	sink  *AsyncWriter
}

// NewLogger writes to the console and, when path is set, to an async file sink.
func NewLogger(level LogLevel, path string) (*Logger, error) {
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05.000"}
	if path == "" {
		return NewLoggerWithWriter(level, console), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if _, err := DefaultRotation().RotateIfNeeded(path); err != nil {
		return nil, fmt.Errorf("failed to rotate log file: %w", err)
	}

	sink, err := NewAsyncWriter(path, 10000)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := NewLoggerWithWriter(level, zerolog.MultiLevelWriter(console, sink))
	l.sink = sink
	return l, nil
}

func NewLoggerWithWriter(level LogLevel, w io.Writer) *Logger {
	zl := zerolog.New(w).
		Level(level.zerologLevel()).
		With().
		Timestamp().
		Logger()
	return &Logger{level: level, zl: zl}
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	ev := l.zl.WithLevel(level.zerologLevel())
	if level == LevelCritical {
		ev = ev.Bool("critical", true)
	}
	ev.Msgf(format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

func (l *Logger) Critical(format string, args ...interface{}) {
	l.log(LevelCritical, format, args...)
}

// Component returns a structured child logger tagged with a component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zl.With().Str("component", name).Logger()
}

func (l *Logger) Close() error {
	if l.sink == nil {
		return nil
	}
	return l.sink.Close()
}

var (
	globalMu     sync.RWMutex
	GlobalLogger *Logger
)

func InitGlobalLogger(level LogLevel, path string) error {
	logger, err := NewLogger(level, path)
	if err != nil {
		return err
	}
	SetGlobalLogger(logger)
	return nil
}

func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	GlobalLogger = l
	globalMu.Unlock()
}

func current() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return GlobalLogger
}

func Debug(format string, args ...interface{}) {
	if l := current(); l != nil {
		l.Debug(format, args...)
	}
}

func Info(format string, args ...interface{}) {
	if l := current(); l != nil {
		l.Info(format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	if l := current(); l != nil {
		l.Warn(format, args...)
	}
}

func Error(format string, args ...interface{}) {
	if l := current(); l != nil {
		l.Error(format, args...)
	}
}

func Critical(format string, args ...interface{}) {
	if l := current(); l != nil {
		l.Critical(format, args...)
	}
}

// Component returns a child of the global logger, or a no-op logger before init.
func Component(name string) zerolog.Logger {
	if l := current(); l != nil {
		return l.Component(name)
	}
	return zerolog.Nop()
}

func Shutdown() {
	if l := current(); l != nil {
		_ = l.Close()
	}
}
