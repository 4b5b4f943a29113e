package main

import (
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

// LogLevel defines severity for logger output.
type LogLevel int

const (
	LogLevelCrit LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// Logger provides leveled logging over a logrus backend.
type Logger struct {
	level  LogLevel
	prefix string
	logger *logrus.Logger
}

// NewLogger creates a logger with desired level and prefix.
func NewLogger(level LogLevel, prefix string) *Logger {
	backend := logrus.New()
	backend.SetOutput(colorable.NewColorableStdout())
	backend.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
	})
	backend.SetLevel(logrus.DebugLevel)
	return &Logger{level: level, prefix: prefix, logger: backend}
}

// SetLevel adjusts current logging level.
func (l *Logger) SetLevel(level LogLevel) {
	if l == nil {
		return
	}
	l.level = level
}

func (l *Logger) logf(target LogLevel, format string, args ...any) {
	if l == nil || target > l.level {
		return
	}
	format = l.prefix + format
	switch target {
	case LogLevelCrit:
		l.logger.Errorf("CRIT "+format, args...)
	case LogLevelError:
		l.logger.Errorf(format, args...)
	case LogLevelWarn:
		l.logger.Warnf(format, args...)
	case LogLevelInfo:
		l.logger.Infof(format, args...)
	default:
		l.logger.Debugf(format, args...)
	}
}

// Debugf prints debug messages.
func (l *Logger) Debugf(format string, args ...any) {
	l.logf(LogLevelDebug, format, args...)
}

// Infof prints info messages.
func (l *Logger) Infof(format string, args ...any) {
	l.logf(LogLevelInfo, format, args...)
}

// Warnf prints warning messages.
func (l *Logger) Warnf(format string, args ...any) {
	l.logf(LogLevelWarn, format, args...)
}

// Errorf prints error messages.
func (l *Logger) Errorf(format string, args ...any) {
	l.logf(LogLevelError, format, args...)
}

// Critf prints highest-severity messages. These are never filtered out.
func (l *Logger) Critf(format string, args ...any) {
	l.logf(LogLevelCrit, format, args...)
}

var defaultLogger = NewLogger(LogLevelInfo, "[SMP] ")

// GetLogger returns the global logger.
func GetLogger() *Logger {
	return defaultLogger
}

// SetLogger replaces the global logger (primarily for tests).
func SetLogger(l *Logger) {
	if l == nil {
		return
	}
	defaultLogger = l
}
