// Package logging provides the pluggable structured logger used
// throughout the ARO runtime and its plugins.
package logging

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level is a logging verbosity level.
type Level int

const (
	Error Level = iota
	Warn
	Info
	Debug
)

func (l Level) String() string {
	switch l {
	case Error:
		return "error"
	case Warn:
		return "warn"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		return "unknown"
	}
}

// Logger is the interface every component in the ARO runtime logs
// through: the driver, the Feature-Set Runner, the Event Bus, and
// every plugin host. Components never log through logrus directly so
// that a plugin can be handed a scoped, field-tagged Logger without
// depending on the concrete implementation.
type Logger interface {
	Debug(fmt string, a ...interface{})
	Info(fmt string, a ...interface{})
	Error(fmt string, a ...interface{})
	Warn(fmt string, a ...interface{})
	WithFields(fields map[string]interface{}) Logger
	GetFields() map[string]interface{}
	SetLevel(level Level)
	GetLevel() Level
}

// StandardLogger is the default Logger, backed by logrus.
type StandardLogger struct {
	entry *logrus.Entry
	level Level
}

// New returns a new StandardLogger backed by a fresh logrus logger
// (not logrus's package-level standard logger) at Info level.
func New() *StandardLogger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return &StandardLogger{entry: logrus.NewEntry(l), level: Info}
}

var (
	defaultLoggerOnce sync.Once
	defaultLogger     *StandardLogger
)

// Get returns a process-wide default logger, initialized on first use.
func Get() *StandardLogger {
	defaultLoggerOnce.Do(func() { defaultLogger = New() })
	return defaultLogger
}

func (l *StandardLogger) Debug(f string, a ...interface{}) { l.entry.Debugf(f, a...) }
func (l *StandardLogger) Info(f string, a ...interface{})  { l.entry.Infof(f, a...) }
func (l *StandardLogger) Error(f string, a ...interface{}) { l.entry.Errorf(f, a...) }
func (l *StandardLogger) Warn(f string, a ...interface{})  { l.entry.Warnf(f, a...) }

func (l *StandardLogger) WithFields(fields map[string]interface{}) Logger {
	return &StandardLogger{entry: l.entry.WithFields(fields), level: l.level}
}

func (l *StandardLogger) GetFields() map[string]interface{} {
	return l.entry.Data
}

func (l *StandardLogger) SetLevel(level Level) {
	l.level = level
	switch level {
	case Debug:
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	case Warn:
		l.entry.Logger.SetLevel(logrus.WarnLevel)
	case Error:
		l.entry.Logger.SetLevel(logrus.ErrorLevel)
	default:
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
}

func (l *StandardLogger) GetLevel() Level { return l.level }

// SetFormatter installs f as the underlying logrus formatter.
func (l *StandardLogger) SetFormatter(f logrus.Formatter) {
	l.entry.Logger.SetFormatter(f)
}

// SetOutput redirects the underlying logrus output.
func (l *StandardLogger) SetOutput(w io.Writer) {
	l.entry.Logger.SetOutput(w)
}

// NoOpLogger discards everything logged through it. Useful for
// components under test that don't want log noise.
type NoOpLogger struct {
	fields map[string]interface{}
	level  Level
}

// NewNoOpLogger instantiates a NoOpLogger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(string, ...interface{}) {}
func (l *NoOpLogger) Info(string, ...interface{})  {}
func (l *NoOpLogger) Error(string, ...interface{}) {}
func (l *NoOpLogger) Warn(string, ...interface{})  {}

func (l *NoOpLogger) WithFields(fields map[string]interface{}) Logger {
	return &NoOpLogger{fields: fields, level: l.level}
}

func (l *NoOpLogger) GetFields() map[string]interface{} { return l.fields }
func (l *NoOpLogger) SetLevel(level Level)               { l.level = level }
func (l *NoOpLogger) GetLevel() Level                    { return l.level }
