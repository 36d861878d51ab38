package logx

import (
	"fmt"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(NewLogger(DefaultConfig()))
}

// Configure replaces the process-wide logger.
func Configure(cfg *Config) *Logger {
	l := NewLogger(cfg)
	defaultLogger.Store(l)
	return l
}

// Default returns the process-wide logger
func Default() *Logger {
	return defaultLogger.Load()
}

// SetLevel sets the level of the process-wide logger
func SetLevel(level Level) {
	Default().SetLevel(level)
}

func Debug(msg string) { Default().log(LevelDebug, msg, nil, nil) }
func Info(msg string)  { Default().log(LevelInfo, msg, nil, nil) }
func Warn(msg string)  { Default().log(LevelWarn, msg, nil, nil) }
func Error(msg string) { Default().log(LevelError, msg, nil, nil) }

// Fatal logs a fatal level message and exits
func Fatal(msg string) {
	l := Default()
	l.log(LevelFatal, msg, nil, nil)
	l.exitFunc(1)
}

func Debugf(format string, args ...interface{}) {
	Default().log(LevelDebug, fmt.Sprintf(format, args...), nil, nil)
}

func Infof(format string, args ...interface{}) {
	Default().log(LevelInfo, fmt.Sprintf(format, args...), nil, nil)
}

func Warnf(format string, args ...interface{}) {
	Default().log(LevelWarn, fmt.Sprintf(format, args...), nil, nil)
}

func Errorf(format string, args ...interface{}) {
	Default().log(LevelError, fmt.Sprintf(format, args...), nil, nil)
}

// Fatalf logs a formatted fatal message and exits
func Fatalf(format string, args ...interface{}) {
	l := Default()
	l.log(LevelFatal, fmt.Sprintf(format, args...), nil, nil)
	l.exitFunc(1)
}

// WithFields creates a new entry on the process-wide logger
func WithFields(fields Fields) *Entry {
	return Default().WithFields(fields)
}

// WithField creates a new entry on the process-wide logger
func WithField(key string, value interface{}) *Entry {
	return Default().WithField(key, value)
}

// WithError creates a new entry on the process-wide logger
func WithError(err error) *Entry {
	return Default().WithError(err)
}

// Component creates a new entry tagged with a component name
func Component(name string) *Entry {
	return Default().Component(name)
}
