package logx

import (
	"fmt"
	"strings"
)

// Level represents logging level
type Level uint8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
	// LevelOff disables all logging
	LevelOff
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", "OFF"}

// String returns the string representation of the log level
func (l Level) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// ParseLevel parses a string into a Level, falling back to INFO.
func ParseLevel(level string) Level {
	l, err := lookupLevel(level)
	if err != nil {
		return LevelInfo
	}
	return l
}

func lookupLevel(level string) (Level, error) {
	name := strings.ToUpper(strings.TrimSpace(level))
	if name == "WARNING" {
		name = "WARN"
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("logx: unknown level %q", level)
}

// UnmarshalText lets envconfig decode LOG_LEVEL directly into a Level.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := lookupLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Enabled checks if target is at or above l
func (l Level) Enabled(target Level) bool {
	return l <= target && target != LevelOff
}
