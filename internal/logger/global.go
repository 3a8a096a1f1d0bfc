package logger

import (
	"io"
	"strings"
	"sync/atomic"
	"time"
)

// Config selects the output of the process-wide logger.
type Config struct {
	Level    string // trace, debug, info, warn, error
	Format   string // json or text
	Path     string // empty writes to stdout
	Timezone string // "Local", "UTC" or an IANA name
}

var global atomic.Pointer[SlogLogger]

// Global returns the process-wide logger. Before Init is called it is a
// console logger at info level.
func Global() Logger {
	if l := global.Load(); l != nil {
		return l
	}
	fallback := NewConsoleLogger("", LogLevelInfo)
	if global.CompareAndSwap(nil, fallback) {
		return fallback
	}
	return global.Load()
}

// SetGlobal replaces the process-wide logger.
func SetGlobal(l *SlogLogger) {
	global.Store(l)
}

// Init builds the process-wide logger from cfg and installs it.
func Init(cfg Config) (*SlogLogger, error) {
	tz := time.UTC
	switch cfg.Timezone {
	case "", "UTC":
	case "Local":
		tz = time.Local
	default:
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, err
		}
		tz = loc
	}

	level := ParseLevel(strings.ToLower(cfg.Level))

	var l *SlogLogger
	switch {
	case cfg.Path != "":
		fileLogger, err := NewSlogLoggerWithFile(cfg.Path, level, tz)
		if err != nil {
			return nil, err
		}
		l = fileLogger
	case strings.EqualFold(cfg.Format, "text"):
		l = NewConsoleLogger("", level)
		l.timezone = tz
	default:
		l = NewSlogLogger(nil, level, tz)
	}

	SetGlobal(l)
	return l, nil
}

// NewDiscardLogger returns a logger that drops everything, for tests.
func NewDiscardLogger() *SlogLogger {
	return NewSlogLogger(io.Discard, LogLevelError, time.UTC)
}
