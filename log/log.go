// Package log implements a minimal leveled logger tagged by subsystem,
// in the shape the rest of this module depends on.
package log

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level is a logging verbosity threshold.
type Level int32

// Supported levels, lowest (most verbose) to highest.
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Subsystem tags the origin of a log line for filtering/grepping.
type Subsystem string

// Subsystems used across the collector.
const (
	WebsocketMgr Subsystem = "websocket"
	OrderbookMgr Subsystem = "orderbook"
	Supervisor   Subsystem = "supervisor"
	PublisherSys Subsystem = "publisher"
	RateLimiter  Subsystem = "ratelimit"
	ExchangeSys  Subsystem = "exchange"
)

var level atomic.Int32

var std = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

// SetLevel adjusts the global minimum level emitted.
func SetLevel(l Level) { level.Store(int32(l)) }

// ParseLevel maps a config/env string to a Level, defaulting to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

func enabled(l Level) bool { return int32(l) >= level.Load() }

func write(l Level, tag, prefix string, sub Subsystem, format string, args ...any) {
	if !enabled(l) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	std.Printf("%s [%s] %s", prefix, sub, msg)
	_ = tag
}

// Debugf logs at debug level, tagged with the given subsystem.
func Debugf(sub Subsystem, format string, args ...any) { write(DebugLevel, "D", "DEBUG", sub, format, args...) }

// Infof logs at info level, tagged with the given subsystem.
func Infof(sub Subsystem, format string, args ...any) { write(InfoLevel, "I", "INFO", sub, format, args...) }

// Warnf logs at warn level, tagged with the given subsystem.
func Warnf(sub Subsystem, format string, args ...any) { write(WarnLevel, "W", "WARN", sub, format, args...) }

// Errorf logs at error level, tagged with the given subsystem.
func Errorf(sub Subsystem, format string, args ...any) { write(ErrorLevel, "E", "ERROR", sub, format, args...) }
