// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger. Durations are logged in milliseconds.
func Setup(cfg Config) zerolog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.DurationFieldUnit = time.Millisecond

	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05.000"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a zerolog.Level. The empty string means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss)
//   - Dispatch start (volume, parallelism)
//   - Stale responses discarded on a connection
//
// Info: Normal operation events
//   - Pool opened/closed (size, duration)
//   - Fetch complete (volume, duration)
//   - Progress every N results
//   - Snapshot saved
//
// Warn: Warning conditions that don't prevent operation
//   - Dial retry attempts
//   - Cache errors (fetch goes to the server)
//   - Dispatch aborted after the first worker error
//
// Error: Error conditions requiring attention
//   - Pool could not be opened
//   - Failed fetches (with error_class)
//   - Recovered worker panics
//
// Context Fields:
//   - component: mcpi-pool, mcpi-dispatch, mcpi-client, mcpi-snapshot, mcpi-conn
//   - addr: host:port of the Minecraft Pi API
//   - query: API method (world.getBlock, world.getBlockWithData)
//   - region: fetched region as (x1,y1,z1)..(x2,y2,z2)
//   - volume: number of coordinates in the region
//   - parallelism: number of workers
//   - worker_id: index of the worker and its connection
//   - items_processed: results collected so far
//   - duration: elapsed time in milliseconds
//   - error_class: establish, io, timeout, decode, region, cancelled, closed, internal
