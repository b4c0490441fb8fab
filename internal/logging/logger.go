// Package logging provides the structured logger used by the analysis
// packages. Level, prefix and destination come from environment variables.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// LoggerCloser wraps a logger and provides a Close method for cleanup
type LoggerCloser struct {
	*log.Logger
	closer io.Closer
}

// Close closes the underlying writer if it's closeable and not a standard stream
func (lc *LoggerCloser) Close() error {
	if lc.closer != nil {
		return lc.closer.Close()
	}
	return nil
}

// ParseLevel maps a level name to a log level, defaulting to info.
func ParseLevel(name string) log.Level {
	switch name {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// NewLoggerWithWriter creates a new logger with the provided writer
func NewLoggerWithWriter(w io.Writer) *LoggerCloser {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	lg.SetLevel(ParseLevel(os.Getenv("CFLOW_LOG_LEVEL")))

	prefix := os.Getenv("CFLOW_LOG_PREFIX")
	if prefix == "" {
		prefix = "cflow "
	}

	var closer io.Closer
	if c, ok := w.(io.Closer); ok && w != os.Stderr && w != os.Stdout {
		closer = c
	}

	return &LoggerCloser{
		Logger: lg.WithPrefix(prefix),
		closer: closer,
	}
}

// NewLogger creates a new logger based on environment variables
// CFLOW_LOG_LEVEL: debug, info, warn, error (default: info)
// CFLOW_LOG_PREFIX: prefix for log messages (default: "cflow ")
// CFLOW_LOG_TO_FILE: when set to "1", logs to a timestamped file instead of stderr
func NewLogger() *LoggerCloser {
	output := io.Writer(os.Stderr)

	if os.Getenv("CFLOW_LOG_TO_FILE") == "1" {
		timestamp := time.Now().Format("20060102-150405")
		logFile := fmt.Sprintf("cflow-%s-debug.log", timestamp)

		f, err := os.OpenFile(logFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err == nil {
			output = f
		}
		// If file creation fails, fall back to stderr
	}

	return NewLoggerWithWriter(output)
}

// IsDebug returns true if debug logging is enabled
func IsDebug() bool {
	return os.Getenv("CFLOW_LOG_LEVEL") == "debug"
}
