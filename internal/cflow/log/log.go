// Package log configures the process wide slog logger.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
)

// Setup installs the default slog logger writing to stderr. Only the first
// call has an effect.
func Setup(debug bool) {
	SetupWriter(os.Stderr, debug)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, debug bool) {
	initOnce.Do(func() {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		h := slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: debug,
		})
		slog.SetDefault(slog.New(h))
		initialized.Store(true)
	})
}

func Initialized() bool {
	return initialized.Load()
}

// RecoverPanic logs a panic in the named goroutine and runs cleanup. It
// must be deferred.
func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		if Initialized() {
			slog.Error(fmt.Sprintf("Panic in %s", name),
				"panic", r,
				"stack", string(debug.Stack()))
		}
		if cleanup != nil {
			cleanup()
		}
	}
}
