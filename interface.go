// FILE: interface.go
package linelog

import (
	"io"
	"time"
)

// Logger receives diagnostics about storage and write failures
type Logger interface {
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
}

// Notifier tells an operator where logs go, or that they go nowhere.
// NotifyLocation is called once per resolved destination.
type Notifier interface {
	NotifyLocation(buffer, path string)
	NotifyFailure(buffer string, err error)
}

// Gate decides whether a buffer may mutate right now
type Gate interface {
	LoggingEnabled(b Buffer) bool
}

// WriterWrapper wraps an opened log file with an encrypting writer.
// Closing the returned writer must close the wrapped one.
type WriterWrapper func(w io.WriteCloser) (io.WriteCloser, error)

// Clock returns the current time
type Clock func() time.Time
