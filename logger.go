// FILE: lixenwraith/linelog/logger.go
package linelog

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/lixenwraith/linelog/formatter"
	"github.com/lixenwraith/linelog/sanitizer"
)

// ConsoleLogger is the default diagnostics Logger. It formats entries with the
// formatter package and writes them to a console stream.
type ConsoleLogger struct {
	mu        sync.Mutex
	out       io.Writer
	level     int64
	formatter *formatter.Formatter
	clock     Clock
}

// NewConsoleLogger creates a logger from the diagnostic fields of cfg.
// A nil out selects the configured console target, or io.Discard when the console is disabled.
func NewConsoleLogger(cfg *Config, out io.Writer) *ConsoleLogger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if out == nil {
		out = consoleWriter(cfg)
	}

	san := sanitizer.New().Policy(diagnosticPolicy(cfg.Format))
	f := formatter.New(san).
		Type(cfg.Format).
		TimestampFormat(cfg.TimestampFormat).
		ShowTimestamp(cfg.ShowTimestamp).
		ShowLevel(cfg.ShowLevel)

	return &ConsoleLogger{
		out:       out,
		level:     cfg.Level,
		formatter: f,
		clock:     time.Now,
	}
}

// Debug logs a message at debug level
func (l *ConsoleLogger) Debug(args ...any) {
	l.log(LevelDebug, args...)
}

// Info logs a message at info level
func (l *ConsoleLogger) Info(args ...any) {
	l.log(LevelInfo, args...)
}

// Warn logs a message at warning level
func (l *ConsoleLogger) Warn(args ...any) {
	l.log(LevelWarn, args...)
}

// Error logs a message at error level
func (l *ConsoleLogger) Error(args ...any) {
	l.log(LevelError, args...)
}

func (l *ConsoleLogger) log(level int64, args ...any) {
	if level < l.level || l.out == io.Discard {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	data := l.formatter.Format(0, l.clock(), level, args)
	// Diagnostics must never break the caller
	_, _ = l.out.Write(data)
}

func consoleWriter(cfg *Config) io.Writer {
	if !cfg.EnableConsole {
		return io.Discard
	}
	if cfg.ConsoleTarget == "stdout" {
		return os.Stdout
	}
	return os.Stderr
}

func diagnosticPolicy(format string) sanitizer.PolicyPreset {
	switch format {
	case "json":
		return sanitizer.PolicyJSON
	case "raw":
		return sanitizer.PolicyRaw
	default:
		return sanitizer.PolicyTxt
	}
}
