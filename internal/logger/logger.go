// Package logger provides verbose logging for the strata CLI.
// When verbose mode is enabled via the --verbose flag, the data layer
// narrates what it does (store calls, queue claims, pulse beats) on
// stderr without touching the command output on stdout.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects verbose logs. Defaults to os.Stderr; tests point
// it at a buffer.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debug prints fine-grained progress messages.
func Debug(format string, args ...any) {
	logf("[DEBUG]", format, args...)
}

// Info prints messages about notable state changes.
func Info(format string, args ...any) {
	logf("[INFO]", format, args...)
}

// Warn prints messages about degraded but non-fatal conditions, such
// as a best-effort write that failed.
func Warn(format string, args ...any) {
	logf("[WARN]", format, args...)
}

func logf(prefix, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose {
		return
	}
	fmt.Fprintf(output, prefix+" "+format+"\n", args...)
}
