// Package logger provides leveled logging for the CLI.
// Debug output is suppressed unless verbose mode is enabled.
package logger

import (
	"log"
	"os"
	"sync/atomic"
)

var verbose atomic.Bool

var std = log.New(os.Stderr, "", log.LstdFlags)

// SetVerbose enables or disables debug output.
func SetVerbose(v bool) {
	verbose.Store(v)
}

// Verbose reports whether debug output is enabled.
func Verbose() bool {
	return verbose.Load()
}

// Debug logs a message only when verbose mode is enabled.
func Debug(format string, args ...any) {
	if verbose.Load() {
		std.Printf("DEBUG "+format, args...)
	}
}

// Info logs a message unconditionally.
func Info(format string, args ...any) {
	std.Printf(format, args...)
}

// Warn logs a warning unconditionally.
func Warn(format string, args ...any) {
	std.Printf("WARN "+format, args...)
}
