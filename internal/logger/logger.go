// Package logger prints pipeline progress to stderr behind the
// --verbose flag. Commands print their own results; everything here is
// diagnostic output and stays silent by default.
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
	out     io.Writer = os.Stderr
)

// SetVerbose toggles diagnostic output for the whole process.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether diagnostic output is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput redirects diagnostic output, which tests use to capture it.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Debug logs fine-grained pipeline steps.
func Debug(format string, args ...any) {
	emit("DEBUG", format, args...)
}

// Info logs run-level progress.
func Info(format string, args ...any) {
	emit("INFO", format, args...)
}

// Warn logs recoverable problems, like a file that failed to ingest.
func Warn(format string, args ...any) {
	emit("WARN", format, args...)
}

// Section marks the start of a pipeline phase in the output.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(out, "\n=== %s ===\n", name)
	}
}

func emit(level, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !verbose {
		return
	}
	fmt.Fprintf(out, "["+level+"] "+format+"\n", args...)
}
