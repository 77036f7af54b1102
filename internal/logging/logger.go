// Package logging provides colored, leveled log output for the ce-dps CLI.
//
// All output functions write a prefixed, color-coded line to the log writer
// (stderr by default) so that stdout stays free for command results such as
// `status -o json`. Debug output is suppressed unless verbose mode is enabled
// via SetVerbose(true).
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	mu      sync.Mutex
	out     io.Writer = os.Stderr
	verbose bool
)

// Color printers for each log level.
var (
	infoPrefix    = color.New(color.FgBlue).SprintFunc()
	successPrefix = color.New(color.FgGreen).SprintFunc()
	warnPrefix    = color.New(color.FgYellow).SprintFunc()
	errorPrefix   = color.New(color.FgRed).SprintFunc()
	phasePrefix   = color.New(color.FgCyan).SprintFunc()
	debugPrefix   = color.New(color.FgBlue).SprintFunc()
)

// SetVerbose enables or disables Debug output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// SetOutput redirects log output and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

func writeLine(line string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(out, line)
}

// Info prints an informational message in blue.
func Info(msg string) {
	writeLine(infoPrefix("[INFO]") + " " + msg)
}

// Infof formats and prints an informational message.
func Infof(format string, args ...any) {
	Info(fmt.Sprintf(format, args...))
}

// Success prints a success message in green.
func Success(msg string) {
	writeLine(successPrefix("[SUCCESS]") + " " + msg)
}

// Warn prints a warning message in yellow.
func Warn(msg string) {
	writeLine(warnPrefix("[WARN]") + " " + msg)
}

// Warnf formats and prints a warning message.
func Warnf(format string, args ...any) {
	Warn(fmt.Sprintf(format, args...))
}

// Error prints an error message in red.
func Error(msg string) {
	writeLine(errorPrefix("[ERROR]") + " " + msg)
}

// Phase prints a phase header in cyan, surrounded by separator lines.
func Phase(msg string) {
	sep := phasePrefix("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	writeLine(sep)
	writeLine(phasePrefix("[PHASE]") + " " + msg)
	writeLine(sep)
}

// Debug prints a debug message in blue, only when verbose mode is enabled.
func Debug(msg string) {
	mu.Lock()
	v := verbose
	mu.Unlock()
	if !v {
		return
	}
	writeLine(debugPrefix("[DEBUG]") + " " + msg)
}

// Debugf formats and prints a debug message.
func Debugf(format string, args ...any) {
	Debug(fmt.Sprintf(format, args...))
}

// FormatDuration converts a duration in seconds to a human-readable string.
//
// Examples:
//
//	FormatDuration(0)    => "0s"
//	FormatDuration(45)   => "45s"
//	FormatDuration(90)   => "1m 30s"
//	FormatDuration(3661) => "1h 1m 1s"
//	FormatDuration(7200) => "2h 0m 0s"
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		m := seconds / 60
		s := seconds % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
