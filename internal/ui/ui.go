// Package ui provides terminal output helpers for keel commands: check
// and cross tags for verification lines, section headers for doctor
// output, and prefixed warnings/errors on stderr. Color honors NO_COLOR
// and is dropped when the stream is not a terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

var writer io.Writer = os.Stderr

// SetWriter overrides the stderr-side output writer (for testing).
// Passing nil restores os.Stderr.
func SetWriter(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	writer = w
}

var stdoutColor = detectColor(os.Stdout)
var stderrColor = detectColor(os.Stderr)

func detectColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetColorEnabled overrides color detection for both streams (for
// testing).
func SetColorEnabled(enabled bool) {
	stdoutColor = enabled
	stderrColor = enabled
}

// ColorEnabled reports whether stdout color is enabled.
func ColorEnabled() bool {
	return stdoutColor
}

// paint wraps s in an ANSI SGR code when enabled.
func paint(code, s string, enabled bool) string {
	if !enabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Bold returns s in bold for stdout.
func Bold(s string) string { return paint("1", s, stdoutColor) }

// Dim returns s dimmed for stdout.
func Dim(s string) string { return paint("2", s, stdoutColor) }

// Section prints a bold title with a thin underline to stdout.
func Section(title string) {
	fmt.Println(Bold(title))
	fmt.Println(Dim(strings.Repeat("─", len(title))))
}

// Status tags for per-check output lines.

// OKTag returns a green check mark.
func OKTag() string { return paint("32", "✓", stdoutColor) }

// FailTag returns a red cross.
func FailTag() string { return paint("31", "✗", stdoutColor) }

// WarnTag returns a yellow warning sign.
func WarnTag() string { return paint("33", "⚠", stdoutColor) }

// InfoTag returns a cyan info sign.
func InfoTag() string { return paint("36", "ℹ", stdoutColor) }

// Warn prints a user-facing warning to stderr.
func Warn(msg string) {
	fmt.Fprintf(writer, "%s %s\n", paint("33", "Warning:", stderrColor), msg)
}

// Warnf prints a formatted user-facing warning to stderr.
func Warnf(format string, args ...any) {
	Warn(fmt.Sprintf(format, args...))
}

// Error prints a user-facing error to stderr.
func Error(msg string) {
	fmt.Fprintf(writer, "%s %s\n", paint("31", "Error:", stderrColor), msg)
}

// Errorf prints a formatted user-facing error to stderr.
func Errorf(format string, args ...any) {
	Error(fmt.Sprintf(format, args...))
}

// Info prints a user-facing message to stderr with no prefix.
func Info(msg string) {
	fmt.Fprintln(writer, msg)
}

// Infof prints a formatted user-facing message to stderr with no prefix.
func Infof(format string, args ...any) {
	Info(fmt.Sprintf(format, args...))
}
