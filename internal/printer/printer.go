// Package printer writes coloured CLI output.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dyluth/minsta/internal/engine"
	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects normal and error output. Passing nil restores the
// process streams.
func SetOutput(out, errOut io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	stdout, stderr = out, errOut
}

// Success prints a message in green with a checkmark prefix
func Success(format string, a ...any) {
	green.Fprintf(stdout, "✓ %s", strings.TrimPrefix(fmt.Sprintf(format, a...), "✓ "))
}

// Info prints a message in the default color
func Info(format string, a ...any) {
	fmt.Fprintf(stdout, format, a...)
}

// Warning prints a message in yellow with a warning prefix
func Warning(format string, a ...any) {
	yellow.Fprintf(stdout, "⚠️  %s", strings.TrimPrefix(fmt.Sprintf(format, a...), "⚠️  "))
}

// Step prints a step of a multi-step operation
func Step(format string, a ...any) {
	cyan.Fprintf(stdout, "→ %s", fmt.Sprintf(format, a...))
}

// Error prints a title, an explanation and suggestions to stderr and returns
// an error carrying only the title, for Cobra.
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with a block of key/value details, printed in
// key order.
func ErrorWithContext(title string, explanation string, details map[string]string, suggestions []string) error {
	red.Fprintf(stderr, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(stderr, "%s\n", explanation)
	}

	if len(details) > 0 {
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintf(stderr, "\n")
		for _, k := range keys {
			fmt.Fprintf(stderr, "  %s: %s\n", k, details[k])
		}
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(stderr, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(stderr, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(stderr, "  %d. %s\n", i+1, s)
		}
	}

	// Cobra does not print this (SilenceErrors)
	return fmt.Errorf("%s", title)
}

// Receipt prints the state of a mint.
func Receipt(st *engine.ReceiptStatus) {
	switch st.State {
	case engine.MintStateCommitted:
		Success("Mint committed: %s is now the latest minter of %s\n", st.Caller, st.Target)
	case engine.MintStateDropped:
		Warning("Mint dropped: %s\n", st.Reason)
	case engine.MintStateFailed:
		red.Fprintf(stdout, "✗ Mint failed: %s\n", st.Reason)
	default:
		Step("Mint issued to %s\n", st.Target)
	}

	faint.Fprintf(stdout, "  receipt: %s\n  owner:   %s\n", st.ID, st.Owner)
}
