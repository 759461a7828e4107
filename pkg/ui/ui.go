// Package ui prints command line summaries for the ingestion tools.
//
// Colors are disabled by --no-color, NO_COLOR or a non-TTY stdout.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// Output is where the helpers write; tests swap it for a buffer
var Output io.Writer = os.Stdout

// InitColors forces colors off when noColor is set
func InitColors(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

// Successf prints a green line with a check mark
func Successf(format string, args ...any) {
	_, _ = Green.Fprintf(Output, "✓ "+format+"\n", args...)
}

// Warningf prints a yellow line with a warning sign
func Warningf(format string, args ...any) {
	_, _ = Yellow.Fprintf(Output, "⚠ "+format+"\n", args...)
}

// Errorf prints a red line with a cross
func Errorf(format string, args ...any) {
	_, _ = Red.Fprintf(Output, "✗ "+format+"\n", args...)
}

// Infof prints a cyan line
func Infof(format string, args ...any) {
	_, _ = Cyan.Fprintf(Output, "ℹ "+format+"\n", args...)
}

// Header prints a bold title over a rule of the same width
func Header(text string) {
	_, _ = Bold.Fprintln(Output, text)
	fmt.Fprintln(Output, strings.Repeat("=", len([]rune(text))))
}

// Field prints an aligned label and value
func Field(label string, value any) {
	fmt.Fprintf(Output, "  %-18s %v\n", label+":", value)
}

// List prints at most limit items and a trailer counting the rest
func List(items []string, limit int) {
	for i, item := range items {
		if i == limit {
			_, _ = Dim.Fprintf(Output, "  ... and %d more\n", len(items)-limit)
			return
		}
		fmt.Fprintf(Output, "  - %s\n", item)
	}
}
