package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// Colors for consistent UI
const (
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorReset  = "\033[0m"
)

// Out receives everything the helpers print.
var Out io.Writer = os.Stdout

// PrintBanner prints the application name in large letters
func PrintBanner(words ...string) {
	for _, w := range words {
		bannercolor.New(bannercolor.FgCyan).Fprintln(Out, figure.NewFigure(w, "isometric1", true).String())
	}
	fmt.Fprintln(Out)
}

// PrintWarning displays a warning message with consistent formatting
func PrintWarning(message string) {
	fmt.Fprintf(Out, "%s\nWarning:%s\n", ColorYellow, ColorReset)
	fmt.Fprintf(Out, "%s%s%s\n", ColorYellow, message, ColorReset)
}

// PrintError displays an error message with consistent formatting
func PrintError(message string) {
	fmt.Fprintf(Out, "\n%sError: %s%s\n", ColorRed, message, ColorReset)
}

// PrintSuccess displays a success message with consistent formatting
func PrintSuccess(message string) {
	fmt.Fprintf(Out, "\n%s%s%s\n", ColorGreen, message, ColorReset)
}

// PrintInfo displays an info message with consistent formatting
func PrintInfo(message string) {
	fmt.Fprintf(Out, "%s%s%s\n", ColorBlue, message, ColorReset)
}

// NewProgressBar returns a bar whose total is set once the scene count is
// known.
func NewProgressBar(description string) *progressbar.ProgressBar {
	return progressbar.Default(-1, description)
}
