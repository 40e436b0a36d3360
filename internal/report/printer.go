package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// PrintSummary writes a per-category overview of a finished run.
func PrintSummary(w io.Writer, propertyURI string, reports []CategoryReport) {
	cyan := color.New(color.FgCyan).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintln(w, cyan("Crawl errors for"), propertyURI)
	fmt.Fprintln(w, strings.Repeat("─", 48))

	total := 0
	for _, r := range reports {
		n := r.DataRows()
		total += n
		count := green(fmt.Sprintf("%6d", n))
		if n == 0 {
			count = yellow(fmt.Sprintf("%6d", n))
		}
		line := fmt.Sprintf("  %-20s %s rows", r.Category, count)
		if r.FailedFetches > 0 {
			line += " " + red(fmt.Sprintf("(%d failed fetches)", r.FailedFetches))
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, strings.Repeat("─", 48))
	fmt.Fprintf(w, "  %-20s %6d rows\n", "total", total)
}
