package benchmark

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// DefaultWidth is the label column width of the report.
const DefaultWidth = 20

const caption = "      user     system      total        real"

// WriteReport prints results as a fixed-width table: the label padded to
// width, then user, system, total and (real) time in seconds.
func WriteReport(w io.Writer, width int, results []Result) error {
	if width < 0 {
		width = 0
	}
	if _, err := fmt.Fprintln(w, strings.Repeat(" ", width)+caption); err != nil {
		return err
	}
	for _, r := range results {
		if _, err := fmt.Fprintln(w, FormatLine(width, r)); err != nil {
			return err
		}
	}
	return nil
}

// FormatLine renders one report line without the trailing newline.
func FormatLine(width int, r Result) string {
	return fmt.Sprintf("%-*s%10.6f %10.6f %10.6f (%10.6f)",
		width, r.Name,
		seconds(r.User), seconds(r.System), seconds(r.Total()), seconds(r.Real))
}

func seconds(d time.Duration) float64 {
	return d.Seconds()
}
