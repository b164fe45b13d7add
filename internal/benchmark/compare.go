package benchmark

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
)

type Comparison struct {
	Name       string
	RealDiff   float64 // Percentage change
	TotalDiff  float64 // Percentage change
	AllocsDiff float64 // Percentage change
	Prev       Result
	Curr       Result
}

// Compare runs comparison between two runs.
// It returns a list of comparisons for operations present in both, in the
// order of the current run.
func Compare(prev, curr Run) []Comparison {
	prevMap := make(map[string]Result)
	for _, r := range prev.Results {
		prevMap[r.Name] = r
	}

	var comparisons []Comparison
	for _, c := range curr.Results {
		p, ok := prevMap[c.Name]
		if !ok {
			continue
		}
		comp := Comparison{Name: c.Name, Prev: p, Curr: c}
		if p.Real > 0 {
			comp.RealDiff = float64(c.Real-p.Real) / float64(p.Real) * 100
		}
		if p.Total() > 0 {
			comp.TotalDiff = float64(c.Total()-p.Total()) / float64(p.Total()) * 100
		}
		if p.AllocsCount > 0 {
			comp.AllocsDiff = (float64(c.AllocsCount) - float64(p.AllocsCount)) / float64(p.AllocsCount) * 100
		}
		comparisons = append(comparisons, comp)
	}
	return comparisons
}

func (c Comparison) String() string {
	return fmt.Sprintf("%s: %+.2f%% real", c.Name, c.RealDiff)
}

// Status classifies the change against a percentage threshold.
func (c Comparison) Status(threshold float64) string {
	switch {
	case c.RealDiff > threshold:
		return "FAIL"
	case c.RealDiff < -threshold:
		return "IMPR"
	default:
		return "PASS"
	}
}

var (
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	imprStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	newStyle  = lipgloss.NewStyle().Faint(true)
)

func styleStatus(status string) string {
	switch status {
	case "FAIL":
		return failStyle.Render(status)
	case "IMPR":
		return imprStyle.Render(status)
	case "NEW":
		return newStyle.Render(status)
	}
	return status
}

// WriteComparison prints current results against a previous run and
// returns the number of regressions above threshold.
func WriteComparison(w io.Writer, prev, curr Run, threshold float64) (int, error) {
	byName := make(map[string]Comparison)
	for _, c := range Compare(prev, curr) {
		byName[c.Name] = c
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tREAL (s)\tDIFF %\tCPU %\tALLOCS %\tSTATUS")

	regressions := 0
	for _, r := range curr.Results {
		c, ok := byName[r.Name]
		if !ok {
			fmt.Fprintf(tw, "%s\t%.6f\t-\t-\t-\t%s\n", r.Name, r.Real.Seconds(), styleStatus("NEW"))
			continue
		}
		status := c.Status(threshold)
		if status == "FAIL" {
			regressions++
		}
		fmt.Fprintf(tw, "%s\t%.6f\t%+.2f%%\t%+.2f%%\t%+.2f%%\t%s\n",
			r.Name, r.Real.Seconds(), c.RealDiff, c.TotalDiff, c.AllocsDiff, styleStatus(status))
	}
	return regressions, tw.Flush()
}
