package histogram

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"dbbench/internal/bucket"
)

// DefaultScale is the number of values represented by one bar marker.
const DefaultScale = 20

// ErrInvalidScale is returned for a scale factor below 1.
var ErrInvalidScale = errors.New("scale must be at least 1")

// Renderer turns a bucket table into text bar chart lines.
type Renderer struct {
	Scale  int
	Marker string
}

// NewRenderer returns a renderer using '#' markers and the given scale.
func NewRenderer(scale int) (*Renderer, error) {
	if scale < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidScale, scale)
	}
	return &Renderer{Scale: scale, Marker: "#"}, nil
}

// Lines returns one line per range in declaration order:
// "<range>: <bar> - <count>".
func (r *Renderer) Lines(table *bucket.Table) []string {
	ranges := table.Ranges()
	lines := make([]string, 0, len(ranges))
	for i, rg := range ranges {
		count := table.Count(i)
		bar := strings.Repeat(r.Marker, count/r.Scale)
		lines = append(lines, fmt.Sprintf("%s: %s - %d", rg, bar, count))
	}
	return lines
}

// Render writes Lines to w.
func (r *Renderer) Render(w io.Writer, table *bucket.Table) error {
	for _, line := range r.Lines(table) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
