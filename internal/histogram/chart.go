package histogram

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"dbbench/internal/bucket"
)

// WriteChart renders the bucket counts as an HTML bar chart.
func WriteChart(w io.Writer, table *bucket.Table, title string) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: title}))

	ranges := table.Ranges()
	labels := make([]string, 0, len(ranges))
	counts := make([]opts.BarData, 0, len(ranges))
	for i, rg := range ranges {
		labels = append(labels, rg.String())
		counts = append(counts, opts.BarData{Value: table.Count(i)})
	}

	bar.SetXAxis(labels)
	bar.AddSeries("count", counts)
	return bar.Render(w)
}
