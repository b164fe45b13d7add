package benchmark

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteChart renders real and CPU seconds per operation as an HTML bar chart.
func WriteChart(w io.Writer, title string, results []Result) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: title}))

	labels := make([]string, 0, len(results))
	realSecs := make([]opts.BarData, 0, len(results))
	total := make([]opts.BarData, 0, len(results))
	for _, r := range results {
		labels = append(labels, r.Name)
		realSecs = append(realSecs, opts.BarData{Value: r.Real.Seconds()})
		total = append(total, opts.BarData{Value: r.Total().Seconds()})
	}

	bar.SetXAxis(labels)
	bar.AddSeries("real (s)", realSecs)
	bar.AddSeries("cpu (s)", total)
	return bar.Render(w)
}
