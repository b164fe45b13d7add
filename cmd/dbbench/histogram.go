package main

import (
	"fmt"
	"os"

	"dbbench/internal/bucket"
	"dbbench/internal/histogram"
	"dbbench/internal/telemetry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newHistogramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "histogram [csv-file]",
		Short: "Print a bar chart of vote counts bucketed into ranges",
		Long: `Reads the whole CSV file, classifies the vote_count of every row into
the configured ranges and prints one line per range:

  [10, 100): ### - 75

Each '#' stands for --scale values (integer division).`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistogram,
	}

	flags := cmd.Flags()
	flags.String("file", "", "CSV file to read (default movie_dataset.csv)")
	flags.String("column", "", "CSV column holding the counts (default vote_count)")
	flags.Int("scale", 0, "Values per bar marker (default 20)")
	flags.String("bounds", "", "Comma separated range boundaries, e.g. 0,10,100,1000,10000")
	flags.String("chart", "", "Also render the histogram as an HTML chart to this file")

	bindFlags(flags, map[string]string{
		"histogram.file":   "file",
		"histogram.column": "column",
		"histogram.scale":  "scale",
		"histogram.bounds": "bounds",
	})
	return cmd
}

func runHistogram(cmd *cobra.Command, args []string) error {
	defer flushMetrics()

	path := viper.GetString("histogram.file")
	if len(args) == 1 {
		path = args[0]
	}
	column := viper.GetString("histogram.column")

	ranges := bucket.Default()
	if spec := viper.GetString("histogram.bounds"); spec != "" {
		parsed, err := bucket.Parse(spec)
		if err != nil {
			return err
		}
		ranges = parsed
	}
	if err := ranges.Validate(); err != nil {
		return err
	}

	renderer, err := histogram.NewRenderer(viper.GetInt("histogram.scale"))
	if err != nil {
		return err
	}

	ds, err := histogram.LoadFile(path, column)
	if err != nil {
		return err
	}
	if ds.Skipped > 0 {
		telemetry.LogInfo("skipped rows without a usable value", "file", path, "column", column, "skipped", ds.Skipped)
	}

	table := bucket.NewTable(ranges)
	if err := table.AddAll(ds.Values); err != nil {
		return fmt.Errorf("failed to classify %s: %w", path, err)
	}

	if err := renderer.Render(cmd.OutOrStdout(), table); err != nil {
		return err
	}

	for i, rg := range table.Ranges() {
		metrics.SetBucket(rg.String(), table.Count(i))
	}

	if chartPath, _ := cmd.Flags().GetString("chart"); chartPath != "" {
		if err := writeFile(chartPath, func(f *os.File) error {
			return histogram.WriteChart(f, table, "Vote count distribution")
		}); err != nil {
			return err
		}
		telemetry.LogInfo("histogram chart written", "path", chartPath)
	}
	return nil
}

// writeFile creates path and hands it to write, reporting the first error.
func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
