package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"dbbench/internal/config"
	"dbbench/internal/telemetry"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var exit = os.Exit

// metrics collects the observations of the current command. It is replaced
// on every invocation by the root pre-run hook.
var metrics = telemetry.NewMetrics()

// newRootCmd builds the command tree. Flags are bound to viper keys so
// flag, environment, config file and default all resolve through viper.
func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "dbbench",
		Short: "Histogram and storage benchmarks for relational backends",
		Long: `dbbench prints a bucketed histogram of movie vote counts and times
insert, read, count and average operations against an in-memory list,
an embedded SQLite database and a networked PostgreSQL database.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd, cfgFile)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultConfigFile+")")
	flags.BoolP("verbose", "v", false, "Enable verbose/debug logging")
	flags.String("log-file", "", "Also write JSON logs to this file")
	flags.String("postgres-url", "", "PostgreSQL connection string (overrides POSTGRES_URL)")
	flags.String("sqlite-dsn", "", "SQLite data source (default :memory:)")
	flags.String("metrics-file", "", "Write Prometheus metrics to this textfile when done")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")

	bindFlags(flags, map[string]string{
		"verbose":      "verbose",
		"log_file":     "log-file",
		"postgres_url": "postgres-url",
		"sqlite_dsn":   "sqlite-dsn",
		"metrics_file": "metrics-file",
		"metrics_addr": "metrics-addr",
	})

	root.AddCommand(newHistogramCmd(), newBenchCmd())
	return root
}

func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}
}

// initConfig reads .env, config file and environment, validates the
// result and sets up logging and metrics for the command.
func initConfig(cmd *cobra.Command, cfgFile string) error {
	if err := config.Load(cfgFile); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	telemetry.InitLogger(viper.GetBool("verbose"), viper.GetString("log_file"))
	metrics = telemetry.NewMetrics()

	if addr := viper.GetString("metrics_addr"); addr != "" {
		m := metrics
		go func() {
			if err := m.StartMetricsServer(addr); err != nil {
				telemetry.LogError("metrics server stopped", err, "addr", addr)
			}
		}()
	}
	telemetry.LogDebug("configuration loaded", "command", cmd.Name())
	return nil
}

// flushMetrics writes the metrics textfile when one is configured.
func flushMetrics() {
	path := viper.GetString("metrics_file")
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path); err != nil {
		telemetry.LogError("failed to write metrics", err, "path", path)
		return
	}
	telemetry.LogDebug("metrics written", "path", path)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n=== CRITICAL ERROR: Command Execution Panic ===\n")
			fmt.Fprintf(os.Stderr, "Error: %v\n", r)
			exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'dbbench --help' for usage.")
		exit(1)
	}
}
