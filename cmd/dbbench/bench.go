package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"dbbench/internal/benchmark"
	"dbbench/internal/config"
	"dbbench/internal/profile"
	"dbbench/internal/repository"
	"dbbench/internal/telemetry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// benchExecCommand allows mocking in tests.
var benchExecCommand = exec.Command

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench [suite]",
		Short: "Time insert, read, count and average across storage backends",
		Long: `Runs one benchmark suite and prints a report of user, system, total and
real time per operation.

Suites:
  storage  memory, sqlite and postgres; fixed 10 row reads; count and avg
  mappers  sqlx and gorm against postgres; growing reads (i+1 rows)

Postgres backends read the connection string from POSTGRES_URL.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runBench,
	}

	flags := cmd.Flags()
	flags.StringSlice("backends", nil, "Backends to run instead of the suite's ("+strings.Join(repository.Backends(), ", ")+")")
	flags.Int("amount", 0, "Records written and reads performed per backend (default depends on suite)")
	flags.Int("width", 0, "Label column width of the report (default 20)")
	flags.Int("read-limit", 0, "Rows per read for the fixed read pattern (default 10)")
	flags.String("read-pattern", "", "Override the suite's read pattern: fixed or growing")
	flags.Bool("isolate", false, "Run each backend on its own so one failure does not stop the others")
	flags.Bool("save", false, "Save results to history")
	flags.Bool("compare", true, "Compare with the previous saved run of the same suite")
	flags.Float64("threshold", 0, "Percentage threshold for regression warning (default 10)")
	flags.String("file", "", "File to store benchmark history (default .dbbench/history.json)")
	flags.String("chart", "", "Also render the report as an HTML chart to this file")
	flags.String("profile", "", "Profile after the report: off, run or operation")
	flags.String("profile-dir", "", "Directory for flamegraph_* files")
	flags.String("profile-format", "", "Profile artifact format: folded or pprof")

	bindFlags(flags, map[string]string{
		"bench.amount":       "amount",
		"bench.width":        "width",
		"bench.read_limit":   "read-limit",
		"bench.threshold":    "threshold",
		"bench.history_file": "file",
		"profile.mode":       "profile",
		"profile.dir":        "profile-dir",
		"profile.format":     "profile-format",
	})
	return cmd
}

// benchOptions is the resolved configuration of one bench invocation.
type benchOptions struct {
	suite     suite
	backends  []string
	amount    int
	width     int
	readLimit int
	pattern   repository.ReadPattern
	isolate   bool
	save      bool
	compare   bool
	threshold float64
	history   string
	chart     string
	mode      profile.Mode
	format    profile.Format
	dir       string
}

func resolveBenchOptions(cmd *cobra.Command, args []string) (*benchOptions, error) {
	name := "storage"
	if len(args) == 1 {
		name = args[0]
	}
	s, err := lookupSuite(name)
	if err != nil {
		return nil, err
	}

	opts := &benchOptions{
		suite:     s,
		backends:  s.backends,
		amount:    viper.GetInt("bench.amount"),
		width:     viper.GetInt("bench.width"),
		readLimit: viper.GetInt("bench.read_limit"),
		pattern:   s.pattern,
		threshold: viper.GetFloat64("bench.threshold"),
		history:   viper.GetString("bench.history_file"),
		dir:       viper.GetString("profile.dir"),
	}
	if opts.amount == 0 {
		opts.amount = s.amount
	}

	flags := cmd.Flags()
	if backends, _ := flags.GetStringSlice("backends"); len(backends) > 0 {
		opts.backends = backends
	}
	if p, _ := flags.GetString("read-pattern"); p != "" {
		if opts.pattern, err = repository.ParseReadPattern(p); err != nil {
			return nil, err
		}
	}
	opts.isolate, _ = flags.GetBool("isolate")
	opts.save, _ = flags.GetBool("save")
	opts.compare, _ = flags.GetBool("compare")
	opts.chart, _ = flags.GetString("chart")

	if opts.mode, err = profile.ParseMode(viper.GetString("profile.mode")); err != nil {
		return nil, err
	}
	if opts.format, err = profile.ParseFormat(viper.GetString("profile.format")); err != nil {
		return nil, err
	}
	return opts, nil
}

func runBench(cmd *cobra.Command, args []string) error {
	defer flushMetrics()

	opts, err := resolveBenchOptions(cmd, args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	telemetry.LogInfo("starting benchmark",
		"suite", opts.suite.name,
		"backends", strings.Join(opts.backends, ","),
		"amount", opts.amount,
		"read_pattern", opts.pattern.String())

	targets, failed, err := openTargets(ctx, opts)
	defer closeTargets(targets)
	if err != nil {
		return err
	}

	runner := benchmark.NewRunner()
	runner.Observer = func(r benchmark.Result) {
		metrics.ObserveOperation(r.Name, r.Real.Seconds())
	}

	var results []benchmark.Result
	if opts.isolate {
		var ok []target
		for _, t := range targets {
			res, err := runner.Run(ctx, opts.suite.operations([]target{t}, opts.amount))
			if err != nil {
				recordFailure(err)
				failed++
				continue
			}
			ok = append(ok, t)
			results = append(results, res...)
		}
		targets = ok
		results = reportOrder(results, opts.suite.operations(targets, opts.amount))
	} else {
		results, err = runner.Run(ctx, opts.suite.operations(targets, opts.amount))
		if err != nil {
			recordFailure(err)
			return err
		}
	}

	if err := benchmark.WriteReport(out, opts.width, results); err != nil {
		return err
	}

	if opts.suite.aggregates {
		if err := printAverages(ctx, out, targets); err != nil {
			return err
		}
	}

	current := benchmark.Run{Timestamp: time.Now(), Suite: opts.suite.name, Results: results}
	if err := trackHistory(out, opts, current); err != nil {
		return err
	}

	if opts.chart != "" {
		title := fmt.Sprintf("dbbench %s (n=%d)", opts.suite.name, opts.amount)
		if err := writeFile(opts.chart, func(f *os.File) error {
			return benchmark.WriteChart(f, title, results)
		}); err != nil {
			return err
		}
		telemetry.LogInfo("benchmark chart written", "path", opts.chart)
	}

	if err := profileTargets(ctx, opts, targets); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d backends failed", failed, len(opts.backends))
	}
	return nil
}

// openTargets connects and prepares every backend. In isolated mode a
// backend that cannot be set up is logged and counted instead of aborting.
func openTargets(ctx context.Context, opts *benchOptions) ([]target, int, error) {
	var targets []target
	failed := 0
	for _, backend := range opts.backends {
		t, err := openTarget(ctx, opts, backend)
		if err != nil {
			if !opts.isolate {
				return targets, failed, err
			}
			telemetry.LogError("backend setup failed", err, "backend", backend)
			failed++
			continue
		}
		targets = append(targets, t)
	}
	return targets, failed, nil
}

func openTarget(ctx context.Context, opts *benchOptions, backend string) (target, error) {
	backend = repository.Canonical(backend)
	cfg := repository.Config{
		Backend:     backend,
		ReadPattern: opts.pattern,
		ReadLimit:   opts.readLimit,
	}
	switch {
	case repository.NeedsPostgres(backend):
		dsn, err := config.PostgresURL()
		if err != nil {
			return target{}, &repository.SetupError{Backend: backend, Err: err}
		}
		cfg.DSN = dsn
	case backend == repository.BackendSQLite:
		cfg.DSN = viper.GetString("sqlite_dsn")
	}

	repo, err := repository.New(ctx, cfg)
	if err != nil {
		return target{}, err
	}
	if err := repo.Prepare(ctx); err != nil {
		repo.Close()
		return target{}, err
	}
	return target{label: displayName(backend, cfg.DSN), repo: repo}, nil
}

func closeTargets(targets []target) {
	for _, t := range targets {
		if err := t.repo.Close(); err != nil {
			telemetry.LogError("failed to close backend", err, "backend", t.repo.Name())
		}
	}
}

func recordFailure(err error) {
	var opErr *benchmark.OperationError
	if errors.As(err, &opErr) {
		metrics.TrackFailure(opErr.Label)
	}
	telemetry.LogError("benchmark run failed", err)
}

// reportOrder sorts results into the order the operations were declared.
func reportOrder(results []benchmark.Result, ops []benchmark.Operation) []benchmark.Result {
	rank := make(map[string]int, len(ops))
	for i, op := range ops {
		rank[op.Label] = i
	}
	sort.SliceStable(results, func(i, j int) bool {
		return rank[results[i].Name] < rank[results[j].Name]
	})
	return results
}

func printAverages(ctx context.Context, w io.Writer, targets []target) error {
	for _, t := range targets {
		avg, err := t.repo.Average(ctx, "price")
		if err != nil {
			return fmt.Errorf("%s average: %w", t.label, err)
		}
		fmt.Fprintf(w, "The average price is: %s\n", strconv.FormatFloat(avg, 'f', -1, 64))
	}
	return nil
}

func trackHistory(w io.Writer, opts *benchOptions, current benchmark.Run) error {
	if !opts.compare && !opts.save {
		return nil
	}
	if _, err := os.Stat(opts.history); !opts.save && os.IsNotExist(err) {
		return nil
	}
	store, err := benchmark.NewFileStore(opts.history)
	if err != nil {
		return err
	}

	if opts.compare {
		if err := compareLatest(w, store, opts, current); err != nil {
			return err
		}
	}

	if opts.save {
		if commit, err := gitCommit(); err == nil {
			current.Commit = commit
		}
		if err := store.Save(current); err != nil {
			return fmt.Errorf("failed to save history: %w", err)
		}
		fmt.Fprintf(w, "\nResults saved to %s\n", store.Path())
	}
	return nil
}

// compareLatest prints current against the newest stored run of the same
// suite. An unreadable history is logged and skipped.
func compareLatest(w io.Writer, store benchmark.Store, opts *benchOptions, current benchmark.Run) error {
	prev, err := store.LoadLatest(opts.suite.name)
	if err != nil {
		telemetry.LogError("failed to load history", err, "path", opts.history)
		return nil
	}
	if prev == nil {
		return nil
	}

	fmt.Fprintln(w)
	regressions, err := benchmark.WriteComparison(w, *prev, current, opts.threshold)
	if err != nil {
		return err
	}
	if regressions > 0 {
		telemetry.LogInfo("performance regressions detected", "count", regressions, "threshold", opts.threshold)
	}
	return nil
}

func gitCommit() (string, error) {
	out, err := benchExecCommand("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// profileTargets repeats the write and read work on freshly prepared
// repositories with the CPU profiler attached. Only the backends the suite
// profiles are repeated.
func profileTargets(ctx context.Context, opts *benchOptions, targets []target) error {
	if opts.mode == profile.ModeOff {
		return nil
	}
	targets = opts.suite.profileTargets(targets)
	if len(targets) == 0 {
		return nil
	}

	runtime.GC()
	for _, t := range targets {
		if err := t.repo.Prepare(ctx); err != nil {
			return err
		}
	}

	prof := profile.New(opts.dir, opts.format)
	ops := profileOperations(targets, opts.amount)

	if opts.mode == profile.ModeRun {
		return prof.Profile("all", func() error {
			_, err := benchmark.NewRunner().Run(ctx, ops)
			return err
		})
	}

	runner := benchmark.NewRunner()
	runner.Wrap = prof.Profile
	_, err := runner.Run(ctx, ops)
	return err
}
