package main

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"dbbench/internal/benchmark"
	"dbbench/internal/repository"
)

// suite describes one benchmark script: which backends it compares, how
// much work each operation does and how operations are ordered.
type suite struct {
	name     string
	backends []string
	amount   int
	pattern  repository.ReadPattern

	// aggregates adds count and average operations and the final
	// average price sanity check.
	aggregates bool
	// byOperation orders the report write/read/... across all backends
	// instead of backend by backend.
	byOperation bool
	// profiled limits which backends are profiled; empty means all.
	profiled []string
}

var suites = map[string]suite{
	"storage": {
		name:        "storage",
		backends:    []string{repository.BackendMemory, repository.BackendSQLite, repository.BackendPostgres},
		amount:      1_000_000,
		pattern:     repository.FixedWindow,
		aggregates:  true,
		byOperation: true,
		profiled:    []string{repository.BackendMemory, repository.BackendPostgres},
	},
	"mappers": {
		name:     "mappers",
		backends: []string{repository.BackendSqlx, repository.BackendGorm},
		amount:   1000,
		pattern:  repository.GrowingWindow,
	},
}

func suiteNames() []string {
	names := make([]string, 0, len(suites))
	for name := range suites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupSuite(name string) (suite, error) {
	s, ok := suites[strings.ToLower(name)]
	if !ok {
		return suite{}, fmt.Errorf("unknown suite %q (available: %s)", name, strings.Join(suiteNames(), ", "))
	}
	return s, nil
}

// displayName is the label prefix used in reports, e.g. "Sqlite mem".
func displayName(backend, dsn string) string {
	switch backend = repository.Canonical(backend); backend {
	case repository.BackendMemory:
		return "Mem"
	case repository.BackendSQLite:
		if dsn == "" || dsn == repository.DefaultSQLiteDSN {
			return "Sqlite mem"
		}
		return "Sqlite"
	case repository.BackendPostgres:
		return "Postgres"
	default:
		return "Postgres " + backend
	}
}

// target is an opened repository together with its report prefix.
type target struct {
	label string
	repo  repository.Repository
}

func writeOp(t target, n int) benchmark.Operation {
	return benchmark.Op(t.label+" write", func(ctx context.Context) error { return t.repo.Insert(ctx, n) })
}

func readOp(t target, n int) benchmark.Operation {
	return benchmark.Op(t.label+" read", func(ctx context.Context) error { return t.repo.Read(ctx, n) })
}

func countOp(t target) benchmark.Operation {
	return benchmark.Op(t.label+" count", func(ctx context.Context) error {
		_, err := t.repo.Count(ctx)
		return err
	})
}

func avgOp(t target) benchmark.Operation {
	return benchmark.Op(t.label+" avg", func(ctx context.Context) error {
		_, err := t.repo.Average(ctx, "price")
		return err
	})
}

// operations lists the timed operations of s over targets in report order.
func (s suite) operations(targets []target, amount int) []benchmark.Operation {
	builders := []func(target) benchmark.Operation{
		func(t target) benchmark.Operation { return writeOp(t, amount) },
		func(t target) benchmark.Operation { return readOp(t, amount) },
	}
	if s.aggregates {
		builders = append(builders, countOp, avgOp)
	}

	var ops []benchmark.Operation
	if s.byOperation {
		for _, build := range builders {
			for _, t := range targets {
				ops = append(ops, build(t))
			}
		}
		return ops
	}
	for _, t := range targets {
		for _, build := range builders {
			ops = append(ops, build(t))
		}
	}
	return ops
}

// profileTargets returns the targets s profiles, in their original order.
func (s suite) profileTargets(targets []target) []target {
	if len(s.profiled) == 0 {
		return targets
	}
	var out []target
	for _, t := range targets {
		if slices.Contains(s.profiled, t.repo.Name()) {
			out = append(out, t)
		}
	}
	return out
}

// profileOperations is the write and read work that profiling repeats.
func profileOperations(targets []target, amount int) []benchmark.Operation {
	var ops []benchmark.Operation
	for _, t := range targets {
		ops = append(ops, writeOp(t, amount), readOp(t, amount))
	}
	return ops
}
