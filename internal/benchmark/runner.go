package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// Runner executes operations one after another and times each of them.
type Runner struct {
	// Observer, when set, receives every result as soon as it is measured.
	Observer func(Result)
	// Wrap, when set, decorates each operation (the profiler hooks in here).
	Wrap func(label string, fn func() error) error

	now func() time.Time
	cpu func() (user, system time.Duration)
}

func NewRunner() *Runner {
	return &Runner{now: time.Now, cpu: cpuTimes}
}

// Run executes ops strictly in order. The first failure aborts the run:
// the error is returned with the operation label and no results are.
func (r *Runner) Run(ctx context.Context, ops []Operation) ([]Result, error) {
	results := make([]Result, 0, len(ops))
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := r.measure(ctx, op)
		if err != nil {
			return nil, &OperationError{Label: op.Label, Err: err}
		}
		slog.Debug("operation finished", "label", op.Label, "real", res.Real, "user", res.User, "system", res.System)
		if r.Observer != nil {
			r.Observer(res)
		}
		results = append(results, res)
	}
	return results, nil
}

// OperationError reports which operation aborted a run.
type OperationError struct {
	Label string
	Err   error
}

func (e *OperationError) Error() string { return fmt.Sprintf("%s: %v", e.Label, e.Err) }

func (e *OperationError) Unwrap() error { return e.Err }

func (r *Runner) measure(ctx context.Context, op Operation) (Result, error) {
	now, cpu := r.now, r.cpu
	if now == nil {
		now = time.Now
	}
	if cpu == nil {
		cpu = cpuTimes
	}

	call := func() error { return op.Fn(ctx) }
	if r.Wrap != nil {
		inner := call
		call = func() error { return r.Wrap(op.Label, inner) }
	}

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	user0, sys0 := cpu()
	start := now()

	err := call()

	elapsed := now().Sub(start)
	user1, sys1 := cpu()
	runtime.ReadMemStats(&after)

	if err != nil {
		return Result{}, err
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return Result{
		Name:        op.Label,
		Real:        elapsed,
		User:        nonNegative(user1 - user0),
		System:      nonNegative(sys1 - sys0),
		BytesAlloc:  after.TotalAlloc - before.TotalAlloc,
		AllocsCount: after.Mallocs - before.Mallocs,
	}, nil
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
