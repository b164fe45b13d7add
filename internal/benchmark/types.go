package benchmark

import (
	"context"
	"time"
)

// Operation is one labelled unit of work timed by the Runner.
type Operation struct {
	Label string
	Fn    func(ctx context.Context) error
}

// Op is shorthand for building an Operation.
func Op(label string, fn func(ctx context.Context) error) Operation {
	return Operation{Label: label, Fn: fn}
}

// Result represents a single timed operation.
type Result struct {
	Name        string        `json:"name"`
	Real        time.Duration `json:"real_ns"`
	User        time.Duration `json:"user_ns"`
	System      time.Duration `json:"system_ns"`
	BytesAlloc  uint64        `json:"bytes_alloc"`
	AllocsCount uint64        `json:"allocs"`
}

// Total is user plus system CPU time.
func (r Result) Total() time.Duration {
	return r.User + r.System
}

// Run represents a collection of results from a single execution.
type Run struct {
	Timestamp time.Time `json:"timestamp"`
	Suite     string    `json:"suite"`
	Commit    string    `json:"commit,omitempty"` // Git commit hash
	Results   []Result  `json:"results"`
}
