package benchmark

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context) error { return nil }

func TestRunner_TwoNoops(t *testing.T) {
	runner := NewRunner()
	results, err := runner.Run(context.Background(), []Operation{Op("a", noop), Op("b", noop)})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a", results[0].Name)
	assert.Equal(t, "b", results[1].Name)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Real, time.Duration(0))
		assert.GreaterOrEqual(t, r.User, time.Duration(0))
		assert.GreaterOrEqual(t, r.System, time.Duration(0))
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, DefaultWidth, results))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3) // caption + two entries
	assert.True(t, strings.HasPrefix(lines[1], "a "))
	assert.True(t, strings.HasPrefix(lines[2], "b "))
}

func TestRunner_SequentialOrder(t *testing.T) {
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	runner := NewRunner()
	_, err := runner.Run(context.Background(), []Operation{
		Op("first", record("first")),
		Op("second", record("second")),
		Op("third", record("third")),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestRunner_AbortsOnError(t *testing.T) {
	boom := errors.New("boom")
	ran := false

	runner := NewRunner()
	results, err := runner.Run(context.Background(), []Operation{
		Op("ok", noop),
		Op("broken", func(context.Context) error { return boom }),
		Op("never", func(context.Context) error { ran = true; return nil }),
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "broken: boom", err.Error())
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "broken", opErr.Label)
	assert.Nil(t, results)
	assert.False(t, ran)
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner().Run(ctx, []Operation{Op("a", noop)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_FakeClock(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(1500 * time.Millisecond)}
	cpuTicks := [][2]time.Duration{{time.Second, 0}, {3 * time.Second, 500 * time.Millisecond}}

	runner := NewRunner()
	runner.now = func() time.Time {
		t := ticks[0]
		ticks = ticks[1:]
		return t
	}
	runner.cpu = func() (time.Duration, time.Duration) {
		c := cpuTicks[0]
		cpuTicks = cpuTicks[1:]
		return c[0], c[1]
	}

	var observed []Result
	runner.Observer = func(r Result) { observed = append(observed, r) }

	results, err := runner.Run(context.Background(), []Operation{Op("write", noop)})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, 1500*time.Millisecond, r.Real)
	assert.Equal(t, 2*time.Second, r.User)
	assert.Equal(t, 500*time.Millisecond, r.System)
	assert.Equal(t, 2500*time.Millisecond, r.Total())
	assert.Equal(t, results, observed)

	assert.Equal(t, "write                 2.000000   0.500000   2.500000 (  1.500000)", FormatLine(DefaultWidth, r))
}

func TestRunner_Wrap(t *testing.T) {
	var wrapped []string
	runner := NewRunner()
	runner.Wrap = func(label string, fn func() error) error {
		wrapped = append(wrapped, label)
		return fn()
	}

	boom := errors.New("boom")
	_, err := runner.Run(context.Background(), []Operation{
		Op("a", noop),
		Op("b", func(context.Context) error { return boom }),
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, wrapped)
}

func TestWriteReport_Caption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, 4, nil))
	assert.Equal(t, "          user     system      total        real\n", buf.String())
}

func TestWriteChart(t *testing.T) {
	var buf bytes.Buffer
	err := WriteChart(&buf, "storage", []Result{{Name: "Mem write", Real: time.Second}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "storage")
}
