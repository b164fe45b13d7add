package profile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProfile() *profile.Profile {
	mainFn := &profile.Function{ID: 1, Name: "main.main"}
	runFn := &profile.Function{ID: 2, Name: "main.run"}
	insertFn := &profile.Function{ID: 3, Name: "repository.(*MemoryRepository).Insert"}
	helperFn := &profile.Function{ID: 4, Name: "repository.newProduct"}

	mainLoc := &profile.Location{ID: 1, Line: []profile.Line{{Function: mainFn}}}
	runLoc := &profile.Location{ID: 2, Line: []profile.Line{{Function: runFn}}}
	// newProduct inlined into Insert: callee first.
	insertLoc := &profile.Location{ID: 3, Line: []profile.Line{{Function: helperFn}, {Function: insertFn}}}

	return &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "samples", Unit: "count"}, {Type: "cpu", Unit: "nanoseconds"}},
		Sample: []*profile.Sample{
			{Location: []*profile.Location{insertLoc, runLoc, mainLoc}, Value: []int64{3, 30}},
			{Location: []*profile.Location{runLoc, mainLoc}, Value: []int64{1, 10}},
			{Location: []*profile.Location{insertLoc, runLoc, mainLoc}, Value: []int64{2, 20}},
			{Location: []*profile.Location{mainLoc}, Value: []int64{0, 0}},
		},
		Location: []*profile.Location{mainLoc, runLoc, insertLoc},
		Function: []*profile.Function{mainFn, runFn, insertFn, helperFn},
	}
}

func TestFoldProfile(t *testing.T) {
	out := string(FoldProfile(sampleProfile()))
	assert.Equal(t,
		"main.main;main.run 1\n"+
			"main.main;main.run;repository.(*MemoryRepository).Insert;repository.newProduct 5\n",
		out)
}

func TestFold_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleProfile().Write(&buf))

	out, err := Fold(&buf)
	require.NoError(t, err)
	assert.Contains(t, string(out), "main.main;main.run 1\n")
}

func TestFold_Invalid(t *testing.T) {
	_, err := Fold(bytes.NewReader([]byte("not a profile")))
	assert.Error(t, err)
}

func fakeProfiler(dir string, format Format) *Profiler {
	p := New(dir, format)
	p.start = func(w *bytes.Buffer) error { return sampleProfile().Write(w) }
	p.stop = func() {}
	return p
}

func TestProfiler_WritesFolded(t *testing.T) {
	dir := t.TempDir()
	p := fakeProfiler(dir, FormatFolded)

	calls := 0
	err := p.Profile("Mem write", func() error { calls++; return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	data, err := os.ReadFile(filepath.Join(dir, "flamegraph_mem_write"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "main.main;main.run 1")
}

func TestProfiler_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flamegraph_all")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))

	p := fakeProfiler(dir, FormatFolded)
	require.NoError(t, p.Profile("all", func() error { return nil }))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")
}

func TestProfiler_RawFormat(t *testing.T) {
	dir := t.TempDir()
	p := fakeProfiler(dir, FormatPprof)
	require.NoError(t, p.Profile("all", func() error { return nil }))

	f, err := os.Open(filepath.Join(dir, "flamegraph_all"))
	require.NoError(t, err)
	defer f.Close()

	prof, err := profile.Parse(f)
	require.NoError(t, err)
	assert.Len(t, prof.Sample, 4)
}

func TestProfiler_ReturnsFnError(t *testing.T) {
	p := fakeProfiler(t.TempDir(), FormatFolded)
	boom := errors.New("boom")
	assert.ErrorIs(t, p.Profile("x", func() error { return boom }), boom)
}

func TestProfiler_WriteFailureIsNotFatal(t *testing.T) {
	// A regular file where the directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	p := fakeProfiler(blocker, FormatFolded)
	ran := false
	err := p.Profile("x", func() error { ran = true; return nil })
	assert.NoError(t, err)
	assert.True(t, ran)
}

func TestProfiler_StopsOnPanic(t *testing.T) {
	p := fakeProfiler(t.TempDir(), FormatFolded)
	stopped := false
	p.stop = func() { stopped = true }

	assert.PanicsWithValue(t, "insert exploded", func() {
		_ = p.Profile("x", func() error { panic("insert exploded") })
	})
	assert.True(t, stopped)
	_, err := os.Stat(p.Path("x"))
	assert.True(t, os.IsNotExist(err))
}

func TestProfiler_StartFailureStillRuns(t *testing.T) {
	p := New(t.TempDir(), FormatFolded)
	p.start = func(*bytes.Buffer) error { return errors.New("already profiling") }
	p.stop = func() { t.Fatal("stop must not be called") }

	ran := false
	require.NoError(t, p.Profile("x", func() error { ran = true; return nil }))
	assert.True(t, ran)
	_, err := os.Stat(p.Path("x"))
	assert.True(t, os.IsNotExist(err))
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeOff, false},
		{"off", ModeOff, false},
		{"RUN", ModeRun, false},
		{" operation ", ModeOperation, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("pprof")
	require.NoError(t, err)
	assert.Equal(t, FormatPprof, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatFolded, f)

	_, err = ParseFormat("svg")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "postgres_sqlx_write", Slug("Postgres sqlx write"))
	assert.Equal(t, "all", Slug("all"))
	assert.Equal(t, "gorm_write", Slug("  Gorm/write "))
	assert.Equal(t, "run", Slug("!!!"))
}
