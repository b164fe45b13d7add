// Package profile runs work under the Go CPU profiler and writes a
// flamegraph artifact per profiling run.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime/pprof"
	"strings"
)

// Mode selects how much work a single artifact covers.
type Mode string

const (
	ModeOff       Mode = "off"
	ModeRun       Mode = "run"
	ModeOperation Mode = "operation"
)

// Format selects the artifact encoding.
type Format string

const (
	FormatFolded Format = "folded"
	FormatPprof  Format = "pprof"
)

// FilePrefix is prepended to every artifact name.
const FilePrefix = "flamegraph_"

var (
	ErrUnknownMode   = errors.New("unknown profile mode")
	ErrUnknownFormat = errors.New("unknown profile format")
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeOff:
		return ModeOff, nil
	case ModeRun, ModeOperation:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatFolded:
		return FormatFolded, nil
	case FormatPprof:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Profiler wraps a function with CPU profiling.
type Profiler struct {
	Dir    string
	Format Format

	// start and stop default to runtime/pprof; tests replace them.
	start func(w *bytes.Buffer) error
	stop  func()
}

func New(dir string, format Format) *Profiler {
	if dir == "" {
		dir = "."
	}
	if format == "" {
		format = FormatFolded
	}
	return &Profiler{Dir: dir, Format: format}
}

// Path returns where the artifact for name is written.
func (p *Profiler) Path(name string) string {
	return filepath.Join(p.Dir, FilePrefix+Slug(name))
}

// Profile runs fn exactly once with the CPU profiler active and writes
// flamegraph_<name>, replacing any earlier artifact. Only fn's error is
// returned; failures to collect or write the profile are logged. The
// profiler is stopped even when fn panics.
func (p *Profiler) Profile(name string, fn func() error) error {
	start, stop := p.start, p.stop
	if start == nil {
		start = func(w *bytes.Buffer) error { return pprof.StartCPUProfile(w) }
	}
	if stop == nil {
		stop = pprof.StopCPUProfile
	}

	var buf bytes.Buffer
	if err := start(&buf); err != nil {
		slog.Error("failed to start cpu profile", "name", name, "error", err)
		return fn()
	}
	runErr := func() error {
		defer stop()
		return fn()
	}()

	path := p.Path(name)
	if err := p.write(path, buf.Bytes()); err != nil {
		slog.Error("failed to write profile", "name", name, "path", path, "error", err)
	} else {
		slog.Info("profile written", "name", name, "path", path, "format", string(p.Format))
	}
	return runErr
}

func (p *Profiler) write(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	data := raw
	if p.Format != FormatPprof {
		folded, err := Fold(bytes.NewReader(raw))
		if err != nil {
			return err
		}
		data = folded
	}
	return os.WriteFile(path, data, 0644)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Slug turns an operation label into a file-name fragment:
// "Postgres sqlx write" becomes "postgres_sqlx_write".
func Slug(name string) string {
	s := unsafeChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "run"
	}
	return s
}
