package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock handler to inspect log records
type mockHandler struct {
	mu      sync.Mutex
	records []slog.Record
	attrs   []slog.Attr
	group   string
	enabled bool
}

func (h *mockHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.enabled
}

func (h *mockHandler) Handle(ctx context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)
	return nil
}

func (h *mockHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	return &mockHandler{enabled: h.enabled, group: h.group, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *mockHandler) WithGroup(name string) slog.Handler {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &mockHandler{enabled: h.enabled, group: group, attrs: h.attrs}
}

func (h *mockHandler) getRecords() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.records
}

func TestFanout(t *testing.T) {
	t.Run("Enabled", func(t *testing.T) {
		h1 := &mockHandler{enabled: true}
		h2 := &mockHandler{enabled: false}
		f := fanout{h1, h2}
		assert.True(t, f.Enabled(context.Background(), slog.LevelInfo))

		h1.enabled = false
		assert.False(t, f.Enabled(context.Background(), slog.LevelInfo))
	})

	t.Run("Handle", func(t *testing.T) {
		h1 := &mockHandler{enabled: true}
		h2 := &mockHandler{enabled: true}
		off := &mockHandler{enabled: false}
		f := fanout{h1, h2, off}

		record := slog.NewRecord(time.Now(), slog.LevelInfo, "test message", 0)
		require.NoError(t, f.Handle(context.Background(), record))
		assert.Len(t, h1.getRecords(), 1)
		assert.Len(t, h2.getRecords(), 1)
		assert.Empty(t, off.getRecords())
		assert.Equal(t, "test message", h1.getRecords()[0].Message)
	})

	t.Run("Failing sink does not starve the others", func(t *testing.T) {
		var buf bytes.Buffer
		f := fanout{
			slog.NewJSONHandler(failingWriter{}, nil),
			slog.NewJSONHandler(&buf, nil),
		}

		err := f.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "still written", 0))
		assert.ErrorIs(t, err, errDiskFull)
		assert.Contains(t, buf.String(), "still written")
	})

	t.Run("WithAttrs", func(t *testing.T) {
		f := fanout{&mockHandler{enabled: true}, &mockHandler{enabled: true}}
		attrs := []slog.Attr{slog.String("key", "value")}

		derived, ok := f.WithAttrs(attrs).(fanout)
		require.True(t, ok, "WithAttrs should return a fanout")
		require.Len(t, derived, 2)
		for _, h := range derived {
			assert.Equal(t, attrs, h.(*mockHandler).attrs)
		}
		// The receiver is left untouched.
		assert.Empty(t, f[0].(*mockHandler).attrs)
	})

	t.Run("WithGroup", func(t *testing.T) {
		f := fanout{&mockHandler{enabled: true}}

		derived, ok := f.WithGroup("bench").(fanout)
		require.True(t, ok, "WithGroup should return a fanout")
		assert.Equal(t, "bench", derived[0].(*mockHandler).group)
	})
}

var errDiskFull = errors.New("disk full")

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errDiskFull }

func TestNewLogger(t *testing.T) {
	t.Run("Console level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf, false, "")
		logger.Debug("hidden")
		logger.Info("shown", "operation", "Mem write")

		assert.NotContains(t, buf.String(), "hidden")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "shown", entry["msg"])
		assert.Equal(t, "Mem write", entry["operation"])
	})

	t.Run("Debug", func(t *testing.T) {
		var buf bytes.Buffer
		NewLogger(&buf, true, "").Debug("debug message")
		assert.Contains(t, buf.String(), "debug message")
	})

	t.Run("Console and file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dbbench.log")
		var buf bytes.Buffer
		NewLogger(&buf, false, path).Info("both sinks")

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "both sinks")
		assert.Contains(t, buf.String(), "both sinks")
	})

	t.Run("No handlers", func(t *testing.T) {
		logger := NewLogger(nil, false, "")
		require.NotNil(t, logger)
		logger.Info("this goes to dev/null")
	})
}

func TestNewLogger_FileError(t *testing.T) {
	originalLogger := slog.Default()
	defer slog.SetDefault(originalLogger)

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))

	invalidPath := filepath.Join(t.TempDir(), "nonexistent/test.log")
	logger := NewLogger(nil, false, invalidPath)
	assert.NotNil(t, logger)
	assert.Contains(t, buf.String(), "Failed to open log file")
}

func TestLogHelpers(t *testing.T) {
	originalLogger := slog.Default()
	defer slog.SetDefault(originalLogger)

	var buf bytes.Buffer
	slog.SetDefault(NewLogger(&buf, true, ""))

	LogDebug("dbg", "k", 1)
	LogInfo("info")
	LogError("failed", os.ErrNotExist, "path", "x.csv")

	out := buf.String()
	assert.Contains(t, out, `"msg":"dbg"`)
	assert.Contains(t, out, `"msg":"info"`)
	assert.Contains(t, out, `"error":"file does not exist"`)
	assert.Contains(t, out, `"path":"x.csv"`)
}
