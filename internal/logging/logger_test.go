package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(t *testing.T, level Level) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{
		Level:      level,
		EnableJSON: true,
		Component:  "test",
		Version:    "v0",
		Output:     &buf,
	})
	require.NoError(t, err)
	return l, &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warning", WARN},
		{" error ", ERROR},
		{"bogus", INFO},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	l, buf := newJSONLogger(t, WARN)

	l.Info("hidden")
	l.Warn("shown %d", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 1")

	l.SetLevel(DEBUG)
	l.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
	assert.Equal(t, DEBUG, l.GetLevel())
}

func TestLoggerJSONFields(t *testing.T) {
	l, buf := newJSONLogger(t, DEBUG)

	l.WithFields(Fields{"region": "KADAPA"}).Info("lookup")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "lookup", entry["message"])
	assert.Equal(t, "KADAPA", entry["region"])
	assert.Equal(t, "test", entry["component"])
	assert.Equal(t, "v0", entry["version"])
	assert.Equal(t, "info", entry["level"])
}

func TestChildSharesLevel(t *testing.T) {
	l, buf := newJSONLogger(t, INFO)
	child := l.With("rule", "forecast")

	l.SetLevel(ERROR)
	child.Warn("suppressed")
	assert.Empty(t, buf.String())
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("nothing happens")
	assert.NoError(t, l.Close())
}

func TestRollingWriterWritesToDatedFile(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultRollingConfig()
	cfg.LogDir = dir
	cfg.Compress = false

	rw, err := NewRollingWriter(cfg, false)
	require.NoError(t, err)

	_, err = rw.Write([]byte("hello\n"))
	require.NoError(t, err)
	path := rw.Path()
	require.NoError(t, rw.Close())

	assert.True(t, strings.HasPrefix(filepath.Base(path), "fodder-analyzer-"))
	assert.True(t, strings.HasSuffix(path, ".log"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestRollingWriterRotatesBySize(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultRollingConfig()
	cfg.LogDir = dir
	cfg.MaxSize = 10
	cfg.Compress = true

	rw, err := NewRollingWriter(cfg, true)
	require.NoError(t, err)

	_, err = rw.Write([]byte("0123456789"))
	require.NoError(t, err)
	_, err = rw.Write([]byte("abc"))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	gz, err := filepath.Glob(filepath.Join(dir, "*.jsonl.gz"))
	require.NoError(t, err)
	assert.Len(t, gz, 1)
	assert.Len(t, GetLogFiles(dir), 2)

	data, err := os.ReadFile(rw.Path())
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestRollingWriterRotatesByDate(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultRollingConfig()
	cfg.LogDir = dir
	cfg.Compress = false

	rw, err := NewRollingWriter(cfg, false)
	require.NoError(t, err)

	day := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rw.mu.Lock()
	rw.now = func() time.Time { return day }
	rw.mu.Unlock()

	_, err = rw.Write([]byte("x"))
	require.NoError(t, err)
	assert.Contains(t, rw.Path(), "2024-03-01")
	require.NoError(t, rw.Close())
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}

	for _, tt := range tests {
		if got := FormatSize(tt.input); got != tt.expected {
			t.Errorf("FormatSize(%d) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}
