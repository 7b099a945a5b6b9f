// file: internal/logging/logging_test.go
// version: 1.0.0
// guid: 8cb34d49-7ad6-4ec6-a25c-9f5c6fb307e9

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTextHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	log, closeLog, err := New(Options{Level: "warn", Output: &buf})
	require.NoError(t, err)
	defer closeLog()

	log.Info("hidden")
	log.Warn("shown", "file", "a.mp3")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "file=a.mp3")
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, closeLog, err := New(Options{Format: "json", Output: &buf})
	require.NoError(t, err)
	defer closeLog()

	log.Info("matched", "score", 0.9)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "matched", rec["msg"])
	assert.Equal(t, 0.9, rec["score"])
}

func TestNewWritesFileCopy(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "mmf.log")
	log, closeLog, err := New(Options{Output: &buf, File: path})
	require.NoError(t, err)

	log.Info("hello")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestNewRejectsUnknownValues(t *testing.T) {
	_, closeLog, err := New(Options{Format: "xml"})
	assert.Error(t, err)
	assert.NotNil(t, closeLog)

	_, _, err = New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
