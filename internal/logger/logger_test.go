package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "json")
	SetLevel("WARN")
	t.Cleanup(func() {
		SetOutput(os.Stdout, "text")
		SetLevel("INFO")
	})

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "shown 2", entry["message"])
}

func TestSetLevel_IgnoresUnknown(t *testing.T) {
	SetLevel("DEBUG")
	SetLevel("verbose")
	t.Cleanup(func() { SetLevel("INFO") })

	assert.Equal(t, LevelDebug, currentLevel)
}

func TestConfigure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, Configure("error", "json", path))
	t.Cleanup(func() {
		_ = Configure("INFO", "text", "stdout")
	})

	Warn("not written")
	Error("disk on fire")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "not written")
	assert.Contains(t, string(data), "disk on fire")
}

func TestConfigure_Rejects(t *testing.T) {
	assert.Error(t, Configure("LOUD", "text", "stdout"))
	assert.Error(t, Configure("INFO", "xml", "stdout"))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}
