package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestLoggerWritesFileAndSetLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")
	l, err := New(Config{Level: "info", Outputs: []string{"file"}, OutputFile: path, Format: "json"})
	require.NoError(t, err)

	l.Debug("hidden")
	l.LogSync("fetch_result", map[string]interface{}{"outcome": "ok"})
	require.NoError(t, l.SetLevel("debug"))
	assert.Equal(t, "debug", l.Level())
	l.Debug("visible")
	_ = l.Close()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.True(t, strings.Contains(out, `"event":"fetch_result"`))
	assert.True(t, strings.Contains(out, "visible"))
	assert.False(t, strings.Contains(out, "hidden"))
}
