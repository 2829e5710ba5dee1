package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	l, err := New(Config{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)
	l.Info("request created")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"request created"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	l, err := New(Config{Level: "loud", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(-1))
	assert.True(t, l.Core().Enabled(0))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
