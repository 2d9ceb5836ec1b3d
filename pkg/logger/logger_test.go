package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGlobalLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	require.NoError(t, Init(Config{Level: "debug", OutputPaths: []string{path}}))

	Info("converted", zap.Int("rows", 2))
	Debug("record decoded", zap.Int64("columns", 3))
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "converted")
	assert.Contains(t, string(data), "record decoded")

	// initialization is once; later calls keep the first configuration
	require.NoError(t, Init(Config{Level: "not-a-level"}))
	assert.NotNil(t, Get())
}
