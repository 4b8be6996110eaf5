package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Swind/go-lossyflow/config"
	"github.com/Swind/go-lossyflow/core"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zap.DebugLevel,
		" INFO ":  zap.InfoLevel,
		"warning": zap.WarnLevel,
		"warn":    zap.WarnLevel,
		"error":   zap.ErrorLevel,
		"":        zap.InfoLevel,
		"bogus":   zap.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestNewLogger_FileJSON verifies file output with the JSON encoder
// Given: A config writing JSON to a file in a nested directory at warn level
// When: Messages at info and warn are logged through the core adapter
// Then: Only the warn entry reaches the file, with its fields
func TestNewLogger_FileJSON(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "nested", "flow.log")
	lc := config.LogConfig{Level: "warn", Format: "json", Outputs: []string{path}}

	// Act
	logger, zl, err := NewCoreLogger(lc)
	require.NoError(t, err)
	logger.Info("dropped")
	logger.Warn("kept", core.F("task", "square"))
	require.NoError(t, zl.Sync())

	// Assert
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg":"kept"`)
	assert.Contains(t, lines[0], `"task":"square"`)
}

// TestNewLogger_Rotation verifies the rotation filename takes precedence
func TestNewLogger_Rotation(t *testing.T) {
	dir := t.TempDir()
	rotated := filepath.Join(dir, "rotated.log")
	lc := config.LogConfig{
		Level:   "info",
		Format:  "console",
		Outputs: []string{filepath.Join(dir, "ignored.log")},
		Rotation: config.RotationConfig{
			Enable:   true,
			Filename: rotated,
		},
	}

	zl, err := NewLogger(lc)
	require.NoError(t, err)
	zl.Info("hello")
	_ = zl.Sync()

	data, err := os.ReadFile(rotated)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	_, err = os.Stat(filepath.Join(dir, "ignored.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestNewLogger_UnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := NewLogger(config.LogConfig{Outputs: []string{filepath.Join(blocker, "x.log")}})

	assert.Error(t, err)
}

// TestSetupLogger_ReplacesGlobals verifies the default core logger follows zap globals
func TestSetupLogger_ReplacesGlobals(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zap.L()))
	path := filepath.Join(t.TempDir(), "global.log")
	zl, err := SetupLogger(config.LogConfig{Level: "debug", Format: "json", Outputs: []string{path}})
	require.NoError(t, err)

	core.NewDefaultLogger().Debug("via globals")
	_ = zl.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "via globals")
}
