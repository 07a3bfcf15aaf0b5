package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"DEBUG":   zapcore.DebugLevel,
		"trace":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"ERROR":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestEnsureLogPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "certiwipe.log")

	require.NoError(t, EnsureLogPermissions(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())
}

func TestGetLogFileWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certiwipe.log")

	w, err := GetLogFileWriter(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}

func TestPlatformLogPathsPrefersSystemPath(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/state")
	paths := PlatformLogPaths()
	require.NotEmpty(t, paths)
	assert.Equal(t, systemLogPath, paths[0])
	assert.Contains(t, paths, "/state/certiwipe/certiwipe.log")
}

func TestSetLoggerAndLifecycle(t *testing.T) {
	SetLogger(zaptest.NewLogger(t))
	assert.NotNil(t, L())
	assert.Same(t, L(), GetLogger())

	done := LogCommandLifecycle("wipe")
	err := errors.New("boom")
	done(&err)
	done(nil)

	assert.Len(t, GenerateTraceID(), 8)
}
