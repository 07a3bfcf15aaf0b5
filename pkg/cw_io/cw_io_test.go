package cw_io

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"
)

func newTestContext(t *testing.T) *RuntimeContext {
	t.Helper()
	logger.SetLogger(zaptest.NewLogger(t))
	return NewContext(context.Background(), "test")
}

func TestNewContextAndEnd(t *testing.T) {
	rc := newTestContext(t)
	require.NotNil(t, rc.Ctx)
	require.NotNil(t, rc.Log)
	assert.Equal(t, "test", rc.Command)

	rc.Attributes["method"] = "ClearZeros"
	err := cw_err.Newf(cw_err.KindIo, "write failed")
	assert.NotPanics(t, func() { rc.End(&err) })
}

func TestHandlePanic(t *testing.T) {
	rc := newTestContext(t)

	run := func() (err error) {
		defer rc.HandlePanic(&err)
		panic("boom")
	}
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "", classifyError(nil))
	assert.Equal(t, "user", classifyError(cw_err.NewUserError("bad flag")))
	assert.Equal(t, "Signing", classifyError(cw_err.Newf(cw_err.KindSigning, "no key")))
	assert.Equal(t, "system", classifyError(errors.New("plain")))
}

func TestReadPrompt(t *testing.T) {
	rc := newTestContext(t)
	var out strings.Builder

	got, err := readPrompt(rc, strings.NewReader("  /dev/sdb\x1b[31m \n"), &out, "Type the device path: ", "confirm")
	require.NoError(t, err)
	assert.Equal(t, "/dev/sdb", got)
	assert.Equal(t, "Type the device path: ", out.String())

	_, err = readPrompt(rc, strings.NewReader("\n"), &out, "> ", "confirm")
	var verr *InputValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "confirm", verr.Field)

	_, err = readPrompt(rc, strings.NewReader(""), &out, "> ", "confirm")
	assert.Error(t, err)
}

func TestParseYesNoInput(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"y", true, false},
		{"YES", true, false},
		{"no", false, false},
		{"maybe", false, true},
		{"", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseYesNoInput(tt.in, "confirm")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteFileAtomicAndYAML(t *testing.T) {
	rc := newTestContext(t)
	path := filepath.Join(t.TempDir(), "out", "cert.yaml")

	require.NoError(t, WriteYAML(rc.Ctx, path, map[string]string{"status": "Success"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "Success", got["status"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
