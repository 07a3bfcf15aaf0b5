package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_cli"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "wipe"}
	cw_cli.AddStringFlag(cmd, KeyConfig, "", "", "config file", false)
	cw_cli.AddStringFlag(cmd, KeyEnvFile, "", "", "env file", false)
	cw_cli.AddStringFlag(cmd, KeyMethod, "m", "ClearZeros", "method", false)
	cw_cli.AddIntFlag(cmd, KeyPasses, "p", 1, "passes")
	cw_cli.AddStringFlag(cmd, KeyKeyPath, "", DefaultKeyPath, "key", false)
	cw_cli.AddStringFlag(cmd, KeyJournalDir, "", filepath.Join(t.TempDir(), "journal"), "journal", false)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load(newCmd(t, "--config", writeFile(t, "empty.yaml", "{}\n")))
	require.NoError(t, err)
	assert.Equal(t, "linux", s.Backend)
	assert.Equal(t, "ClearZeros", s.Method)
	assert.Equal(t, 1, s.Passes)
	assert.Equal(t, DefaultKeyPath, s.KeyPath)
	assert.True(t, s.EnhancedErase)
}

func TestLoadPrecedence(t *testing.T) {
	cfg := writeFile(t, "certiwipe.yaml", "method: ClearRandom\npasses: 4\nsample-coverage: 0.05\n")
	env := writeFile(t, "certiwipe.env", "CERTIWIPE_CHI_THRESHOLD=300\n")
	t.Cleanup(func() { os.Unsetenv("CERTIWIPE_CHI_THRESHOLD") })

	s, err := Load(newCmd(t, "--config", cfg, "--env-file", env, "--passes", "2"))
	require.NoError(t, err)
	assert.Equal(t, "ClearRandom", s.Method, "from file")
	assert.Equal(t, 2, s.Passes, "flag beats file")
	assert.Equal(t, 0.05, s.SampleCoverage)
	assert.Equal(t, 300.0, s.ChiThreshold, "from env file")
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("CERTIWIPE_METHOD", "Purge")
	s, err := Load(newCmd(t, "--config", writeFile(t, "empty.yaml", "{}\n")))
	require.NoError(t, err)
	assert.Equal(t, "Purge", s.Method)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"method":   "method: Gutmann\n",
		"passes":   "passes: 0\n",
		"coverage": "sample-coverage: 1.5\n",
		"backend":  "backend: windows\n",
		"images":   "backend: image\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(newCmd(t, "--config", writeFile(t, "bad.yaml", content)))
			require.Error(t, err)
			assert.True(t, cw_err.Is(err, cw_err.KindConfig))
		})
	}
}

func TestLoadMissingExplicitFiles(t *testing.T) {
	_, err := Load(newCmd(t, "--config", filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)

	_, err = Load(newCmd(t, "--config", writeFile(t, "empty.yaml", "{}\n"), "--env-file", filepath.Join(t.TempDir(), "nope.env")))
	assert.Error(t, err)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
