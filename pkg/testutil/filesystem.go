package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertFileExists verifies that a file exists
func AssertFileExists(t testing.TB, path string) {
	t.Helper()
	_, err := os.Stat(path)
	require.NoError(t, err, "expected file to exist: %s", path)
}

// AssertFileNotExists verifies that a file does not exist
func AssertFileNotExists(t testing.TB, path string) {
	t.Helper()
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "expected file to not exist: %s", path)
}

// AssertFilePermissions verifies file permissions
func AssertFilePermissions(t testing.TB, path string, expectedPerm os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, expectedPerm, info.Mode().Perm(), "permissions of %s", path)
}
