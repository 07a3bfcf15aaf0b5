/* pkg/logger/paths.go */

package logger

import (
	"os"
	"path/filepath"
)

const (
	appID         = "certiwipe"
	systemLogPath = "/var/log/certiwipe/certiwipe.log"
)

// PlatformLogPaths returns candidate log paths in order of priority.
func PlatformLogPaths() []string {
	paths := []string{systemLogPath}
	if state := xdgStatePath(); state != "" {
		paths = append(paths, state)
	}
	return append(paths,
		filepath.Join(".", appID+".log"),
		filepath.Join(os.TempDir(), appID, appID+".log"),
	)
}

func xdgStatePath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appID, appID+".log")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".local", "state", appID, appID+".log")
}
