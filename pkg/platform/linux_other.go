//go:build !linux

// pkg/platform/linux_other.go

package platform

import (
	"fmt"
	"runtime"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
)

func newLinuxAccess(_ Options) (device.Access, error) {
	return nil, fmt.Errorf("linux device backend is unavailable on %s", runtime.GOOS)
}
