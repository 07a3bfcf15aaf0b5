/* pkg/platform/platform.go */

package platform

import (
	"fmt"
	"runtime"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
)

// Backend names accepted by New.
const (
	BackendLinux = "linux"
	BackendImage = "image"
)

// Options selects and configures a device access backend.
type Options struct {
	Backend string
	// Images lists regular files exposed as disks by the image backend.
	Images []string
	// SysRoot and ProcRoot override /sys and /proc for the linux backend.
	SysRoot  string
	ProcRoot string
}

// DefaultBackend returns the native backend for the running OS.
func DefaultBackend() string {
	switch runtime.GOOS {
	case "linux":
		return BackendLinux
	default:
		return BackendImage
	}
}

// New returns the device.Access implementation named by opts.Backend.
func New(opts Options) (device.Access, error) {
	backend := opts.Backend
	if backend == "" {
		backend = DefaultBackend()
	}
	switch backend {
	case BackendLinux:
		return newLinuxAccess(opts)
	case BackendImage:
		if len(opts.Images) == 0 {
			return nil, fmt.Errorf("image backend needs at least one image path")
		}
		return NewImageAccess(opts.Images), nil
	default:
		return nil, fmt.Errorf("unknown device backend %q (want %s or %s)", backend, BackendLinux, BackendImage)
	}
}
