// pkg/device/device.go
//
// Device handle and discovery capabilities consumed by the wipe engines.
// Concrete backends live in pkg/platform.

package device

import (
	"context"
	"io"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/ata"
)

// Info is an immutable snapshot of a disk captured at discovery time.
type Info struct {
	Path      string `json:"path"`
	Model     string `json:"model"`
	Serial    string `json:"serial"`
	SizeBytes uint64 `json:"size_bytes"`
	// Mounted and System are advisory; they feed the safety policy only.
	Mounted bool `json:"mounted"`
	System  bool `json:"system"`
}

// Device is an exclusively owned raw block device handle.
type Device interface {
	io.ReaderAt
	io.WriterAt
	// Sync flushes written data to stable storage.
	Sync() error
	// Size returns the addressable length in bytes as currently reported.
	Size() (uint64, error)
	Path() string
	Close() error
}

// CommandIssuer is an optional Device capability for raw ATA pass-through.
type CommandIssuer interface {
	IssueATA(ctx context.Context, cmd *ata.Command) (*ata.Result, error)
}

// Rescanner is an optional Device capability asking the OS to re-read the
// capacity after it was changed through pass-through commands.
type Rescanner interface {
	Rescan() error
}

// Access is the per-platform discovery and open capability.
type Access interface {
	IsAdmin() bool
	ListDisks(ctx context.Context) ([]Info, error)
	OpenDisk(ctx context.Context, path string, write bool) (Device, error)
}

// Find returns the disk whose path matches.
func Find(disks []Info, path string) (Info, bool) {
	for _, d := range disks {
		if d.Path == path {
			return d, true
		}
	}
	return Info{}, false
}

// Issuer returns dev's ATA capability, if it has one.
func Issuer(dev Device) (CommandIssuer, bool) {
	ci, ok := dev.(CommandIssuer)
	return ci, ok
}
