//go:build linux

// pkg/platform/linux.go

package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/ata"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
	"golang.org/x/sys/unix"
)

// LinuxAccess discovers disks through sysfs and opens them with O_EXCL, which
// the kernel refuses while any partition is mounted or otherwise claimed.
type LinuxAccess struct {
	fs sysfs
}

func newLinuxAccess(opts Options) (device.Access, error) {
	fs := sysfs{sysRoot: "/sys", procRoot: "/proc", devRoot: "/dev"}
	if opts.SysRoot != "" {
		fs.sysRoot = opts.SysRoot
	}
	if opts.ProcRoot != "" {
		fs.procRoot = opts.ProcRoot
	}
	return &LinuxAccess{fs: fs}, nil
}

func (a *LinuxAccess) IsAdmin() bool {
	return os.Geteuid() == 0
}

func (a *LinuxAccess) ListDisks(_ context.Context) ([]device.Info, error) {
	disks, err := a.fs.listDisks()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate block devices: %w", err)
	}
	return disks, nil
}

func (a *LinuxAccess) OpenDisk(_ context.Context, path string, write bool) (device.Device, error) {
	flags := unix.O_RDONLY | unix.O_CLOEXEC
	if write {
		flags = unix.O_RDWR | unix.O_EXCL | unix.O_CLOEXEC
	}
	fd, err := unix.Open(path, flags, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &linuxDisk{f: os.NewFile(uintptr(fd), path), path: path, sysRoot: a.fs.sysRoot}, nil
}

type linuxDisk struct {
	f       *os.File
	path    string
	sysRoot string
}

func (d *linuxDisk) ReadAt(p []byte, off int64) (int, error)  { return d.f.ReadAt(p, off) }
func (d *linuxDisk) WriteAt(p []byte, off int64) (int, error) { return d.f.WriteAt(p, off) }
func (d *linuxDisk) Sync() error                              { return d.f.Sync() }
func (d *linuxDisk) Path() string                             { return d.path }
func (d *linuxDisk) Close() error                             { return d.f.Close() }

// Size asks the kernel for the current capacity with BLKGETSIZE64.
func (d *linuxDisk) Size() (uint64, error) {
	var size uint64
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), unix.BLKGETSIZE64, uintptr(unsafe.Pointer(&size)))
	if errno != 0 {
		return 0, fmt.Errorf("BLKGETSIZE64 %s: %w", d.path, errno)
	}
	return size, nil
}

func (d *linuxDisk) IssueATA(ctx context.Context, cmd *ata.Command) (*ata.Result, error) {
	return ata.IssueSGIO(ctx, d.f.Fd(), cmd)
}

// Rescan asks the SCSI layer to re-read capacity after SET MAX changes it.
func (d *linuxDisk) Rescan() error {
	path := filepath.Join(d.sysRoot, "block", filepath.Base(d.path), "device", "rescan")
	if err := os.WriteFile(path, []byte("1"), 0200); err != nil {
		return fmt.Errorf("rescan %s: %w", d.path, err)
	}
	return nil
}
