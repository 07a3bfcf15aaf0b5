// pkg/platform/image.go

package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
	"github.com/google/uuid"
)

// imageNamespace derives stable serial numbers for image files.
var imageNamespace = uuid.MustParse("6f1c7a52-3b1e-4c55-9d0b-9a3c2c1f7e01")

// ImageAccess exposes regular files as disks. Exclusive ownership is taken
// with a sibling lock file created O_EXCL.
type ImageAccess struct {
	images []string
}

func NewImageAccess(images []string) *ImageAccess {
	abs := make([]string, 0, len(images))
	for _, p := range images {
		if a, err := filepath.Abs(p); err == nil {
			p = a
		}
		abs = append(abs, p)
	}
	return &ImageAccess{images: abs}
}

// IsAdmin is always true: image files need no raw device privilege.
func (a *ImageAccess) IsAdmin() bool {
	return true
}

func (a *ImageAccess) ListDisks(_ context.Context) ([]device.Info, error) {
	disks := make([]device.Info, 0, len(a.images))
	for _, p := range a.images {
		st, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat image %s: %w", p, err)
		}
		if !st.Mode().IsRegular() {
			return nil, fmt.Errorf("image %s is not a regular file", p)
		}
		disks = append(disks, device.Info{
			Path:      p,
			Model:     "Disk Image",
			Serial:    imageSerial(p),
			SizeBytes: uint64(st.Size()),
		})
	}
	return disks, nil
}

func (a *ImageAccess) OpenDisk(_ context.Context, path string, write bool) (device.Device, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if !write {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		return &imageDisk{f: f, path: path}, nil
	}

	lockPath := path + ".lock"
	lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("image %s is already open for writing (%s exists)", path, lockPath)
		}
		return nil, fmt.Errorf("lock image %s: %w", path, err)
	}
	_ = lock.Close()

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		_ = os.Remove(lockPath)
		return nil, err
	}
	return &imageDisk{f: f, path: path, lockPath: lockPath}, nil
}

type imageDisk struct {
	f        *os.File
	path     string
	lockPath string
}

func (d *imageDisk) ReadAt(p []byte, off int64) (int, error) { return d.f.ReadAt(p, off) }
func (d *imageDisk) Sync() error                             { return d.f.Sync() }
func (d *imageDisk) Path() string                            { return d.path }

// WriteAt refuses to grow the image; a disk has a fixed capacity.
func (d *imageDisk) WriteAt(p []byte, off int64) (int, error) {
	size, err := d.Size()
	if err != nil {
		return 0, err
	}
	if off < 0 || uint64(off)+uint64(len(p)) > size {
		return 0, fmt.Errorf("write [%d,%d) beyond end of %s (%d bytes)", off, off+int64(len(p)), d.path, size)
	}
	return d.f.WriteAt(p, off)
}

func (d *imageDisk) Size() (uint64, error) {
	st, err := d.f.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(st.Size()), nil
}

func (d *imageDisk) Close() error {
	err := d.f.Close()
	if d.lockPath != "" {
		if rerr := os.Remove(d.lockPath); rerr != nil && err == nil {
			err = rerr
		}
	}
	return err
}

func imageSerial(path string) string {
	id := uuid.NewSHA1(imageNamespace, []byte(path))
	return "IMG-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:12])
}
