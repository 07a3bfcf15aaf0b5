package platform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func fakeSys(t *testing.T) sysfs {
	t.Helper()
	root := t.TempDir()
	sys := filepath.Join(root, "sys")
	proc := filepath.Join(root, "proc")

	// sda: system disk with root on sda2 and swap on sda3
	writeFile(t, filepath.Join(sys, "block/sda/size"), "2048\n")
	writeFile(t, filepath.Join(sys, "block/sda/dev"), "8:0\n")
	writeFile(t, filepath.Join(sys, "block/sda/device/model"), "BOOT DISK  \n")
	writeFile(t, filepath.Join(sys, "block/sda/device/serial"), "S1\n")
	writeFile(t, filepath.Join(sys, "block/sda/sda2/dev"), "8:2\n")
	writeFile(t, filepath.Join(sys, "block/sda/sda3/dev"), "8:3\n")
	writeFile(t, filepath.Join(sys, "class/block/sda3/dev"), "8:3\n")

	// sdb: idle data disk
	writeFile(t, filepath.Join(sys, "block/sdb/size"), "4096\n")
	writeFile(t, filepath.Join(sys, "block/sdb/dev"), "8:16\n")
	writeFile(t, filepath.Join(sys, "block/sdb/device/model"), "TARGET\n")
	writeFile(t, filepath.Join(sys, "block/sdb/device/wwid"), "naa.5000\n")

	// sdc: data disk with a mounted partition
	writeFile(t, filepath.Join(sys, "block/sdc/size"), "8\n")
	writeFile(t, filepath.Join(sys, "block/sdc/dev"), "8:32\n")
	writeFile(t, filepath.Join(sys, "block/sdc/device/model"), "USB\n")
	writeFile(t, filepath.Join(sys, "block/sdc/sdc1/dev"), "8:33\n")

	// loop0 has no device link and is virtual
	writeFile(t, filepath.Join(sys, "block/loop0/size"), "100\n")

	writeFile(t, filepath.Join(proc, "self/mountinfo"),
		"22 1 8:2 / / rw,relatime shared:1 - ext4 /dev/sda2 rw\n"+
			"40 22 8:33 / /media/usb rw - vfat /dev/sdc1 rw\n")
	writeFile(t, filepath.Join(proc, "swaps"),
		"Filename Type Size Used Priority\n/dev/sda3 partition 1024 0 -2\n")

	return sysfs{sysRoot: sys, procRoot: proc, devRoot: "/dev"}
}

func TestSysfsListDisks(t *testing.T) {
	disks, err := fakeSys(t).listDisks()
	require.NoError(t, err)
	require.Len(t, disks, 3)

	sda, sdb, sdc := disks[0], disks[1], disks[2]

	assert.Equal(t, "/dev/sda", sda.Path)
	assert.Equal(t, "BOOT DISK", sda.Model)
	assert.Equal(t, "S1", sda.Serial)
	assert.Equal(t, uint64(2048*512), sda.SizeBytes)
	assert.True(t, sda.Mounted)
	assert.True(t, sda.System)

	assert.Equal(t, "/dev/sdb", sdb.Path)
	assert.Equal(t, "naa.5000", sdb.Serial)
	assert.False(t, sdb.Mounted)
	assert.False(t, sdb.System)

	assert.True(t, sdc.Mounted)
	assert.False(t, sdc.System)
}

func TestImageAccess(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0600))

	access, err := New(Options{Backend: BackendImage, Images: []string{path}})
	require.NoError(t, err)
	assert.True(t, access.IsAdmin())

	disks, err := access.ListDisks(ctx)
	require.NoError(t, err)
	require.Len(t, disks, 1)
	assert.Equal(t, uint64(4096), disks[0].SizeBytes)
	assert.Regexp(t, `^IMG-[0-9A-F]{12}$`, disks[0].Serial)

	dev, err := access.OpenDisk(ctx, path, true)
	require.NoError(t, err)

	_, err = access.OpenDisk(ctx, path, true)
	assert.ErrorContains(t, err, "already open")

	n, err := dev.WriteAt([]byte{1, 2, 3}, 4093)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = dev.WriteAt([]byte{1, 2}, 4095)
	assert.Error(t, err)

	require.NoError(t, dev.Sync())
	require.NoError(t, dev.Close())

	dev, err = access.OpenDisk(ctx, path, true)
	require.NoError(t, err)
	require.NoError(t, dev.Close())
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(Options{Backend: "floppy"})
	assert.ErrorContains(t, err, "unknown device backend")

	_, err = New(Options{Backend: BackendImage})
	assert.Error(t, err)
}
