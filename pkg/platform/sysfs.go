// pkg/platform/sysfs.go

package platform

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
)

// virtualPrefixes are block devices with no backing medium worth wiping.
var virtualPrefixes = []string{"loop", "ram", "zram", "dm-", "md", "sr", "nbd"}

// systemMounts mark a disk as hosting the running system.
var systemMounts = map[string]bool{"/": true, "/boot": true, "/boot/efi": true, "/usr": true, "/var": true}

type sysfs struct {
	sysRoot  string
	procRoot string
	devRoot  string
}

// listDisks enumerates whole physical disks from /sys/block.
func (s sysfs) listDisks() ([]device.Info, error) {
	entries, err := os.ReadDir(filepath.Join(s.sysRoot, "block"))
	if err != nil {
		return nil, err
	}

	mounts := s.mountedDevices()
	swaps := s.swapDevices()

	var disks []device.Info
	for _, e := range entries {
		name := e.Name()
		if isVirtual(name) {
			continue
		}
		base := filepath.Join(s.sysRoot, "block", name)
		if _, err := os.Stat(filepath.Join(base, "device")); err != nil {
			continue
		}

		sectors, err := strconv.ParseUint(readTrim(filepath.Join(base, "size")), 10, 64)
		if err != nil {
			continue
		}

		info := device.Info{
			Path:      filepath.Join(s.devRoot, name),
			Model:     readTrim(filepath.Join(base, "device", "model")),
			Serial:    s.serial(base),
			SizeBytes: sectors * 512,
		}

		for _, devnum := range s.devNumbers(base, name) {
			if mp, ok := mounts[devnum]; ok {
				info.Mounted = true
				if systemMounts[mp] {
					info.System = true
				}
			}
			if swaps[devnum] {
				info.Mounted = true
				info.System = true
			}
		}
		disks = append(disks, info)
	}

	sort.Slice(disks, func(i, j int) bool { return disks[i].Path < disks[j].Path })
	return disks, nil
}

func (s sysfs) serial(base string) string {
	for _, rel := range []string{"device/serial", "serial", "device/wwid"} {
		if v := readTrim(filepath.Join(base, rel)); v != "" {
			return v
		}
	}
	return ""
}

// devNumbers returns major:minor of the disk and each of its partitions.
func (s sysfs) devNumbers(base, name string) []string {
	var nums []string
	if v := readTrim(filepath.Join(base, "dev")); v != "" {
		nums = append(nums, v)
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nums
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), name) {
			continue
		}
		if v := readTrim(filepath.Join(base, e.Name(), "dev")); v != "" {
			nums = append(nums, v)
		}
	}
	return nums
}

// mountedDevices maps major:minor to mount point from mountinfo.
func (s sysfs) mountedDevices() map[string]string {
	out := map[string]string{}
	f, err := os.Open(filepath.Join(s.procRoot, "self", "mountinfo"))
	if err != nil {
		return out
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}
		devnum, mountPoint := fields[2], fields[4]
		if prev, ok := out[devnum]; ok && systemMounts[prev] {
			continue
		}
		out[devnum] = mountPoint
	}
	return out
}

// swapDevices returns major:minor of active swap partitions.
func (s sysfs) swapDevices() map[string]bool {
	out := map[string]bool{}
	f, err := os.Open(filepath.Join(s.procRoot, "swaps"))
	if err != nil {
		return out
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}
		name := filepath.Base(fields[0])
		if v := readTrim(filepath.Join(s.sysRoot, "class", "block", name, "dev")); v != "" {
			out[v] = true
		}
	}
	return out
}

func isVirtual(name string) bool {
	for _, p := range virtualPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func readTrim(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
