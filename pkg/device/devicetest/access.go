// pkg/device/devicetest/access.go

package devicetest

import (
	"context"
	"fmt"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
	"github.com/stretchr/testify/mock"
)

// Access is a fixed in-memory disk inventory.
type Access struct {
	Admin   bool
	Disks   []device.Info
	Devices map[string]device.Device

	// Opened counts OpenDisk calls per path.
	Opened map[string]int
}

// NewAccess registers dev under info, taking the size from the device.
func NewAccess(info device.Info, dev device.Device) *Access {
	if size, err := dev.Size(); err == nil {
		info.SizeBytes = size
	}
	info.Path = dev.Path()
	return &Access{
		Admin:   true,
		Disks:   []device.Info{info},
		Devices: map[string]device.Device{dev.Path(): dev},
		Opened:  map[string]int{},
	}
}

func (a *Access) IsAdmin() bool {
	return a.Admin
}

// ListDisks refreshes each registered disk's size from its device, so a
// rediscovery observes capacity restored by hidden-area removal.
func (a *Access) ListDisks(_ context.Context) ([]device.Info, error) {
	out := make([]device.Info, 0, len(a.Disks))
	for _, d := range a.Disks {
		if dev, ok := a.Devices[d.Path]; ok {
			if size, err := dev.Size(); err == nil {
				d.SizeBytes = size
			}
		}
		out = append(out, d)
	}
	return out, nil
}

func (a *Access) OpenDisk(_ context.Context, path string, _ bool) (device.Device, error) {
	dev, ok := a.Devices[path]
	if !ok {
		return nil, fmt.Errorf("open %s: no such device", path)
	}
	if a.Opened == nil {
		a.Opened = map[string]int{}
	}
	a.Opened[path]++
	return dev, nil
}

// MockAccess is a testify mock of device.Access.
type MockAccess struct {
	mock.Mock
}

func (m *MockAccess) IsAdmin() bool {
	return m.Called().Bool(0)
}

func (m *MockAccess) ListDisks(ctx context.Context) ([]device.Info, error) {
	args := m.Called(ctx)
	disks, _ := args.Get(0).([]device.Info)
	return disks, args.Error(1)
}

func (m *MockAccess) OpenDisk(ctx context.Context, path string, write bool) (device.Device, error) {
	args := m.Called(ctx, path, write)
	dev, _ := args.Get(0).(device.Device)
	return dev, args.Error(1)
}
