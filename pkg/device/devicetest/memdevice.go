// pkg/device/devicetest/memdevice.go
//
// In-memory devices for exercising the wipe engines without hardware.

package devicetest

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// WriteCall describes one WriteAt issued to a MemDevice.
type WriteCall struct {
	Offset int64
	Len    int
	// Total is the cumulative number of bytes written before this call.
	Total int64
	// Syncs is the number of completed Sync calls before this write.
	Syncs int
}

// MemDevice is a byte-slice backed device.Device with fault injection.
type MemDevice struct {
	mu      sync.Mutex
	path    string
	data    []byte
	visible uint64

	// WriteFault, when set, is consulted before each write; a non-nil
	// return fails the write without touching data.
	WriteFault func(WriteCall) error
	SyncFault  func(n int) error

	bytesWritten int64
	writes       int
	syncs        int
	closed       bool
}

// NewMemDevice returns a zero-filled device of size bytes.
func NewMemDevice(path string, size int) *MemDevice {
	return &MemDevice{path: path, data: make([]byte, size), visible: uint64(size)}
}

// FailAfterBytes returns a WriteFault that fails the first write starting at
// or beyond total cumulative bytes.
func FailAfterBytes(total int64, err error) func(WriteCall) error {
	return func(c WriteCall) error {
		if c.Total >= total {
			return err
		}
		return nil
	}
}

// FailOnPass returns a WriteFault that fails the first write of the given
// 1-based pass, counting passes by completed syncs.
func FailOnPass(pass int, err error) func(WriteCall) error {
	return func(c WriteCall) error {
		if c.Syncs == pass-1 {
			return err
		}
		return nil
	}
}

func (m *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if uint64(off) >= m.visible {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:m.visible])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errors.New("device closed")
	}
	if m.WriteFault != nil {
		if err := m.WriteFault(WriteCall{Offset: off, Len: len(p), Total: m.bytesWritten, Syncs: m.syncs}); err != nil {
			return 0, err
		}
	}
	if off < 0 || uint64(off)+uint64(len(p)) > m.visible {
		return 0, fmt.Errorf("write [%d,%d) beyond device end %d", off, off+int64(len(p)), m.visible)
	}
	n := copy(m.data[off:], p)
	m.bytesWritten += int64(n)
	m.writes++
	return n, nil
}

func (m *MemDevice) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SyncFault != nil {
		if err := m.SyncFault(m.syncs + 1); err != nil {
			return err
		}
	}
	m.syncs++
	return nil
}

func (m *MemDevice) Size() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible, nil
}

func (m *MemDevice) Path() string {
	return m.path
}

func (m *MemDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Bytes returns a copy of the full backing store, hidden areas included.
func (m *MemDevice) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}

// Fill overwrites the full backing store with b.
func (m *MemDevice) Fill(b byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.data {
		m.data[i] = b
	}
}

// Poke sets a single byte, hidden areas included.
func (m *MemDevice) Poke(off int, b byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[off] = b
}

func (m *MemDevice) BytesWritten() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bytesWritten
}

func (m *MemDevice) Syncs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncs
}

func (m *MemDevice) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MemDevice) setVisible(n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > uint64(len(m.data)) {
		n = uint64(len(m.data))
	}
	m.visible = n
}
