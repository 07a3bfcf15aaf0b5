// pkg/device/devicetest/simdrive.go

package devicetest

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/ata"
)

// SimDrive is a MemDevice that answers ATA commands like a SATA drive with
// optional HPA, DCO and Security feature set state.
type SimDrive struct {
	*MemDevice

	Model  string
	Serial string

	// Security feature set state (IDENTIFY word 128).
	SecuritySupported bool
	SecurityEnabled   bool
	Locked            bool
	Frozen            bool
	EnhancedErase     bool

	// EraseFill is written across the whole medium by SECURITY ERASE UNIT.
	EraseFill byte

	// Reject forces an ABRT status for the listed opcodes.
	Reject map[uint8]bool

	// TransportErr fails the listed opcodes at the transport layer.
	TransportErr map[uint8]error

	mu        sync.Mutex
	physMax   uint64
	dcoMax    uint64
	password  []byte
	prepared  bool
	permanent bool
	issued    []string
}

// NewSimDrive builds a drive with size bytes of medium, fully visible.
func NewSimDrive(path string, size int) *SimDrive {
	sectors := uint64(size / ata.SectorSize)
	return &SimDrive{
		MemDevice:         NewMemDevice(path, size),
		Model:             "CERTIWIPE SIM",
		Serial:            "SIM0001",
		SecuritySupported: true,
		EnhancedErase:     true,
		physMax:           sectors - 1,
		dcoMax:            sectors - 1,
	}
}

// WithHPA hides everything after visibleBytes behind a host protected area.
func (d *SimDrive) WithHPA(visibleBytes int) *SimDrive {
	d.setVisible(uint64(visibleBytes))
	return d
}

// WithDCO limits the native max to nativeBytes via a configuration overlay.
func (d *SimDrive) WithDCO(nativeBytes int) *SimDrive {
	d.mu.Lock()
	d.dcoMax = uint64(nativeBytes/ata.SectorSize) - 1
	d.mu.Unlock()
	if v, _ := d.Size(); v > uint64(nativeBytes) {
		d.setVisible(uint64(nativeBytes))
	}
	return d
}

// Issued returns the names of the commands accepted by the transport, in order.
func (d *SimDrive) Issued() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.issued...)
}

// PermanentSetMax reports whether the last SET MAX asked for a non-volatile change.
func (d *SimDrive) PermanentSetMax() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permanent
}

func (d *SimDrive) currentMax() uint64 {
	v, _ := d.Size()
	return v/ata.SectorSize - 1
}

func (d *SimDrive) IssueATA(_ context.Context, cmd *ata.Command) (*ata.Result, error) {
	if err := d.TransportErr[cmd.Opcode]; err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.issued = append(d.issued, cmd.Name)
	d.mu.Unlock()

	ok := &ata.Result{Status: ata.StatusDRDY}
	abort := &ata.Result{Status: ata.StatusDRDY | ata.StatusERR, Error: ata.ErrABRT}
	if d.Reject[cmd.Opcode] {
		return abort, nil
	}

	switch cmd.Opcode {
	case ata.CmdIdentifyDevice:
		copy(cmd.Data, d.identify())
		return ok, nil

	case ata.CmdReadNativeMaxExt, ata.CmdReadNativeMax:
		d.mu.Lock()
		defer d.mu.Unlock()
		return &ata.Result{Status: ata.StatusDRDY, LBA: d.dcoMax}, nil

	case ata.CmdSetMaxExt, ata.CmdSetMax:
		d.mu.Lock()
		native := d.dcoMax
		d.mu.Unlock()
		if cmd.LBA > native {
			return abort, nil
		}
		d.setVisible((cmd.LBA + 1) * ata.SectorSize)
		d.mu.Lock()
		d.permanent = cmd.Count&1 != 0
		d.mu.Unlock()
		return ok, nil

	case ata.CmdDeviceConfiguration:
		return d.deviceConfiguration(cmd, ok, abort)

	case ata.CmdSecuritySetPassword:
		if !d.SecuritySupported || d.Frozen || d.Locked {
			return abort, nil
		}
		d.mu.Lock()
		d.password = append([]byte(nil), cmd.Data[2:34]...)
		d.mu.Unlock()
		d.SecurityEnabled = true
		return ok, nil

	case ata.CmdSecurityErasePrepare:
		if !d.SecuritySupported || d.Frozen {
			return abort, nil
		}
		d.mu.Lock()
		d.prepared = true
		d.mu.Unlock()
		return ok, nil

	case ata.CmdSecurityEraseUnit:
		d.mu.Lock()
		prepared, match := d.prepared, bytes.Equal(d.password, cmd.Data[2:34])
		d.prepared = false
		d.mu.Unlock()
		if !prepared || !match || !d.SecurityEnabled {
			return abort, nil
		}
		if cmd.Data[0]&0x02 != 0 && !d.EnhancedErase {
			return abort, nil
		}
		d.Fill(d.EraseFill)
		d.SecurityEnabled = false
		d.Locked = false
		return ok, nil

	case ata.CmdSecurityDisablePassword:
		d.mu.Lock()
		match := bytes.Equal(d.password, cmd.Data[2:34])
		d.mu.Unlock()
		if !match || d.Frozen {
			return abort, nil
		}
		d.SecurityEnabled = false
		return ok, nil
	}
	return abort, nil
}

func (d *SimDrive) deviceConfiguration(cmd *ata.Command, ok, abort *ata.Result) (*ata.Result, error) {
	switch cmd.Feature {
	case ata.FeatDCOIdentify:
		d.mu.Lock()
		physMax := d.physMax
		d.mu.Unlock()
		words := make([]uint16, 256)
		words[0] = 2
		putLBA(words, 3, physMax)
		words[7] = 1<<0 | 1<<3 | 1<<7 | 1<<8
		copy(cmd.Data, encode(words))
		return ok, nil
	case ata.FeatDCORestore:
		d.mu.Lock()
		hpaSet := d.currentMaxLocked() < d.dcoMax
		d.mu.Unlock()
		if hpaSet {
			return abort, nil
		}
		d.mu.Lock()
		d.dcoMax = d.physMax
		physMax := d.physMax
		d.mu.Unlock()
		d.setVisible((physMax + 1) * ata.SectorSize)
		return ok, nil
	}
	return abort, nil
}

func (d *SimDrive) currentMaxLocked() uint64 {
	d.MemDevice.mu.Lock()
	defer d.MemDevice.mu.Unlock()
	return d.MemDevice.visible/ata.SectorSize - 1
}

func (d *SimDrive) identify() []byte {
	words := make([]uint16, 256)
	putString(words, 10, 10, d.Serial)
	putString(words, 27, 20, d.Model)

	words[82] = 1<<0 | 1<<1 | 1<<10
	words[83] = 1<<10 | 1<<11
	sectors := d.currentMax() + 1
	words[60] = uint16(min(sectors, 0x0FFFFFFF))
	words[61] = uint16(min(sectors, 0x0FFFFFFF) >> 16)
	putLBA(words, 100, sectors)

	var sec uint16
	if d.SecuritySupported {
		sec |= 1 << 0
	}
	if d.SecurityEnabled {
		sec |= 1 << 1
	}
	if d.Locked {
		sec |= 1 << 2
	}
	if d.Frozen {
		sec |= 1 << 3
	}
	if d.EnhancedErase {
		sec |= 1 << 5
	}
	words[128] = sec
	words[89] = 1
	words[90] = 1
	return encode(words)
}

func putLBA(words []uint16, at int, v uint64) {
	for i := 0; i < 4; i++ {
		words[at+i] = uint16(v >> (16 * i))
	}
}

func putString(words []uint16, start, n int, s string) {
	b := []byte(s)
	for len(b) < n*2 {
		b = append(b, ' ')
	}
	for i := 0; i < n; i++ {
		words[start+i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
}

func encode(words []uint16) []byte {
	buf := make([]byte, ata.SectorSize)
	for i, w := range words {
		binary.LittleEndian.PutUint16(buf[i*2:], w)
	}
	return buf
}
