//go:build linux

// pkg/ata/sgio_linux.go

package ata

import (
	"context"
	"fmt"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	sgIO = 0x2285

	sgDxferNone    = -1
	sgDxferToDev   = -2
	sgDxferFromDev = -3

	senseBufLen = 32
)

// sgIoHdr mirrors struct sg_io_hdr from <scsi/sg.h>.
type sgIoHdr struct {
	interfaceID    int32
	dxferDirection int32
	cmdLen         uint8
	mxSbLen        uint8
	iovecCount     uint16
	dxferLen       uint32
	dxferp         unsafe.Pointer
	cmdp           unsafe.Pointer
	sbp            unsafe.Pointer
	timeout        uint32
	flags          uint32
	packID         int32
	usrPtr         unsafe.Pointer
	status         uint8
	maskedStatus   uint8
	msgStatus      uint8
	sbLenWr        uint8
	hostStatus     uint16
	driverStatus   uint16
	resid          int32
	duration       uint32
	info           uint32
}

// Supported reports whether this build can issue pass-through commands.
const Supported = true

// IssueSGIO sends cmd to the block device open on fd through the SG_IO ioctl.
// The device status is returned in Result; transport failures are errors.
// ctx is only checked before issue: a command in flight is bounded by its
// own timeout, not cancelled.
func IssueSGIO(ctx context.Context, fd uintptr, cmd *Command) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cdb := cmd.CDB()
	sense := make([]byte, senseBufLen)

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	hdr := sgIoHdr{
		interfaceID:    'S',
		dxferDirection: sgDxferNone,
		cmdLen:         uint8(len(cdb)),
		mxSbLen:        senseBufLen,
		cmdp:           unsafe.Pointer(&cdb[0]),
		sbp:            unsafe.Pointer(&sense[0]),
		timeout:        uint32(timeout.Milliseconds()),
	}
	switch cmd.Protocol {
	case ProtoPIOIn:
		hdr.dxferDirection = sgDxferFromDev
	case ProtoPIOOut:
		hdr.dxferDirection = sgDxferToDev
	}
	if hdr.dxferDirection != sgDxferNone {
		if len(cmd.Data) == 0 || len(cmd.Data)%SectorSize != 0 {
			return nil, fmt.Errorf("%s: data buffer must be a non-empty multiple of %d bytes", cmd.Name, SectorSize)
		}
		hdr.dxferLen = uint32(len(cmd.Data))
		hdr.dxferp = unsafe.Pointer(&cmd.Data[0])
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, sgIO, uintptr(unsafe.Pointer(&hdr)))
	runtime.KeepAlive(cdb)
	runtime.KeepAlive(sense)
	runtime.KeepAlive(cmd.Data)
	if errno != 0 {
		return nil, fmt.Errorf("%s: SG_IO ioctl: %w", cmd.Name, errno)
	}
	if hdr.hostStatus != 0 {
		return nil, fmt.Errorf("%s: host adapter status 0x%02X", cmd.Name, hdr.hostStatus)
	}

	res, err := ParseSense(sense[:hdr.sbLenWr], cmd.Extended)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return res, nil
}
