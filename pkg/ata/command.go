// pkg/ata/command.go
//
// ATA command model shared by the pass-through transport, the hidden-area
// manager and the security erase engine.

package ata

import (
	"fmt"
	"time"
)

// SectorSize is the data block size of every PIO command used here.
const SectorSize = 512

// Protocol is the ATA PASS-THROUGH protocol field.
type Protocol uint8

const (
	ProtoNonData Protocol = 3
	ProtoPIOIn   Protocol = 4
	ProtoPIOOut  Protocol = 5
)

// Command opcodes.
const (
	CmdReadNativeMaxExt        uint8 = 0x27
	CmdSetMaxExt               uint8 = 0x37
	CmdDeviceConfiguration     uint8 = 0xB1
	CmdIdentifyDevice          uint8 = 0xEC
	CmdSecuritySetPassword     uint8 = 0xF1
	CmdSecurityErasePrepare    uint8 = 0xF3
	CmdSecurityEraseUnit       uint8 = 0xF4
	CmdSecurityDisablePassword uint8 = 0xF6
	CmdReadNativeMax           uint8 = 0xF8
	CmdSetMax                  uint8 = 0xF9
)

// DEVICE CONFIGURATION feature codes.
const (
	FeatDCORestore  uint16 = 0xC0
	FeatDCOIdentify uint16 = 0xC2
)

// Status and error register bits.
const (
	StatusERR  uint8 = 1 << 0
	StatusDF   uint8 = 1 << 5
	StatusDRDY uint8 = 1 << 6
	StatusBSY  uint8 = 1 << 7

	ErrABRT uint8 = 1 << 2
)

// deviceLBA is the device register value selecting LBA addressing.
const deviceLBA uint8 = 0x40

// Command is one task-file level ATA command.
type Command struct {
	Name     string
	Opcode   uint8
	Feature  uint16
	Count    uint16
	LBA      uint64
	Device   uint8
	Extended bool
	Protocol Protocol
	// Data is the PIO buffer; a multiple of SectorSize for PIO commands.
	Data    []byte
	Timeout time.Duration
}

func (c *Command) String() string {
	return fmt.Sprintf("%s (0x%02X/0x%02X)", c.Name, c.Opcode, c.Feature)
}

// Result is the task file returned by the device after completion.
type Result struct {
	Status uint8
	Error  uint8
	Count  uint16
	LBA    uint64
	Device uint8
}

// Failed reports an error or device fault status.
func (r *Result) Failed() bool {
	return r.Status&(StatusERR|StatusDF) != 0
}

// Aborted reports that the device rejected the command.
func (r *Result) Aborted() bool {
	return r.Failed() && r.Error&ErrABRT != 0
}

// CommandError is returned when the device completes a command with error status.
type CommandError struct {
	Command string
	Status  uint8
	// ErrorReg is the ATA error register.
	ErrorReg uint8
}

func (e *CommandError) Error() string {
	reason := "error status"
	if e.ErrorReg&ErrABRT != 0 {
		reason = "command aborted"
	}
	return fmt.Sprintf("%s: %s (status=0x%02X error=0x%02X)", e.Command, reason, e.Status, e.ErrorReg)
}

// Check converts an error status in r into a *CommandError.
func Check(cmd *Command, r *Result) error {
	if r == nil || !r.Failed() {
		return nil
	}
	return &CommandError{Command: cmd.Name, Status: r.Status, ErrorReg: r.Error}
}

func IdentifyDevice() *Command {
	return &Command{
		Name:     "IDENTIFY DEVICE",
		Opcode:   CmdIdentifyDevice,
		Count:    1,
		Protocol: ProtoPIOIn,
		Data:     make([]byte, SectorSize),
		Timeout:  10 * time.Second,
	}
}

// ReadNativeMax returns the native max address query, 48-bit when ext.
func ReadNativeMax(ext bool) *Command {
	if ext {
		return &Command{
			Name:     "READ NATIVE MAX ADDRESS EXT",
			Opcode:   CmdReadNativeMaxExt,
			Device:   deviceLBA,
			Extended: true,
			Protocol: ProtoNonData,
			Timeout:  10 * time.Second,
		}
	}
	return &Command{
		Name:     "READ NATIVE MAX ADDRESS",
		Opcode:   CmdReadNativeMax,
		Device:   deviceLBA,
		Protocol: ProtoNonData,
		Timeout:  10 * time.Second,
	}
}

// SetMax sets the max user address to maxLBA. Count bit 0 requests a
// setting that survives power cycles.
func SetMax(maxLBA uint64, ext, permanent bool) *Command {
	var count uint16
	if permanent {
		count = 1
	}
	cmd := &Command{
		Name:     "SET MAX ADDRESS",
		Opcode:   CmdSetMax,
		Count:    count,
		LBA:      maxLBA,
		Device:   deviceLBA,
		Protocol: ProtoNonData,
		Timeout:  10 * time.Second,
	}
	if ext {
		cmd.Name = "SET MAX ADDRESS EXT"
		cmd.Opcode = CmdSetMaxExt
		cmd.Extended = true
	}
	return cmd
}

func DCOIdentify() *Command {
	return &Command{
		Name:     "DEVICE CONFIGURATION IDENTIFY",
		Opcode:   CmdDeviceConfiguration,
		Feature:  FeatDCOIdentify,
		Count:    1,
		Protocol: ProtoPIOIn,
		Data:     make([]byte, SectorSize),
		Timeout:  10 * time.Second,
	}
}

func DCORestore() *Command {
	return &Command{
		Name:     "DEVICE CONFIGURATION RESTORE",
		Opcode:   CmdDeviceConfiguration,
		Feature:  FeatDCORestore,
		Protocol: ProtoNonData,
		Timeout:  30 * time.Second,
	}
}

// passwordBlock lays out the 512-byte security data block: word 0 holds the
// control bits, words 1-16 the password.
func passwordBlock(control uint16, password []byte) []byte {
	buf := make([]byte, SectorSize)
	buf[0] = byte(control)
	buf[1] = byte(control >> 8)
	copy(buf[2:34], password)
	return buf
}

// SecuritySetPassword sets the user password with high security level.
func SecuritySetPassword(password []byte) *Command {
	return &Command{
		Name:     "SECURITY SET PASSWORD",
		Opcode:   CmdSecuritySetPassword,
		Count:    1,
		Protocol: ProtoPIOOut,
		Data:     passwordBlock(0, password),
		Timeout:  15 * time.Second,
	}
}

func SecurityErasePrepare() *Command {
	return &Command{
		Name:     "SECURITY ERASE PREPARE",
		Opcode:   CmdSecurityErasePrepare,
		Protocol: ProtoNonData,
		Timeout:  15 * time.Second,
	}
}

// SecurityEraseUnit erases with the user password; word 0 bit 1 selects
// enhanced mode.
func SecurityEraseUnit(password []byte, enhanced bool, timeout time.Duration) *Command {
	var control uint16
	if enhanced {
		control |= 1 << 1
	}
	return &Command{
		Name:     "SECURITY ERASE UNIT",
		Opcode:   CmdSecurityEraseUnit,
		Count:    1,
		Protocol: ProtoPIOOut,
		Data:     passwordBlock(control, password),
		Timeout:  timeout,
	}
}

func SecurityDisablePassword(password []byte) *Command {
	return &Command{
		Name:     "SECURITY DISABLE PASSWORD",
		Opcode:   CmdSecurityDisablePassword,
		Count:    1,
		Protocol: ProtoPIOOut,
		Data:     passwordBlock(0, password),
		Timeout:  15 * time.Second,
	}
}
