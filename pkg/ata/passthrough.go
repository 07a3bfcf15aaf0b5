// pkg/ata/passthrough.go
//
// SCSI ATA PASS-THROUGH(16) encoding and sense decoding (SAT-3).

package ata

import (
	"errors"
	"fmt"
)

const (
	opPassThrough16 = 0x85

	senseDescriptorFormat = 0x72
	senseFixedFormat      = 0x70
	descATAStatusReturn   = 0x09
)

// ErrNoATAStatus means the transport returned no ATA register output, so the
// command outcome cannot be judged.
var ErrNoATAStatus = errors.New("no ATA status in sense data")

// CDB encodes cmd as an ATA PASS-THROUGH(16) command block. CK_COND is always
// set so the device registers come back in the sense data.
func (c *Command) CDB() [16]byte {
	var cdb [16]byte
	cdb[0] = opPassThrough16

	cdb[1] = byte(c.Protocol) << 1
	if c.Extended {
		cdb[1] |= 0x01
	}

	// ck_cond=1; t_length=2 (count field), byt_blok=1 for data commands.
	cdb[2] = 0x20
	switch c.Protocol {
	case ProtoPIOIn:
		cdb[2] |= 0x08 | 0x04 | 0x02
	case ProtoPIOOut:
		cdb[2] |= 0x04 | 0x02
	}

	lba := c.LBA
	dev := c.Device
	if c.Extended {
		cdb[3] = byte(c.Feature >> 8)
		cdb[5] = byte(c.Count >> 8)
		cdb[7] = byte(lba >> 24)
		cdb[9] = byte(lba >> 32)
		cdb[11] = byte(lba >> 40)
	} else {
		dev |= byte(lba>>24) & 0x0F
	}
	cdb[4] = byte(c.Feature)
	cdb[6] = byte(c.Count)
	cdb[8] = byte(lba)
	cdb[10] = byte(lba >> 8)
	cdb[12] = byte(lba >> 16)
	cdb[13] = dev
	cdb[14] = c.Opcode
	return cdb
}

// ParseSense extracts the ATA task file from descriptor or fixed format sense data.
func ParseSense(sense []byte, extended bool) (*Result, error) {
	if len(sense) == 0 {
		return nil, ErrNoATAStatus
	}
	switch sense[0] & 0x7F {
	case senseDescriptorFormat:
		return parseDescriptorSense(sense, extended)
	case senseFixedFormat:
		return parseFixedSense(sense)
	default:
		return nil, fmt.Errorf("%w: response code 0x%02X", ErrNoATAStatus, sense[0])
	}
}

func parseDescriptorSense(sense []byte, extended bool) (*Result, error) {
	if len(sense) < 8 {
		return nil, ErrNoATAStatus
	}
	end := 8 + int(sense[7])
	if end > len(sense) {
		end = len(sense)
	}
	for i := 8; i+1 < end; {
		code, n := sense[i], int(sense[i+1])+2
		if code == descATAStatusReturn && i+14 <= len(sense) {
			d := sense[i : i+14]
			r := &Result{
				Error:  d[3],
				Count:  uint16(d[4])<<8 | uint16(d[5]),
				Device: d[12],
				Status: d[13],
			}
			r.LBA = uint64(d[7]) | uint64(d[9])<<8 | uint64(d[11])<<16
			if extended || d[2]&0x01 != 0 {
				r.LBA |= uint64(d[6])<<24 | uint64(d[8])<<32 | uint64(d[10])<<40
			} else {
				r.LBA |= uint64(d[12]&0x0F) << 24
			}
			return r, nil
		}
		i += n
	}
	return nil, ErrNoATAStatus
}

// parseFixedSense reads the SAT fixed format layout, which only carries
// 28-bit register values.
func parseFixedSense(sense []byte) (*Result, error) {
	if len(sense) < 12 {
		return nil, ErrNoATAStatus
	}
	return &Result{
		Error:  sense[3],
		Status: sense[4],
		Device: sense[5],
		Count:  uint16(sense[6]),
		LBA:    uint64(sense[9]) | uint64(sense[10])<<8 | uint64(sense[11])<<16 | uint64(sense[5]&0x0F)<<24,
	}, nil
}
