// pkg/ata/identify.go

package ata

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
)

// Identify wraps the 256-word IDENTIFY DEVICE data.
type Identify struct {
	words [256]uint16
}

// ParseIdentify decodes a 512-byte IDENTIFY DEVICE block and checks the
// integrity word when the device provides one.
func ParseIdentify(data []byte) (*Identify, error) {
	words, err := decodeWords(data)
	if err != nil {
		return nil, fmt.Errorf("IDENTIFY DEVICE: %w", err)
	}
	return &Identify{words: words}, nil
}

func decodeWords(data []byte) ([256]uint16, error) {
	var words [256]uint16
	if len(data) < SectorSize {
		return words, fmt.Errorf("short data block: %d bytes", len(data))
	}
	if data[510] == 0xA5 {
		var sum byte
		for _, b := range data[:SectorSize] {
			sum += b
		}
		if sum != 0 {
			return words, fmt.Errorf("integrity checksum mismatch")
		}
	}
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	return words, nil
}

// Word returns raw word n.
func (id *Identify) Word(n int) uint16 {
	return id.words[n]
}

func (id *Identify) Model() string {
	return ataString(id.words[27:47])
}

func (id *Identify) Serial() string {
	return ataString(id.words[10:20])
}

// Supports48Bit reports the 48-bit address feature set (word 83 bit 10).
func (id *Identify) Supports48Bit() bool {
	return id.words[83]&(1<<10) != 0
}

// SupportsHPA reports the Host Protected Area feature set (word 82 bit 10).
func (id *Identify) SupportsHPA() bool {
	return id.words[82]&(1<<10) != 0
}

// SupportsDCO reports the Device Configuration Overlay feature set (word 83 bit 11).
func (id *Identify) SupportsDCO() bool {
	return id.words[83]&(1<<11) != 0
}

// UserSectors is the number of user addressable sectors.
func (id *Identify) UserSectors() uint64 {
	if id.Supports48Bit() {
		return uint64(id.words[100]) |
			uint64(id.words[101])<<16 |
			uint64(id.words[102])<<32 |
			uint64(id.words[103])<<48
	}
	return uint64(id.words[60]) | uint64(id.words[61])<<16
}

// MaxLBA is the highest currently addressable LBA.
func (id *Identify) MaxLBA() uint64 {
	n := id.UserSectors()
	if n == 0 {
		return 0
	}
	return n - 1
}

// Security is the decoded word 128 plus erase time estimates.
type Security struct {
	Supported         bool
	Enabled           bool
	Locked            bool
	Frozen            bool
	CountExpired      bool
	EnhancedSupported bool
	EraseTime         time.Duration
	EnhancedEraseTime time.Duration
}

func (id *Identify) Security() Security {
	w := id.words[128]
	return Security{
		Supported:         w&(1<<0) != 0,
		Enabled:           w&(1<<1) != 0,
		Locked:            w&(1<<2) != 0,
		Frozen:            w&(1<<3) != 0,
		CountExpired:      w&(1<<4) != 0,
		EnhancedSupported: w&(1<<5) != 0,
		EraseTime:         eraseTime(id.words[89]),
		EnhancedEraseTime: eraseTime(id.words[90]),
	}
}

// eraseTime decodes words 89/90: units of two minutes, with bit 15 selecting
// the extended 15-bit format. Zero means not reported.
func eraseTime(w uint16) time.Duration {
	var units uint16
	if w&(1<<15) != 0 {
		units = w & 0x7FFF
	} else {
		units = w & 0xFF
	}
	return time.Duration(units) * 2 * time.Minute
}

// DCO is the DEVICE CONFIGURATION IDENTIFY data.
type DCO struct {
	Revision uint16
	MaxLBA   uint64
	// Features is word 7, the command and feature sets the overlay allows.
	Features uint16
}

func ParseDCO(data []byte) (*DCO, error) {
	words, err := decodeWords(data)
	if err != nil {
		return nil, fmt.Errorf("DEVICE CONFIGURATION IDENTIFY: %w", err)
	}
	return &DCO{
		Revision: words[0],
		MaxLBA: uint64(words[3]) |
			uint64(words[4])<<16 |
			uint64(words[5])<<32 |
			uint64(words[6])<<48,
		Features: words[7],
	}, nil
}

// RestrictedFeatures lists feature sets the overlay allows that IDENTIFY
// does not report, which indicates the overlay has been used to hide them.
func (d *DCO) RestrictedFeatures(id *Identify) []string {
	checks := []struct {
		name     string
		dcoBit   uint16
		word     int
		identBit uint16
	}{
		{"SMART", 1 << 0, 82, 1 << 0},
		{"Security", 1 << 3, 82, 1 << 1},
		{"HPA", 1 << 7, 82, 1 << 10},
		{"48-bit", 1 << 8, 83, 1 << 10},
	}
	var hidden []string
	for _, c := range checks {
		if d.Features&c.dcoBit != 0 && id.words[c.word]&c.identBit == 0 {
			hidden = append(hidden, c.name)
		}
	}
	return hidden
}

// ataString decodes the byte-swapped ASCII used for model and serial.
func ataString(words []uint16) string {
	b := make([]byte, 0, len(words)*2)
	for _, w := range words {
		b = append(b, byte(w>>8), byte(w))
	}
	return strings.TrimSpace(strings.TrimRight(string(b), "\x00"))
}
