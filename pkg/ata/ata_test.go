package ata

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(words map[int]uint16) []byte {
	b := make([]byte, SectorSize)
	for i, w := range words {
		binary.LittleEndian.PutUint16(b[i*2:], w)
	}
	return b
}

func putString(words map[int]uint16, start, n int, s string) {
	padded := []byte(s)
	for len(padded) < n*2 {
		padded = append(padded, ' ')
	}
	for i := 0; i < n; i++ {
		words[start+i] = uint16(padded[2*i])<<8 | uint16(padded[2*i+1])
	}
}

func TestParseIdentify48Bit(t *testing.T) {
	words := map[int]uint16{
		82:  1 << 10,
		83:  1<<10 | 1<<11,
		100: 0x0000,
		101: 0x0010,
		128: 1<<0 | 1<<3 | 1<<5,
		89:  30,
		90:  0x8000 | 300,
	}
	putString(words, 27, 20, "ACME SSD 1000")
	putString(words, 10, 10, "SN12345")

	id, err := ParseIdentify(block(words))
	require.NoError(t, err)

	assert.Equal(t, "ACME SSD 1000", id.Model())
	assert.Equal(t, "SN12345", id.Serial())
	assert.True(t, id.Supports48Bit())
	assert.True(t, id.SupportsHPA())
	assert.True(t, id.SupportsDCO())
	assert.Equal(t, uint64(0x100000), id.UserSectors())
	assert.Equal(t, uint64(0xFFFFF), id.MaxLBA())

	sec := id.Security()
	assert.True(t, sec.Supported)
	assert.False(t, sec.Enabled)
	assert.True(t, sec.Frozen)
	assert.True(t, sec.EnhancedSupported)
	assert.Equal(t, 60*time.Minute, sec.EraseTime)
	assert.Equal(t, 600*time.Minute, sec.EnhancedEraseTime)
}

func TestParseIdentify28Bit(t *testing.T) {
	id, err := ParseIdentify(block(map[int]uint16{60: 0x1000, 61: 0x0001}))
	require.NoError(t, err)
	assert.False(t, id.Supports48Bit())
	assert.Equal(t, uint64(0x11000), id.UserSectors())
}

func TestParseIdentifyChecksum(t *testing.T) {
	b := block(map[int]uint16{60: 8})
	b[510] = 0xA5
	b[511] = 0x01
	_, err := ParseIdentify(b)
	assert.ErrorContains(t, err, "checksum")

	var sum byte
	for _, v := range b[:511] {
		sum += v
	}
	b[511] = -sum
	_, err = ParseIdentify(b)
	assert.NoError(t, err)

	_, err = ParseIdentify(make([]byte, 100))
	assert.ErrorContains(t, err, "short")
}

func TestParseDCO(t *testing.T) {
	dco, err := ParseDCO(block(map[int]uint16{0: 2, 3: 0xFFFF, 4: 0x0001, 7: 1<<3 | 1<<7 | 1<<8}))
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1FFFF), dco.MaxLBA)

	id, err := ParseIdentify(block(map[int]uint16{82: 1 << 1, 83: 1 << 10}))
	require.NoError(t, err)
	assert.Equal(t, []string{"HPA"}, dco.RestrictedFeatures(id))
}

func TestCDBExtended(t *testing.T) {
	cmd := SetMax(0x0000_1234_5678_9ABC, true, true)
	cdb := cmd.CDB()

	assert.Equal(t, byte(0x85), cdb[0])
	assert.Equal(t, byte(ProtoNonData)<<1|1, cdb[1])
	assert.Equal(t, byte(0x20), cdb[2])
	assert.Equal(t, byte(1), cdb[6])
	assert.Equal(t, []byte{0x56, 0xBC, 0x34, 0x9A, 0x12, 0x78}, cdb[7:13])
	assert.Equal(t, CmdSetMaxExt, cdb[14])
}

func TestCDB28BitAndPIO(t *testing.T) {
	cdb := SetMax(0x0ABCDEF1, false, false).CDB()
	assert.Equal(t, byte(0), cdb[1]&1)
	assert.Equal(t, byte(0), cdb[6])
	assert.Equal(t, byte(0xF1), cdb[8])
	assert.Equal(t, byte(0xDE), cdb[10])
	assert.Equal(t, byte(0xBC), cdb[12])
	assert.Equal(t, byte(0x4A), cdb[13])
	assert.Equal(t, CmdSetMax, cdb[14])

	id := IdentifyDevice().CDB()
	assert.Equal(t, byte(ProtoPIOIn)<<1, id[1])
	assert.Equal(t, byte(0x2E), id[2])

	erase := SecurityEraseUnit([]byte("pw"), true, time.Hour)
	assert.Equal(t, byte(0x26), erase.CDB()[2])
	assert.Equal(t, byte(0x02), erase.Data[0])
	assert.Equal(t, []byte("pw"), erase.Data[2:4])
}

func TestParseSenseDescriptor(t *testing.T) {
	sense := make([]byte, 22)
	sense[0] = 0x72
	sense[7] = 14
	d := sense[8:]
	d[0], d[1], d[2] = 0x09, 0x0C, 0x01
	d[3] = 0x00
	d[6], d[7] = 0x12, 0xFF
	d[8], d[9] = 0x00, 0xFF
	d[10], d[11] = 0x00, 0x0F
	d[13] = StatusDRDY

	res, err := ParseSense(sense, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x12_0F_FF_FF), res.LBA)
	assert.False(t, res.Failed())

	d[13] = StatusDRDY | StatusERR
	d[3] = ErrABRT
	res, err = ParseSense(sense, true)
	require.NoError(t, err)
	assert.True(t, res.Aborted())

	cmd := ReadNativeMax(true)
	var cerr *CommandError
	require.ErrorAs(t, Check(cmd, res), &cerr)
	assert.Contains(t, cerr.Error(), "aborted")
	assert.Equal(t, uint8(ErrABRT), cerr.ErrorReg)
	assert.Equal(t, StatusDRDY|StatusERR, cerr.Status)
}

func TestParseSenseFixedAndMissing(t *testing.T) {
	sense := make([]byte, 18)
	sense[0] = 0x70
	sense[3] = 0
	sense[4] = StatusDRDY
	sense[5] = 0x43
	sense[9], sense[10], sense[11] = 0x01, 0x02, 0x03
	res, err := ParseSense(sense, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x03030201), res.LBA)

	_, err = ParseSense(nil, false)
	assert.ErrorIs(t, err, ErrNoATAStatus)
	_, err = ParseSense([]byte{0x72, 0, 0, 0, 0, 0, 0, 0}, false)
	assert.ErrorIs(t, err, ErrNoATAStatus)
}
