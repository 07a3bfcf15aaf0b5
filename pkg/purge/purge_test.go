package purge

import (
	"testing"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/ata"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device/devicetest"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDrive() *devicetest.SimDrive {
	d := devicetest.NewSimDrive("/dev/sim0", 16*ata.SectorSize)
	d.Fill(0xEE)
	return d
}

func TestRunPurgeSuccess(t *testing.T) {
	rc := testutil.NewTestContext(t)
	drive := newDrive()

	res, err := RunPurge(rc, drive, Options{})
	require.NoError(t, err)

	assert.Equal(t, Label, res.Label)
	assert.True(t, res.Enhanced)
	assert.Contains(t, res.Verification, "firmware")
	assert.Contains(t, res.Verification, "not directly observed")
	assert.Equal(t, []string{
		"IDENTIFY DEVICE",
		"SECURITY SET PASSWORD",
		"SECURITY ERASE PREPARE",
		"SECURITY ERASE UNIT",
	}, drive.Issued())
	for _, b := range drive.Bytes() {
		require.Zero(t, b)
	}
	assert.False(t, drive.SecurityEnabled)
}

func TestRunPurgeNormalMode(t *testing.T) {
	rc := testutil.NewTestContext(t)
	drive := newDrive()
	drive.EnhancedErase = false

	res, err := RunPurge(rc, drive, Options{})
	require.NoError(t, err)
	assert.False(t, res.Enhanced)
	assert.Contains(t, res.Verification, "normal mode")
}

func TestRunPurgeRejectsUnusableSecurityState(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*devicetest.SimDrive)
		expect string
	}{
		{"unsupported", func(d *devicetest.SimDrive) { d.SecuritySupported = false }, "does not support"},
		{"frozen", func(d *devicetest.SimDrive) { d.Frozen = true }, "frozen"},
		{"locked", func(d *devicetest.SimDrive) { d.Locked = true }, "locked"},
		{"enabled", func(d *devicetest.SimDrive) { d.SecurityEnabled = true }, "already has a security password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := testutil.NewTestContext(t)
			drive := newDrive()
			tt.setup(drive)

			_, err := RunPurge(rc, drive, Options{})
			require.Error(t, err)
			assert.True(t, cw_err.Is(err, cw_err.KindPlatformCommand))
			assert.Contains(t, err.Error(), tt.expect)
			assert.Equal(t, []string{"IDENTIFY DEVICE"}, drive.Issued())
			assert.Equal(t, byte(0xEE), drive.Bytes()[0])
		})
	}
}

func TestRunPurgeFrozenHasRemediation(t *testing.T) {
	rc := testutil.NewTestContext(t)
	drive := newDrive()
	drive.Frozen = true

	_, err := RunPurge(rc, drive, Options{})
	require.Error(t, err)
	assert.NotEmpty(t, cw_err.Hints(err))
}

func TestRunPurgeEraseRejectedClearsPassword(t *testing.T) {
	rc := testutil.NewTestContext(t)
	drive := newDrive()
	drive.Reject = map[uint8]bool{ata.CmdSecurityEraseUnit: true}

	_, err := RunPurge(rc, drive, Options{})
	require.Error(t, err)
	assert.True(t, cw_err.Is(err, cw_err.KindPlatformCommand))
	assert.Contains(t, err.Error(), "SECURITY ERASE UNIT")

	issued := drive.Issued()
	assert.Equal(t, "SECURITY DISABLE PASSWORD", issued[len(issued)-1])
	assert.False(t, drive.SecurityEnabled)
	assert.Empty(t, cw_err.Hints(err))
}

func TestRunPurgeDisableFailureAddsHint(t *testing.T) {
	rc := testutil.NewTestContext(t)
	drive := newDrive()
	drive.Reject = map[uint8]bool{
		ata.CmdSecurityErasePrepare:    true,
		ata.CmdSecurityDisablePassword: true,
	}

	_, err := RunPurge(rc, drive, Options{Password: "temp-pw"})
	require.Error(t, err)
	assert.True(t, drive.SecurityEnabled)
	hints := cw_err.Hints(err)
	require.Len(t, hints, 1)
	assert.Contains(t, hints[0], `"temp-pw"`)
}

func TestRunPurgeTransportFailure(t *testing.T) {
	rc := testutil.NewTestContext(t)
	drive := newDrive()
	drive.TransportErr = map[uint8]error{ata.CmdSecuritySetPassword: testutil.ErrInjected}

	_, err := RunPurge(rc, drive, Options{})
	assert.True(t, cw_err.Is(err, cw_err.KindPlatformCommand))
	assert.ErrorIs(t, err, testutil.ErrInjected)
}

func TestRunPurgeWithoutPassthrough(t *testing.T) {
	rc := testutil.NewTestContext(t)
	_, err := RunPurge(rc, devicetest.NewMemDevice("/dev/mem0", 4096), Options{})
	assert.True(t, cw_err.Is(err, cw_err.KindPlatformCommand))
	assert.NotEmpty(t, cw_err.Hints(err))
}
