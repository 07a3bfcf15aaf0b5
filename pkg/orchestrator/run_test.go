package orchestrator

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/certificate"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device/devicetest"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/journal"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/overwrite"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/testutil"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/wipe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const mib = 1 << 20

type fixture struct {
	access  *devicetest.Access
	journal *journal.Storage
	keyPath string
}

func newFixture(t *testing.T, dev device.Device) *fixture {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal"))
	require.NoError(t, err)
	return &fixture{
		access:  devicetest.NewAccess(device.Info{Model: "SIM", Serial: "SN-1"}, dev),
		journal: j,
		keyPath: filepath.Join(t.TempDir(), "keys", "signing.pem"),
	}
}

func (f *fixture) config(path string, m wipe.Method, passes int) Config {
	return Config{
		DrivePath: path,
		Method:    m,
		Passes:    passes,
		KeyPath:   f.keyPath,
		Access:    f.access,
		Journal:   f.journal,
		Yes:       true,
	}
}

func requireStage(t *testing.T, err error, stage Stage, kind cw_err.Kind) *cw_err.StageError {
	t.Helper()
	require.Error(t, err)
	var se *cw_err.StageError
	require.True(t, errors.As(err, &se), "want *StageError, got %T: %v", err, err)
	assert.Equal(t, string(stage), se.Stage)
	assert.Equal(t, kind, se.Kind, "error: %v", err)
	return se
}

func TestRunClearZerosEndToEnd(t *testing.T) {
	rc := testutil.NewTestContext(t)
	drive := devicetest.NewSimDrive("/dev/sdz", mib)
	drive.Fill(0xAB)
	f := newFixture(t, drive)

	cert, err := Run(rc, f.config("/dev/sdz", wipe.ClearZeros, 2))
	require.NoError(t, err)

	d := cert.WipeDetails
	assert.Equal(t, certificate.StatusSuccess, d.Status)
	assert.Equal(t, "ClearZeros", d.Method)
	assert.Equal(t, "NIST 800-88 Clear", d.Compliance)
	assert.Equal(t, 2, d.Passes)
	assert.False(t, d.HPARemoved)
	assert.False(t, d.DCODetected)
	assert.Contains(t, d.Notes, "No HPA present")
	assert.GreaterOrEqual(t, d.DurationSeconds, 0.0)

	assert.Equal(t, overwrite.Label, cert.Verification.Method)
	assert.Contains(t, cert.Verification.Result, "Verified")

	assert.Equal(t, "/dev/sdz", cert.DeviceInfo.Path)
	assert.Equal(t, "SN-1", cert.DeviceInfo.Serial)
	assert.Equal(t, uint64(mib), cert.DeviceInfo.SizeBytes)

	key, err := certificate.LoadPublicKey(f.keyPath)
	require.NoError(t, err)
	assert.NoError(t, certificate.Verify(cert, key))

	assert.True(t, bytes.Equal(make([]byte, mib), drive.Bytes()))
	assert.Equal(t, 2, drive.Syncs())
	assert.True(t, drive.Closed())

	archived, err := f.journal.ListArchived()
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, journal.StatusCompleted, archived[0].Status)
	assert.Equal(t, cert.CertificateID, archived[0].CertificateID)
	assert.Equal(t, string(StageDone), archived[0].LastStage())
}

func TestRunIoFailureStopsBeforeNextPass(t *testing.T) {
	rc := testutil.NewTestContext(t)
	dev := devicetest.NewMemDevice("/dev/sdz", mib)
	dev.WriteFault = devicetest.FailOnPass(2, testutil.ErrInjected)
	f := newFixture(t, dev)

	cert, err := Run(rc, f.config("/dev/sdz", wipe.ClearZeros, 3))
	assert.Nil(t, cert)
	requireStage(t, err, StageWipeDispatch, cw_err.KindIo)
	assert.ErrorIs(t, err, testutil.ErrInjected)

	var pe *overwrite.PassError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 2, pe.Pass)

	// Pass 1 completed and flushed; pass 2 wrote nothing; pass 3 never ran.
	assert.Equal(t, 1, dev.Syncs())
	assert.Equal(t, int64(mib), dev.BytesWritten())

	archived, err := f.journal.ListArchived()
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, journal.StatusFailed, archived[0].Status)
	assert.Empty(t, archived[0].CertificateID)
}

func TestRunEmitFailedCertificate(t *testing.T) {
	rc := testutil.NewTestContext(t)
	dev := devicetest.NewMemDevice("/dev/sdz", mib)
	dev.WriteFault = devicetest.FailOnPass(2, testutil.ErrInjected)
	f := newFixture(t, dev)

	cfg := f.config("/dev/sdz", wipe.ClearZeros, 3)
	cfg.EmitFailedCertificate = true
	cert, err := Run(rc, cfg)
	requireStage(t, err, StageWipeDispatch, cw_err.KindIo)
	require.NotNil(t, cert)

	assert.Equal(t, certificate.StatusFailed, cert.WipeDetails.Status)
	assert.Contains(t, cert.WipeDetails.Notes, "Wipe failed")
	assert.Contains(t, cert.Verification.Result, "Not verified")

	key, err := certificate.LoadPublicKey(f.keyPath)
	require.NoError(t, err)
	assert.NoError(t, certificate.Verify(cert, key))
}

func TestRunPrivilegeFailure(t *testing.T) {
	rc := testutil.NewTestContext(t)
	access := &devicetest.MockAccess{}
	access.On("IsAdmin").Return(false)

	cfg := Config{
		DrivePath: "/dev/sdz",
		Method:    wipe.ClearZeros,
		Passes:    1,
		KeyPath:   filepath.Join(t.TempDir(), "signing.pem"),
		Access:    access,
		Yes:       true,
	}
	cert, err := Run(rc, cfg)
	assert.Nil(t, cert)
	se := requireStage(t, err, StagePrivilegeCheck, cw_err.KindPermissions)
	assert.Equal(t, cw_err.ExitPermissions, cw_err.GetExitCode(se))
	assert.NotEmpty(t, cw_err.Hints(err))

	assert.NoFileExists(t, cfg.KeyPath)

	access.AssertExpectations(t)
	access.AssertNotCalled(t, "ListDisks", mock.Anything)
	access.AssertNotCalled(t, "OpenDisk", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunDeviceNotFound(t *testing.T) {
	rc := testutil.NewTestContext(t)
	f := newFixture(t, devicetest.NewMemDevice("/dev/sdz", mib))

	_, err := Run(rc, f.config("/dev/sdq", wipe.ClearZeros, 1))
	requireStage(t, err, StageDeviceDiscovery, cw_err.KindDeviceNotFound)
	assert.Empty(t, f.access.Opened)
}

func TestRunInvalidConfig(t *testing.T) {
	rc := testutil.NewTestContext(t)
	f := newFixture(t, devicetest.NewMemDevice("/dev/sdz", mib))

	cfg := f.config("", wipe.ClearZeros, 0)
	_, err := Run(rc, cfg)
	se := requireStage(t, err, StageInit, cw_err.KindConfig)

	var ve *ValidationErrors
	require.True(t, errors.As(se, &ve))
	assert.Len(t, ve.Errors, 2)

	_, statErr := os.Stat(f.keyPath)
	assert.True(t, os.IsNotExist(statErr), "no key should be created for an invalid request")
}

func TestRunBrokenKeyFailsBeforeTouchingDevice(t *testing.T) {
	rc := testutil.NewTestContext(t)
	dev := devicetest.NewMemDevice("/dev/sdz", mib)
	dev.Fill(0xAB)
	f := newFixture(t, dev)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.keyPath), 0o700))
	require.NoError(t, os.WriteFile(f.keyPath, []byte("garbage"), 0o600))

	_, err := Run(rc, f.config("/dev/sdz", wipe.ClearZeros, 1))
	requireStage(t, err, StagePrivilegeCheck, cw_err.KindSigning)
	assert.Empty(t, f.access.Opened)
	assert.Zero(t, dev.BytesWritten())
}

func TestRunPermissionsCheckedBeforeKeyAccess(t *testing.T) {
	rc := testutil.NewTestContext(t)
	access := &devicetest.MockAccess{}
	access.On("IsAdmin").Return(false)

	// The key path cannot be opened or created: its parent is a regular file.
	blocker := filepath.Join(t.TempDir(), "etc-certiwipe")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o600))
	keyPath := filepath.Join(blocker, "signing_key.pem")

	cert, err := Run(rc, Config{
		DrivePath: "/dev/sdz",
		Method:    wipe.ClearZeros,
		Passes:    1,
		KeyPath:   keyPath,
		Access:    access,
		Yes:       true,
	})
	assert.Nil(t, cert)
	requireStage(t, err, StagePrivilegeCheck, cw_err.KindPermissions)
	assert.Equal(t, cw_err.ExitPermissions, cw_err.GetExitCode(err))
	access.AssertNotCalled(t, "ListDisks", mock.Anything)
}

func TestRunHPARemovalGrowsWipe(t *testing.T) {
	rc := testutil.NewTestContext(t)
	drive := devicetest.NewSimDrive("/dev/sdz", mib).WithHPA(mib / 2)
	drive.Fill(0xAB)
	f := newFixture(t, drive)

	cert, err := Run(rc, f.config("/dev/sdz", wipe.ClearZeros, 1))
	require.NoError(t, err)

	assert.True(t, cert.WipeDetails.HPARemoved)
	assert.Equal(t, uint64(mib/2), cert.DeviceInfo.SizeBytes, "device info is the discovery snapshot")
	assert.Contains(t, cert.WipeDetails.Notes, "HPA removed")
	assert.True(t, bytes.Equal(make([]byte, mib), drive.Bytes()), "hidden sectors must be wiped too")
}

func TestRunPurgeReportsSinglePass(t *testing.T) {
	rc := testutil.NewTestContext(t)
	drive := devicetest.NewSimDrive("/dev/sdz", mib)
	drive.Fill(0xAB)
	f := newFixture(t, drive)

	cert, err := Run(rc, f.config("/dev/sdz", wipe.Purge, 5))
	require.NoError(t, err)

	assert.Equal(t, "NIST 800-88 Purge", cert.WipeDetails.Compliance)
	assert.Equal(t, 1, cert.WipeDetails.Passes)
	assert.Equal(t, "ATA Secure Erase", cert.Verification.Method)
	assert.Contains(t, cert.Verification.Result, "firmware")
}

func TestRunPurgeUnsupportedIsPlatformFailure(t *testing.T) {
	rc := testutil.NewTestContext(t)
	drive := devicetest.NewSimDrive("/dev/sdz", mib)
	drive.Frozen = true
	f := newFixture(t, drive)

	cert, err := Run(rc, f.config("/dev/sdz", wipe.Purge, 1))
	assert.Nil(t, cert)
	requireStage(t, err, StageWipeDispatch, cw_err.KindPlatformCommand)
}

func TestRunPolicyRefusesMountedDevice(t *testing.T) {
	rc := testutil.NewTestContext(t)
	f := newFixture(t, devicetest.NewMemDevice("/dev/sdz", mib))
	f.access.Disks[0].Mounted = true

	_, err := Run(rc, f.config("/dev/sdz", wipe.ClearZeros, 1))
	requireStage(t, err, StageDeviceDiscovery, cw_err.KindConfig)
	assert.True(t, cw_err.IsExpectedUserError(err))
	assert.Empty(t, f.access.Opened)
}

func TestRunOperatorDeclines(t *testing.T) {
	rc := testutil.NewTestContext(t)
	f := newFixture(t, devicetest.NewMemDevice("/dev/sdz", mib))

	cfg := f.config("/dev/sdz", wipe.ClearZeros, 1)
	cfg.Yes = false
	cfg.Interactive = true
	var asked device.Info
	cfg.Confirm = func(info device.Info, m wipe.Method) (bool, error) {
		asked = info
		return false, nil
	}

	_, err := Run(rc, cfg)
	requireStage(t, err, StageDeviceDiscovery, cw_err.KindConfig)
	assert.Equal(t, "/dev/sdz", asked.Path)
	assert.Empty(t, f.access.Opened)
}

func TestRunWarnsAboutInterruptedWipes(t *testing.T) {
	rc := testutil.NewTestContext(t)
	f := newFixture(t, devicetest.NewMemDevice("/dev/sdz", mib))

	stale, err := f.journal.Create("/dev/sdy", "ClearRandom", 1)
	require.NoError(t, err)
	require.NoError(t, f.journal.RecordStage(stale.ID, "WipeDispatch", ""))

	_, err = Run(rc, f.config("/dev/sdz", wipe.ClearZeros, 1))
	require.NoError(t, err)

	active, err := f.journal.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1, "the interrupted entry stays active")
	assert.Equal(t, stale.ID, active[0].ID)
}
