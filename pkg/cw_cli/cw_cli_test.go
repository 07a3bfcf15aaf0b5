package cw_cli

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/certificate"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", HumanSize(512))
	assert.Equal(t, "1.0 KiB", HumanSize(1024))
	assert.Equal(t, "1.5 MiB", HumanSize(3<<19))
	assert.Equal(t, "931.5 GiB", HumanSize(1000204886016))
}

func TestBindFlagsToViper(t *testing.T) {
	cmd := &cobra.Command{Use: "wipe"}
	AddStringFlag(cmd, "drive", "d", "", "device", false)
	AddIntFlag(cmd, "passes", "p", 1, "passes")
	AddBoolFlag(cmd, "yes", "y", false, "skip confirmation")
	require.NoError(t, cmd.Flags().Parse([]string{"--drive", "/dev/sdz", "-p", "3"}))

	v := viper.New()
	require.NoError(t, BindFlagsToViper(cmd, v))
	assert.Equal(t, "/dev/sdz", v.GetString("drive"))
	assert.Equal(t, 3, v.GetInt("passes"))
	assert.False(t, v.GetBool("yes"))
}

func TestSetViperEnvPrefix(t *testing.T) {
	t.Setenv("CERTIWIPE_KEY_PATH", "/tmp/k.pem")
	v := viper.New()
	SetViperEnvPrefix(v, "CERTIWIPE")
	assert.Equal(t, "/tmp/k.pem", v.GetString("key-path"))
}

func TestWrapMarksUnexpectedErrors(t *testing.T) {
	cmd := &cobra.Command{Use: "probe"}

	err := Wrap(func(rc *cw_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		return cw_err.Newf(cw_err.KindIo, "boom")
	})(cmd, nil)
	assert.True(t, cw_err.Is(err, cw_err.KindIo))

	err = Wrap(func(rc *cw_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		panic("unexpected")
	})(cmd, nil)
	assert.ErrorContains(t, err, "panic")
}

func TestRenderCertificate(t *testing.T) {
	out := RenderCertificate(&certificate.WipeCertificate{
		CertificateID: "abc-123",
		DeviceInfo:    certificate.DeviceInfo{Path: "/dev/sdz", Model: "SIM", Serial: "S1"},
		WipeDetails:   certificate.WipeDetails{Status: certificate.StatusSuccess, Method: "ClearZeros", Passes: 2},
		Verification:  certificate.Verification{Result: "Verified all-zero"},
	})
	assert.Contains(t, out, "abc-123")
	assert.Contains(t, out, "Verified all-zero")
}

func TestRenderDisksFlagsMounted(t *testing.T) {
	out := RenderDisks([]device.Info{{Path: "/dev/sda", Mounted: true, System: true}, {Path: "/dev/sdb"}})
	assert.Contains(t, out, "mounted,system")
	assert.Contains(t, out, "/dev/sdb")
	assert.Equal(t, "No disk devices found.", RenderDisks(nil))
}

func TestInterruptGuardNeedsTwoSignals(t *testing.T) {
	g := NewInterruptGuard(context.Background(), "testing")
	defer g.Stop()

	exited := make(chan int, 1)
	g.exit = func(code int) { exited <- code }

	var order []int
	g.RegisterCleanup(func() error { order = append(order, 1); return nil })
	g.RegisterCleanup(func() error { order = append(order, 2); return errors.New("second failed") })

	g.sigChan <- syscall.SIGINT
	select {
	case <-exited:
		t.Fatal("first interrupt must not exit")
	case <-time.After(50 * time.Millisecond):
	}

	g.sigChan <- syscall.SIGINT
	select {
	case code := <-exited:
		assert.Equal(t, 130, code)
	case <-time.After(2 * time.Second):
		t.Fatal("second interrupt did not exit")
	}
	assert.Equal(t, []int{2, 1}, order)
}
