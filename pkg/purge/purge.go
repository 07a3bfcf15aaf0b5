// pkg/purge/purge.go
//
// Firmware secure erase (NIST 800-88 Purge) through the ATA Security feature set.

package purge

import (
	"context"
	"fmt"
	"time"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/ata"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Label is the verification method recorded for firmware erase.
const Label = "ATA Secure Erase"

// DefaultPassword is the temporary user password set for the erase. It is
// fixed so an operator can unlock a drive left locked by a failed run.
const DefaultPassword = "certiwipe"

const defaultEraseTimeout = 4 * time.Hour

type Options struct {
	// NormalOnly disables enhanced erase even when the drive supports it.
	NormalOnly bool
	Password   string
	// Timeout bounds SECURITY ERASE UNIT; derived from IDENTIFY when zero.
	Timeout time.Duration
}

type Result struct {
	Label        string
	Verification string
	Enhanced     bool
	Estimated    time.Duration
	Duration     time.Duration
}

// RunPurge issues SECURITY SET PASSWORD, ERASE PREPARE and ERASE UNIT and
// waits only for the completion status. Every rejection is a PlatformCommand
// failure; there is no partial success.
func RunPurge(rc *cw_io.RuntimeContext, dev device.Device, opts Options) (*Result, error) {
	log := otelzap.Ctx(rc.Ctx)
	ctx, span := telemetry.Start(rc.Ctx, "purge.secure_erase")
	defer span.End()

	if opts.Password == "" {
		opts.Password = DefaultPassword
	}
	password := []byte(opts.Password)

	// ASSESS
	issuer, ok := device.Issuer(dev)
	if !ok {
		return nil, cw_err.WithRemediation(
			cw_err.Newf(cw_err.KindPlatformCommand, "device %s has no ATA pass-through; firmware erase is unavailable", dev.Path()),
			"Use ClearZeros or ClearRandom for devices behind USB bridges or virtual disks")
	}

	idCmd := ata.IdentifyDevice()
	if err := run(ctx, issuer, idCmd); err != nil {
		return nil, err
	}
	id, err := ata.ParseIdentify(idCmd.Data)
	if err != nil {
		return nil, cw_err.Wrapf(cw_err.KindPlatformCommand, err, "read security state")
	}
	sec := id.Security()
	log.Info("Assessed ATA security state",
		zap.Bool("supported", sec.Supported),
		zap.Bool("enabled", sec.Enabled),
		zap.Bool("locked", sec.Locked),
		zap.Bool("frozen", sec.Frozen),
		zap.Bool("enhanced_supported", sec.EnhancedSupported),
		zap.Duration("erase_time", sec.EraseTime),
		zap.Duration("enhanced_erase_time", sec.EnhancedEraseTime))

	switch {
	case !sec.Supported:
		return nil, cw_err.Newf(cw_err.KindPlatformCommand, "device %s does not support the ATA Security feature set", dev.Path())
	case sec.Frozen:
		return nil, cw_err.WithRemediation(
			cw_err.Newf(cw_err.KindPlatformCommand, "device %s security is frozen", dev.Path()),
			"Suspend and resume the host, or hot-plug the drive, to clear the frozen state")
	case sec.Locked:
		return nil, cw_err.Newf(cw_err.KindPlatformCommand, "device %s is security locked", dev.Path())
	case sec.Enabled:
		return nil, cw_err.Newf(cw_err.KindPlatformCommand, "device %s already has a security password set", dev.Path())
	}

	enhanced := sec.EnhancedSupported && !opts.NormalOnly
	estimate := sec.EraseTime
	if enhanced {
		estimate = sec.EnhancedEraseTime
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultEraseTimeout
		if estimate > 0 {
			timeout = 2*estimate + 10*time.Minute
		}
	}
	span.SetAttributes(attribute.Bool("enhanced", enhanced), attribute.Int64("timeout_ms", timeout.Milliseconds()))

	// INTERVENE
	if err := run(ctx, issuer, ata.SecuritySetPassword(password)); err != nil {
		return nil, err
	}

	log.Warn("Issuing SECURITY ERASE UNIT; the drive will destroy all user data",
		zap.String("device", dev.Path()),
		zap.Bool("enhanced", enhanced),
		zap.Duration("estimated", estimate),
		zap.Duration("timeout", timeout))

	start := time.Now()
	if err := run(ctx, issuer, ata.SecurityErasePrepare()); err != nil {
		return nil, disablePassword(rc, issuer, password, err)
	}
	if err := run(ctx, issuer, ata.SecurityEraseUnit(password, enhanced, timeout)); err != nil {
		return nil, disablePassword(rc, issuer, password, err)
	}
	elapsed := time.Since(start)

	// EVALUATE
	mode := "normal"
	if enhanced {
		mode = "enhanced"
	}
	log.Info("Secure erase reported complete by firmware", zap.String("mode", mode), zap.Duration("duration", elapsed))

	return &Result{
		Label: Label,
		Verification: fmt.Sprintf("Secure Erase command (%s mode) issued to drive and completion reported by firmware. "+
			"Verification is handled by drive firmware; data destruction was not directly observed.", mode),
		Enhanced:  enhanced,
		Estimated: estimate,
		Duration:  elapsed,
	}, nil
}

func run(ctx context.Context, issuer device.CommandIssuer, cmd *ata.Command) error {
	res, err := issuer.IssueATA(ctx, cmd)
	if err != nil {
		return cw_err.Wrapf(cw_err.KindPlatformCommand, err, "%s", cmd.Name)
	}
	if err := ata.Check(cmd, res); err != nil {
		return cw_err.New(cw_err.KindPlatformCommand, err)
	}
	return nil
}

// disablePassword clears the temporary password after a rejected erase so
// the drive is not left locked at next power-on. cause is always returned.
func disablePassword(rc *cw_io.RuntimeContext, issuer device.CommandIssuer, password []byte, cause error) error {
	log := otelzap.Ctx(rc.Ctx)
	if err := run(rc.Ctx, issuer, ata.SecurityDisablePassword(password)); err != nil {
		log.Error("Failed to clear temporary security password; drive may lock at next power cycle",
			zap.Error(err))
		return cw_err.WithRemediation(cause,
			fmt.Sprintf("The drive may be locked with user password %q; clear it with SECURITY DISABLE PASSWORD", string(password)))
	}
	log.Info("Temporary security password cleared after failed erase")
	return cause
}
