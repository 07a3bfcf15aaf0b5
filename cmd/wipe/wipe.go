// cmd/wipe/wipe.go

package wipe

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/certificate"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/config"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_cli"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/journal"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/orchestrator"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/platform"
	cwwipe "github.com/CodeMonkeyCybersecurity/certiwipe/pkg/wipe"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// WipeCmd destroys a device and writes its signed certificate.
var WipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Wipe a device and issue a signed certificate",
	Long: `Wipe every addressable byte of a device with the chosen method, verify the
result where the method allows it and write a signed certificate.

Methods:
  ClearZeros   overwrite with zeros (NIST 800-88 Clear)
  ClearRandom  overwrite with random data (NIST 800-88 Clear)
  Purge        ATA Secure Erase (NIST 800-88 Purge)

Example:
  certiwipe wipe --drive /dev/sdb --method ClearZeros --output sdb-cert.json`,
	Args: cobra.NoArgs,
	RunE: cw_cli.Wrap(runWipe),
}

func init() {
	cw_cli.AddStringFlag(WipeCmd, config.KeyDrive, "d", "", "device path to wipe", false)
	cw_cli.AddStringFlag(WipeCmd, config.KeyMethod, "m", cwwipe.ClearZeros.String(), "wipe method", false)
	cw_cli.AddIntFlag(WipeCmd, config.KeyPasses, "p", 1, "overwrite passes (Purge always runs once)")
	cw_cli.AddStringFlag(WipeCmd, config.KeyOutput, "o", "", "certificate output file", false)
	cw_cli.AddStringFlag(WipeCmd, config.KeyKeyPath, "k", config.DefaultKeyPath, "signing key (created on first use)", false)
	cw_cli.AddFloatFlag(WipeCmd, config.KeySampleCoverage, 0, "fraction of the device read back for verification (0 uses the default)")
	cw_cli.AddFloatFlag(WipeCmd, config.KeyChiThreshold, 0, "chi-squared acceptance bound for random verification (0 uses the default)")
	cw_cli.AddBoolFlag(WipeCmd, config.KeyHPAPermanent, "", false, "make HPA removal survive power cycles")
	cw_cli.AddBoolFlag(WipeCmd, config.KeyDCORestore, "", false, "restore factory DCO settings when an overlay is found")
	cw_cli.AddBoolFlag(WipeCmd, config.KeyEnhancedErase, "", true, "prefer enhanced ATA Secure Erase when supported")
	WipeCmd.Flags().Duration(config.KeyEraseTimeout, 0, "ATA Secure Erase timeout (0 derives it from the drive estimate)")
	cw_cli.AddBoolFlag(WipeCmd, config.KeyEmitFailedCertificate, "", false, "write a signed Failed certificate when the wipe fails")
	cw_cli.AddBoolFlag(WipeCmd, config.KeyForce, "", false, "allow wiping mounted or system devices")
	cw_cli.AddBoolFlag(WipeCmd, config.KeyYes, "y", false, "skip the interactive confirmation")
}

func runWipe(rc *cw_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	log := otelzap.Ctx(rc.Ctx)

	s, err := config.Load(cmd)
	if err != nil {
		return err
	}
	if s.Drive == "" {
		return cw_err.NewUserError("no device given: pass --drive or set CERTIWIPE_DRIVE")
	}
	if s.Output == "" {
		return cw_err.NewUserError("no certificate path given: pass --output or set CERTIWIPE_OUTPUT")
	}
	method, err := cwwipe.ParseMethod(s.Method)
	if err != nil {
		return err
	}
	access, err := platform.New(s.PlatformOptions())
	if err != nil {
		return cw_err.New(cw_err.KindConfig, err)
	}

	store, err := journal.Open(s.JournalDir)
	if err != nil {
		log.Warn("Operation journal unavailable, continuing without it",
			zap.String("dir", s.JournalDir), zap.Error(err))
		store = nil
	}

	guard := cw_cli.NewInterruptGuard(rc.Ctx, "wiping "+s.Drive)
	defer guard.Stop()
	guard.RegisterCleanup(logger.Sync)

	interactive := cw_io.IsInteractive()
	cfg := orchestrator.Config{
		DrivePath:             s.Drive,
		Method:                method,
		Passes:                s.Passes,
		KeyPath:               s.KeyPath,
		Access:                access,
		Journal:               store,
		HiddenArea:            s.HiddenAreaOptions(),
		Overwrite:             s.OverwriteOptions(),
		Purge:                 s.PurgeOptions(),
		EmitFailedCertificate: s.EmitFailedCertificate,
		Force:                 s.Force,
		Yes:                   s.Yes,
		Interactive:           interactive,
	}
	if interactive {
		cfg.Confirm = cw_cli.ConfirmWipe(rc)
	}

	cert, runErr := orchestrator.Run(rc, cfg)
	if cert == nil {
		return runErr
	}
	if err := certificate.Save(cert, s.Output); err != nil {
		if runErr != nil {
			return runErr
		}
		return err
	}
	log.Info("Certificate written",
		zap.String("path", s.Output),
		zap.String("certificate_id", cert.CertificateID),
		zap.String("status", string(cert.WipeDetails.Status)))

	fmt.Fprintln(cmd.OutOrStdout(), cw_cli.RenderCertificate(cert))
	return runErr
}
