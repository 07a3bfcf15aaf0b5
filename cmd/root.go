/* cmd/root.go */

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/CodeMonkeyCybersecurity/certiwipe/cmd/cert"
	journalcmd "github.com/CodeMonkeyCybersecurity/certiwipe/cmd/journal"
	"github.com/CodeMonkeyCybersecurity/certiwipe/cmd/list"
	"github.com/CodeMonkeyCybersecurity/certiwipe/cmd/wipe"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/config"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_cli"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/journal"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/platform"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd is the base command for certiwipe.
var RootCmd = &cobra.Command{
	Use:   "certiwipe",
	Short: "Wipe storage devices and issue signed sanitization certificates",
	Long: `certiwipe destroys all data on a storage device following NIST SP 800-88
(Clear by overwrite, Purge by ATA Secure Erase) and records the result in a
certificate signed with a local ECDSA P-256 key.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if f := cmd.Flags().Lookup(config.KeyLogLevel); f != nil && f.Changed {
			_ = os.Setenv("LOG_LEVEL", f.Value.String())
			logger.InitializeWithFallback()
		}
	},
	RunE: cw_cli.Wrap(func(rc *cw_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}),
}

func init() {
	pf := RootCmd.PersistentFlags()
	pf.String(config.KeyConfig, "", "YAML config file (default "+config.DefaultConfigFile+" when present)")
	pf.String(config.KeyEnvFile, "", "dotenv file with CERTIWIPE_* settings (default "+config.DefaultEnvFile+" when present)")
	pf.String(config.KeyBackend, platform.DefaultBackend(), "device backend: linux or image")
	pf.StringSlice(config.KeyImages, nil, "regular file exposed as a disk by the image backend (repeatable)")
	pf.String(config.KeySysRoot, "", "alternate sysfs root for disk discovery")
	pf.String(config.KeyJournalDir, journal.DefaultDir, "operation journal directory")
	pf.String(config.KeyLogLevel, "info", "console log level: debug, info, warn or error")

	for _, sub := range []*cobra.Command{
		wipe.WipeCmd,
		list.ListCmd,
		cert.CertCmd,
		journalcmd.JournalCmd,
	} {
		RootCmd.AddCommand(sub)
	}
}

// Execute runs the root command and exits with the code for the error kind.
func Execute() {
	if err := telemetry.Init("certiwipe"); err != nil {
		logger.L().Warn("Telemetry disabled", zap.Error(err))
	}

	err := RootCmd.Execute()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if serr := telemetry.Shutdown(ctx); serr != nil {
		logger.L().Debug("Telemetry flush failed", zap.Error(serr))
	}
	cancel()

	code := cw_err.GetExitCode(err)
	switch {
	case err == nil:
	case cw_err.IsExpectedUserError(err):
		logger.L().Warn("Command finished with a user error", zap.Error(err))
	default:
		logger.L().Error("Command failed", zap.Error(err), zap.Int("exit_code", code))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		for _, hint := range cw_err.Hints(err) {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
	}

	if serr := logger.Sync(); serr != nil && code == cw_err.ExitOK {
		fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", serr)
	}
	os.Exit(code)
}
