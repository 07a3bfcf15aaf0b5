// cmd/list/list.go

package list

import (
	"encoding/json"
	"fmt"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/config"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_cli"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/platform"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ListCmd groups read-only inventory commands.
var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources certiwipe can act on",
	RunE: cw_cli.Wrap(func(rc *cw_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		otelzap.Ctx(rc.Ctx).Info("No subcommand provided", zap.String("command", cmd.Use))
		return cmd.Help()
	}),
}

var disksCmd = &cobra.Command{
	Use:   "disks",
	Short: "List disk devices with model, serial, size and safety flags",
	Args:  cobra.NoArgs,
	RunE:  cw_cli.Wrap(runListDisks),
}

func init() {
	cw_cli.AddBoolFlag(disksCmd, "json", "", false, "print the inventory as JSON")
	ListCmd.AddCommand(disksCmd)
}

func runListDisks(rc *cw_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	s, err := config.Load(cmd)
	if err != nil {
		return err
	}
	access, err := platform.New(s.PlatformOptions())
	if err != nil {
		return cw_err.New(cw_err.KindConfig, err)
	}
	disks, err := access.ListDisks(rc.Ctx)
	if err != nil {
		return cw_err.Wrapf(cw_err.KindPlatformCommand, err, "list disks")
	}
	otelzap.Ctx(rc.Ctx).Debug("Disk inventory", zap.Int("count", len(disks)))

	asJSON, _ := cmd.Flags().GetBool("json")
	if !asJSON {
		fmt.Fprintln(cmd.OutOrStdout(), cw_cli.RenderDisks(disks))
		return nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(disks)
}
