// cmd/journal/journal.go

package journal

import (
	"fmt"
	"time"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/config"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_cli"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/journal"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// JournalCmd inspects the operation journal.
var JournalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect and prune the wipe operation journal",
	RunE: cw_cli.Wrap(func(rc *cw_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}),
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show interrupted operations and, with --all, finished ones",
	Args:  cobra.NoArgs,
	RunE:  cw_cli.Wrap(runList),
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete archived entries older than --max-age",
	Args:  cobra.NoArgs,
	RunE:  cw_cli.Wrap(runCleanup),
}

func init() {
	cw_cli.AddBoolFlag(listCmd, "all", "a", false, "include archived entries")
	cleanupCmd.Flags().Duration("max-age", 90*24*time.Hour, "minimum age of archived entries to delete")
	JournalCmd.AddCommand(listCmd, cleanupCmd)
}

func open(cmd *cobra.Command) (*journal.Storage, error) {
	s, err := config.Load(cmd)
	if err != nil {
		return nil, err
	}
	return journal.Open(s.JournalDir)
}

func runList(rc *cw_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	store, err := open(cmd)
	if err != nil {
		return err
	}
	active, err := store.ListActive()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cw_cli.RenderJournal("Interrupted operations", active))
	if len(active) > 0 {
		otelzap.Ctx(rc.Ctx).Warn("Interrupted wipe operations found; affected devices must be wiped again",
			zap.Int("count", len(active)))
	}

	if all, _ := cmd.Flags().GetBool("all"); all {
		archived, err := store.ListArchived()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cw_cli.RenderJournal("Finished operations", archived))
	}
	return nil
}

func runCleanup(rc *cw_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	store, err := open(cmd)
	if err != nil {
		return err
	}
	maxAge, _ := cmd.Flags().GetDuration("max-age")
	n, err := store.Cleanup(maxAge)
	otelzap.Ctx(rc.Ctx).Info("Journal cleanup finished",
		zap.Int("removed", n), zap.Duration("max_age", maxAge))
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d archived entries\n", n)
	return err
}
