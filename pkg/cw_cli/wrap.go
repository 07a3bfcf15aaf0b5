// pkg/cw_cli/wrap.go

package cw_cli

import (
	"context"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Wrap gives every command a RuntimeContext with panic recovery, a span,
// lifecycle logging and stack-annotated errors.
func Wrap(fn func(rc *cw_io.RuntimeContext, cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		rc := cw_io.NewContext(context.Background(), cmd.CommandPath())
		defer rc.End(&err)
		defer rc.HandlePanic(&err)

		cw_io.LogRuntimeExecutionContext(rc)
		rc.Log.Debug("Command invoked", zap.Strings("args", args))

		err = fn(rc, cmd, args)
		if err != nil && !cw_err.IsExpectedUserError(err) {
			err = cerr.WithStack(err)
		}
		return err
	}
}
