// pkg/cw_cli/confirm.go

package cw_cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/wipe"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ConfirmWipe returns a confirmation callback that shows the target and
// requires the operator to type the device path back.
func ConfirmWipe(rc *cw_io.RuntimeContext) func(info device.Info, m wipe.Method) (bool, error) {
	return func(info device.Info, m wipe.Method) (bool, error) {
		fmt.Fprintln(os.Stderr, RenderTarget(info, m))

		answer, err := cw_io.PromptInput(rc,
			fmt.Sprintf("Type %s to destroy all data on it: ", info.Path), "confirmation")
		if err != nil {
			return false, err
		}
		ok := strings.TrimSpace(answer) == info.Path
		otelzap.Ctx(rc.Ctx).Info("Operator confirmation",
			zap.String("device", info.Path), zap.Bool("confirmed", ok))
		return ok, nil
	}
}
