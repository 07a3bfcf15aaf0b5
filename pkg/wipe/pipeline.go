// pkg/wipe/pipeline.go
//
// Method dispatch. Each method maps to a pipeline with a uniform signature so
// the orchestrator never branches on the method itself.

package wipe

import (
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/overwrite"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/purge"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Params carries everything a pipeline may need. Pipelines ignore the
// fields that do not apply to them.
type Params struct {
	Passes    int
	Size      uint64
	Overwrite overwrite.Options
	Purge     purge.Options
}

// Outcome is what a successful pipeline reports for the certificate.
type Outcome struct {
	Label        string
	Verification string
	Passes       int
	BytesWritten uint64
	Notes        []string
}

type Pipeline func(rc *cw_io.RuntimeContext, dev device.Device, p Params) (Outcome, error)

// Registry is the method dispatch table.
var Registry = map[Method]Pipeline{
	ClearZeros:  clearPipeline(overwrite.Zeros),
	ClearRandom: clearPipeline(overwrite.Random),
	Purge:       purgePipeline,
}

// Run looks up the pipeline for m and executes it.
func Run(rc *cw_io.RuntimeContext, m Method, dev device.Device, p Params) (Outcome, error) {
	pipeline, ok := Registry[m]
	if !ok {
		return Outcome{}, cw_err.Newf(cw_err.KindConfig, "no pipeline registered for method %s", m)
	}
	otelzap.Ctx(rc.Ctx).Info("Dispatching wipe pipeline",
		zap.Stringer("method", m),
		zap.String("device", dev.Path()),
		zap.Int("passes", m.EffectivePasses(p.Passes)))
	return pipeline(rc, dev, p)
}

func clearPipeline(pattern overwrite.Pattern) Pipeline {
	return func(rc *cw_io.RuntimeContext, dev device.Device, p Params) (Outcome, error) {
		res, err := overwrite.RunClear(rc, dev, pattern, p.Passes, p.Size, p.Overwrite)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Label:        res.Label,
			Verification: res.Verification,
			Passes:       res.Passes,
			BytesWritten: res.BytesWritten,
		}, nil
	}
}

func purgePipeline(rc *cw_io.RuntimeContext, dev device.Device, p Params) (Outcome, error) {
	res, err := purge.RunPurge(rc, dev, p.Purge)
	if err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{
		Label:        res.Label,
		Verification: res.Verification,
		Passes:       1,
	}
	if p.Passes > 1 {
		outcome.Notes = append(outcome.Notes,
			"Configured pass count ignored: firmware erase is a single operation")
	}
	return outcome, nil
}
