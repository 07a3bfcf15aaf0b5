// pkg/overwrite/verify.go

package overwrite

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// minChiSamples keeps every expected bin count at 5 or more.
const minChiSamples = 256 * 5

type verification struct {
	summary string
	sampled uint64
	chi     float64
}

func verify(rc *cw_io.RuntimeContext, dev device.Device, pattern Pattern, size uint64, opts Options) (*verification, error) {
	log := otelzap.Ctx(rc.Ctx)
	_, span := telemetry.Start(rc.Ctx, "overwrite.verify")
	defer span.End()

	plan := opts.Sampling.Plan(size)
	log.Info("Verifying overwrite by sampling",
		zap.Int("ranges", len(plan)),
		zap.Uint64("sample_bytes", planBytes(plan)),
		zap.Stringer("pattern", pattern))

	var counts [256]uint64
	var sampled uint64
	buf := make([]byte, opts.Sampling.BlockSize)

	for _, r := range plan {
		for off, end := r.Offset, r.Offset+r.Length; off < end; {
			n := min(uint64(len(buf)), end-off)
			b := buf[:n]
			got, err := dev.ReadAt(b, int64(off))
			if uint64(got) < n {
				if err == nil {
					err = fmt.Errorf("short read: %d of %d bytes", got, n)
				}
				return nil, cw_err.Wrapf(cw_err.KindIo, err, "verification read at offset %d", off)
			}

			switch pattern {
			case Zeros:
				for i, v := range b {
					if v != 0 {
						return nil, cw_err.Newf(cw_err.KindVerification,
							"zero verification failed: byte 0x%02x at offset %d", v, off+uint64(i))
					}
				}
			case Random:
				for _, v := range b {
					counts[v]++
				}
			}
			sampled += n
			off += n
		}
	}

	coverage := 100 * float64(sampled) / float64(size)

	if pattern == Zeros {
		return &verification{
			summary: fmt.Sprintf("Verified all-zero: sampled %d bytes (%.2f%% coverage)", sampled, coverage),
			sampled: sampled,
		}, nil
	}

	if sampled < minChiSamples {
		return nil, cw_err.Newf(cw_err.KindVerification,
			"random verification needs at least %d sampled bytes, device yielded %d", minChiSamples, sampled)
	}
	chi := ChiSquared(counts)
	if chi >= opts.ChiThreshold {
		return nil, cw_err.Newf(cw_err.KindVerification,
			"random verification failed: chi-squared statistic %.2f is not below threshold %.2f (df=255, %d bytes sampled)",
			chi, opts.ChiThreshold, sampled)
	}
	return &verification{
		summary: fmt.Sprintf("Verified uniform random: chi-squared %.2f < %.2f (df=255) over %d sampled bytes (%.2f%% coverage)",
			chi, opts.ChiThreshold, sampled, coverage),
		sampled: sampled,
		chi:     chi,
	}, nil
}

// ChiSquared is Pearson's statistic of byte counts against a uniform distribution.
func ChiSquared(counts [256]uint64) float64 {
	var total uint64
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	expected := float64(total) / 256
	var chi float64
	for _, c := range counts {
		d := float64(c) - expected
		chi += d * d / expected
	}
	return chi
}
