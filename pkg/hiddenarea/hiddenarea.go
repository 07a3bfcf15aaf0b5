// pkg/hiddenarea/hiddenarea.go
//
// Detection and removal of Host Protected Area and Device Configuration
// Overlay restrictions. Every failure here is reported in a note and never
// stops the wipe.

package hiddenarea

import (
	"context"
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/ata"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type Options struct {
	// HPAPermanent makes SET MAX ADDRESS survive power cycles.
	HPAPermanent bool
	// DCORestore allows DEVICE CONFIGURATION RESTORE when an overlay is found.
	DCORestore bool
}

type HPAResult struct {
	Removed bool
	Note    string
	// Sector addresses observed; zero when the query did not run.
	CurrentMaxLBA uint64
	NativeMaxLBA  uint64
}

type DCOResult struct {
	Detected bool
	Restored bool
	Note     string
}

// Handle runs HPA handling and then DCO handling. The overlay can reference
// the HPA-limited address space, so the order is fixed.
func Handle(rc *cw_io.RuntimeContext, dev device.Device, opts Options) (HPAResult, DCOResult) {
	hpa := HandleHPA(rc, dev, opts)
	dco := HandleDCO(rc, dev, opts)
	return hpa, dco
}

// HandleHPA restores native capacity when a Host Protected Area is present.
// Removed is true only when a fresh IDENTIFY confirms the new capacity.
func HandleHPA(rc *cw_io.RuntimeContext, dev device.Device, opts Options) HPAResult {
	log := otelzap.Ctx(rc.Ctx)
	ctx, span := telemetry.Start(rc.Ctx, "hiddenarea.hpa")
	defer span.End()

	// ASSESS
	issuer, ok := device.Issuer(dev)
	if !ok {
		return HPAResult{Note: "HPA check skipped: device has no ATA pass-through"}
	}

	id, err := identify(ctx, issuer)
	if err != nil {
		log.Warn("HPA check failed", zap.Error(err))
		return HPAResult{Note: fmt.Sprintf("HPA check failed: %v", err)}
	}
	if !id.SupportsHPA() {
		return HPAResult{Note: "HPA not supported by device"}
	}

	ext := id.Supports48Bit()
	current := id.MaxLBA()
	res, err := issue(ctx, issuer, ata.ReadNativeMax(ext))
	if err != nil {
		log.Warn("READ NATIVE MAX ADDRESS failed", zap.Error(err))
		return HPAResult{CurrentMaxLBA: current, Note: fmt.Sprintf("HPA check failed: %v", err)}
	}
	native := res.LBA
	out := HPAResult{CurrentMaxLBA: current, NativeMaxLBA: native}

	if native <= current {
		out.Note = fmt.Sprintf("No HPA present (max LBA %d)", current)
		log.Info("No HPA present", zap.Uint64("max_lba", current))
		return out
	}

	hidden := native - current
	log.Warn("HPA detected, restoring native capacity",
		zap.Uint64("current_max_lba", current),
		zap.Uint64("native_max_lba", native),
		zap.Uint64("hidden_sectors", hidden),
		zap.Bool("permanent", opts.HPAPermanent))

	// INTERVENE
	if _, err := issue(ctx, issuer, ata.SetMax(native, ext, opts.HPAPermanent)); err != nil {
		out.Note = fmt.Sprintf("HPA detected (%d hidden sectors) but removal failed: %v", hidden, err)
		log.Warn("HPA removal failed", zap.Error(err))
		return out
	}

	// EVALUATE
	after, err := identify(ctx, issuer)
	if err != nil {
		out.Note = fmt.Sprintf("HPA removal issued but re-identify failed: %v", err)
		return out
	}
	if after.MaxLBA() != native {
		out.Note = fmt.Sprintf("HPA removal issued but device still reports max LBA %d (native %d); capacity not restored",
			after.MaxLBA(), native)
		log.Warn("HPA removal not confirmed", zap.Uint64("max_lba", after.MaxLBA()))
		return out
	}

	rescan(rc, dev)

	mode := "volatile"
	if opts.HPAPermanent {
		mode = "permanent"
	}
	out.Removed = true
	out.Note = fmt.Sprintf("HPA removed (%s): max LBA %d -> %d, %d sectors restored", mode, current, native, hidden)
	log.Info("HPA removed", zap.Uint64("restored_sectors", hidden))
	return out
}

// HandleDCO reports a Device Configuration Overlay. Restore runs only when
// opts.DCORestore is set because it resets the drive's configuration.
func HandleDCO(rc *cw_io.RuntimeContext, dev device.Device, opts Options) DCOResult {
	log := otelzap.Ctx(rc.Ctx)
	ctx, span := telemetry.Start(rc.Ctx, "hiddenarea.dco")
	defer span.End()

	// ASSESS
	issuer, ok := device.Issuer(dev)
	if !ok {
		return DCOResult{Note: "DCO check skipped: device has no ATA pass-through"}
	}

	id, err := identify(ctx, issuer)
	if err != nil {
		log.Warn("DCO check failed", zap.Error(err))
		return DCOResult{Note: fmt.Sprintf("DCO check failed: %v", err)}
	}
	if !id.SupportsDCO() {
		return DCOResult{Note: "DCO not supported by device"}
	}

	res, err := issue(ctx, issuer, ata.ReadNativeMax(id.Supports48Bit()))
	if err != nil {
		return DCOResult{Note: fmt.Sprintf("DCO check failed: %v", err)}
	}
	native := res.LBA

	cmd := ata.DCOIdentify()
	if _, err := issue(ctx, issuer, cmd); err != nil {
		log.Warn("DEVICE CONFIGURATION IDENTIFY failed", zap.Error(err))
		return DCOResult{Note: fmt.Sprintf("DCO check failed: %v", err)}
	}
	dco, err := ata.ParseDCO(cmd.Data)
	if err != nil {
		return DCOResult{Note: fmt.Sprintf("DCO check failed: %v", err)}
	}

	restricted := dco.RestrictedFeatures(id)
	if dco.MaxLBA <= native && len(restricted) == 0 {
		log.Info("No DCO restriction", zap.Uint64("dco_max_lba", dco.MaxLBA))
		return DCOResult{Note: fmt.Sprintf("No DCO restriction (DCO max LBA %d)", dco.MaxLBA)}
	}

	var parts []string
	if dco.MaxLBA > native {
		parts = append(parts, fmt.Sprintf("DCO max LBA %d exceeds native max %d (%d sectors hidden)",
			dco.MaxLBA, native, dco.MaxLBA-native))
	}
	if len(restricted) > 0 {
		parts = append(parts, "feature sets hidden: "+strings.Join(restricted, ", "))
	}
	out := DCOResult{Detected: true, Note: "DCO detected: " + strings.Join(parts, "; ")}
	log.Warn("DCO detected",
		zap.Uint64("dco_max_lba", dco.MaxLBA),
		zap.Uint64("native_max_lba", native),
		zap.Strings("restricted_features", restricted))

	if !opts.DCORestore {
		out.Note += "; restore not attempted (not enabled)"
		return out
	}

	// INTERVENE
	log.Warn("Issuing DEVICE CONFIGURATION RESTORE; drive configuration will be reset to factory defaults",
		zap.String("device", dev.Path()))
	if _, err := issue(ctx, issuer, ata.DCORestore()); err != nil {
		out.Note += fmt.Sprintf("; restore failed: %v", err)
		log.Warn("DCO restore failed", zap.Error(err))
		return out
	}

	// EVALUATE
	res, err = issue(ctx, issuer, ata.ReadNativeMax(id.Supports48Bit()))
	if err != nil {
		out.Note += fmt.Sprintf("; restore issued but native max re-read failed: %v", err)
		return out
	}
	rescan(rc, dev)
	out.Restored = true
	out.Note += fmt.Sprintf("; restore succeeded, native max LBA now %d", res.LBA)
	log.Info("DCO restored", zap.Uint64("native_max_lba", res.LBA))
	return out
}

func identify(ctx context.Context, issuer device.CommandIssuer) (*ata.Identify, error) {
	cmd := ata.IdentifyDevice()
	if _, err := issue(ctx, issuer, cmd); err != nil {
		return nil, err
	}
	return ata.ParseIdentify(cmd.Data)
}

// issue folds transport failures and error status into one error.
func issue(ctx context.Context, issuer device.CommandIssuer, cmd *ata.Command) (*ata.Result, error) {
	res, err := issuer.IssueATA(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Name, err)
	}
	if err := ata.Check(cmd, res); err != nil {
		return nil, err
	}
	return res, nil
}

func rescan(rc *cw_io.RuntimeContext, dev device.Device) {
	if r, ok := dev.(device.Rescanner); ok {
		if err := r.Rescan(); err != nil {
			otelzap.Ctx(rc.Ctx).Warn("Capacity rescan failed; size may be stale until the device is re-read", zap.Error(err))
		}
	}
}
