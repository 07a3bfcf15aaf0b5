// pkg/orchestrator/run.go
//
// A wipe runs through a fixed sequence of stages. Each stage depends on the
// committed side effects of the one before it, so nothing runs in parallel
// and nothing is retried. Any failure ends the run as Failed(stage, err).

package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/certificate"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_opa"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/hiddenarea"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/overwrite"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/purge"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/telemetry"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/wipe"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type Stage string

const (
	StageInit               Stage = "Init"
	StagePrivilegeCheck     Stage = "PrivilegeCheck"
	StageDeviceDiscovery    Stage = "DeviceDiscovery"
	StageHiddenAreaHandling Stage = "HiddenAreaHandling"
	StageWipeDispatch       Stage = "WipeDispatch"
	StageCertificateBuild   Stage = "CertificateBuild"
	StageSigning            Stage = "Signing"
	StageDone               Stage = "Done"
)

// operation is the state owned by a single Run call.
type operation struct {
	rc  *cw_io.RuntimeContext
	cfg Config

	key       *certificate.SigningKey
	journalID string

	info   certificate.DeviceInfo
	target device.Info
	dev    device.Device
	size   uint64

	start time.Time
	notes []string
	hpa   hiddenarea.HPAResult
	dco   hiddenarea.DCOResult
}

// Run executes one wipe and returns the signed certificate. On failure the
// error is a *cw_err.StageError; the certificate is nil unless
// EmitFailedCertificate is set and the failure happened while wiping.
func Run(rc *cw_io.RuntimeContext, cfg Config) (*certificate.WipeCertificate, error) {
	log := otelzap.Ctx(rc.Ctx)
	op := &operation{rc: rc, cfg: cfg}

	log.Info("Starting wipe",
		zap.String("device", cfg.DrivePath),
		zap.Stringer("method", cfg.Method),
		zap.Int("passes", cfg.Passes))

	cert, err := op.run()

	status, failedStage := string(certificate.StatusSuccess), ""
	if err != nil {
		status = string(certificate.StatusFailed)
		var se *cw_err.StageError
		if errors.As(err, &se) {
			failedStage = se.Stage
		}
	}
	telemetry.RecordOutcome(rc.Ctx, cfg.Method.String(), status, failedStage)
	op.finishJournal(cert, err)

	if err != nil {
		log.Error("Wipe failed", zap.String("stage", failedStage), zap.Error(err))
		return cert, err
	}
	log.Info("Wipe complete",
		zap.String("certificate_id", cert.CertificateID),
		zap.String("status", string(cert.WipeDetails.Status)),
		zap.Float64("duration_seconds", cert.WipeDetails.DurationSeconds))
	return cert, nil
}

func (op *operation) run() (*certificate.WipeCertificate, error) {
	if err := op.stage(StageInit, cw_err.KindConfig, op.init); err != nil {
		return nil, err
	}
	if err := op.stage(StagePrivilegeCheck, cw_err.KindPermissions, op.privilegeCheck); err != nil {
		return nil, err
	}
	if err := op.stage(StageDeviceDiscovery, cw_err.KindDeviceNotFound, op.discover); err != nil {
		return nil, err
	}
	defer op.closeDevice()

	if err := op.stage(StageHiddenAreaHandling, cw_err.KindIo, op.handleHiddenAreas); err != nil {
		return nil, err
	}

	var outcome wipe.Outcome
	wipeErr := op.stage(StageWipeDispatch, cw_err.KindIo, func() error {
		var err error
		outcome, err = wipe.Run(op.rc, op.cfg.Method, op.dev, wipe.Params{
			Passes:    op.cfg.Passes,
			Size:      op.size,
			Overwrite: op.cfg.Overwrite,
			Purge:     op.cfg.Purge,
		})
		return err
	})
	if wipeErr != nil {
		if !op.cfg.EmitFailedCertificate {
			return nil, wipeErr
		}
		return op.failedCertificate(wipeErr), wipeErr
	}
	for _, n := range outcome.Notes {
		op.addNote(n)
	}
	end := op.cfg.now()

	var cert *certificate.WipeCertificate
	if err := op.stage(StageCertificateBuild, cw_err.KindSigning, func() error {
		var err error
		cert, err = certificate.Build(op.input(certificate.StatusSuccess, end, certificate.Verification{
			Method: outcome.Label,
			Result: outcome.Verification,
		}))
		return err
	}); err != nil {
		return nil, err
	}

	if err := op.stage(StageSigning, cw_err.KindSigning, func() error {
		return certificate.Sign(cert, op.key)
	}); err != nil {
		return nil, err
	}

	op.record(StageDone, cert.CertificateID)
	return cert, nil
}

// stage runs fn inside a span and tags any failure with the stage.
func (op *operation) stage(s Stage, fallback cw_err.Kind, fn func() error) error {
	ctx, span := telemetry.Start(op.rc.Ctx, "wipe."+string(s))
	defer span.End()

	otelzap.Ctx(ctx).Debug("Entering stage", zap.String("stage", string(s)))
	op.record(s, "")

	if err := fn(); err != nil {
		se := cw_err.AtStage(string(s), fallback, err)
		span.RecordError(se)
		span.SetAttributes(attribute.String("error_kind", se.Kind.String()))
		return se
	}
	return nil
}

func (op *operation) init() error {
	log := otelzap.Ctx(op.rc.Ctx)

	if err := op.cfg.Validate(); err != nil {
		return err
	}
	op.start = op.cfg.now()

	if op.cfg.Journal != nil {
		if active, err := op.cfg.Journal.ListActive(); err != nil {
			log.Warn("Could not read operation journal", zap.Error(err))
		} else {
			for _, e := range active {
				log.Warn("Found interrupted wipe in journal; the device it targeted is in an indeterminate state",
					zap.String("journal_id", e.ID),
					zap.String("device", e.Device),
					zap.String("method", e.Method),
					zap.String("last_stage", e.LastStage()),
					zap.Time("started", e.StartTime))
			}
		}

		entry, err := op.cfg.Journal.Create(op.cfg.DrivePath, op.cfg.Method.String(), op.cfg.Method.EffectivePasses(op.cfg.Passes))
		if err != nil {
			log.Warn("Could not create journal entry; continuing without journal", zap.Error(err))
		} else {
			op.journalID = entry.ID
		}
	}
	return nil
}

// privilegeCheck confirms administrator rights and then acquires the signing
// key, which usually lives in a root-owned directory. A broken key still
// fails here, before any device is opened.
func (op *operation) privilegeCheck() error {
	if !op.cfg.Access.IsAdmin() {
		return cw_err.WithRemediation(
			cw_err.Newf(cw_err.KindPermissions, "raw device access requires administrator privileges"),
			"Re-run with sudo or as root")
	}
	key, err := certificate.LoadOrCreateKey(op.rc, op.cfg.KeyPath)
	if err != nil {
		return err
	}
	op.key = key
	return nil
}

func (op *operation) discover() error {
	log := otelzap.Ctx(op.rc.Ctx)

	disks, err := op.cfg.Access.ListDisks(op.rc.Ctx)
	if err != nil {
		return cw_err.Wrapf(cw_err.KindDeviceNotFound, err, "list disks")
	}
	target, ok := device.Find(disks, op.cfg.DrivePath)
	if !ok {
		return cw_err.WithRemediation(
			cw_err.Newf(cw_err.KindDeviceNotFound, "device %s not found", op.cfg.DrivePath),
			"Run 'certiwipe list disks' to see available devices")
	}
	op.target = target
	op.info = certificate.DeviceInfo{
		Path:      target.Path,
		Model:     target.Model,
		Serial:    target.Serial,
		SizeBytes: target.SizeBytes,
	}
	log.Info("Target device discovered",
		zap.String("path", target.Path),
		zap.String("model", target.Model),
		zap.String("serial", target.Serial),
		zap.Uint64("size_bytes", target.SizeBytes),
		zap.Bool("mounted", target.Mounted),
		zap.Bool("system", target.System))

	if err := cw_opa.Enforce(op.rc.Ctx, cw_opa.WipeInput{
		Device: cw_opa.Device{
			Path:      target.Path,
			Mounted:   target.Mounted,
			System:    target.System,
			SizeBytes: target.SizeBytes,
		},
		Method:      op.cfg.Method.String(),
		Force:       op.cfg.Force,
		Yes:         op.cfg.Yes,
		Interactive: op.cfg.Interactive,
	}); err != nil {
		return err
	}

	if op.cfg.Confirm != nil && !op.cfg.Yes {
		ok, err := op.cfg.Confirm(target, op.cfg.Method)
		if err != nil {
			return cw_err.Wrapf(cw_err.KindConfig, err, "confirmation")
		}
		if !ok {
			return cw_err.NewExpectedError(cw_err.Newf(cw_err.KindConfig, "wipe of %s cancelled by operator", target.Path))
		}
	}
	return nil
}

func (op *operation) handleHiddenAreas() error {
	log := otelzap.Ctx(op.rc.Ctx)

	dev, err := op.cfg.Access.OpenDisk(op.rc.Ctx, op.target.Path, true)
	if err != nil {
		return cw_err.Wrapf(cw_err.KindIo, err, "open %s exclusively", op.target.Path)
	}
	op.dev = dev

	op.hpa, op.dco = hiddenarea.Handle(op.rc, dev, op.cfg.HiddenArea)
	op.addNote(op.hpa.Note)
	op.addNote(op.dco.Note)

	// HPA removal can grow the addressable range; never shrink below the
	// size captured at discovery.
	op.size = op.target.SizeBytes
	if size, err := dev.Size(); err == nil && size > op.size {
		op.size = size
	}
	if disks, err := op.cfg.Access.ListDisks(op.rc.Ctx); err == nil {
		if again, ok := device.Find(disks, op.target.Path); ok && again.SizeBytes > op.size {
			op.size = again.SizeBytes
		}
	} else {
		log.Warn("Rediscovery after hidden-area handling failed; using known size", zap.Error(err))
	}

	if op.size != op.target.SizeBytes {
		log.Info("Wipe size grew after hidden-area handling",
			zap.Uint64("discovered", op.target.SizeBytes),
			zap.Uint64("wipe_size", op.size))
		op.addNote(fmt.Sprintf("Wipe covered %d bytes (%d visible at discovery)", op.size, op.target.SizeBytes))
	}
	return nil
}

func (op *operation) closeDevice() {
	if op.dev == nil {
		return
	}
	if err := op.dev.Close(); err != nil {
		otelzap.Ctx(op.rc.Ctx).Warn("Failed to close device", zap.String("device", op.dev.Path()), zap.Error(err))
	}
}

func (op *operation) input(status certificate.Status, end time.Time, v certificate.Verification) certificate.Input {
	return certificate.Input{
		Device:           op.info,
		Method:           op.cfg.Method,
		ConfiguredPasses: op.cfg.Passes,
		Start:            op.start,
		End:              end,
		Status:           status,
		Notes:            op.notes,
		HPARemoved:       op.hpa.Removed,
		DCODetected:      op.dco.Detected,
		Verification:     v,
	}
}

// failedCertificate builds and signs a Failed certificate for wipeErr. A
// build or signing failure is logged and yields no certificate; wipeErr is
// still what the caller reports.
func (op *operation) failedCertificate(wipeErr error) *certificate.WipeCertificate {
	log := otelzap.Ctx(op.rc.Ctx)

	op.addNote("Wipe failed: " + wipeErr.Error())
	label := overwrite.Label
	if op.cfg.Method.IsPurge() {
		label = purge.Label
	}
	cert, err := certificate.Build(op.input(certificate.StatusFailed, op.cfg.now(), certificate.Verification{
		Method: label,
		Result: "Not verified: wipe did not complete",
	}))
	if err != nil {
		log.Error("Could not build failure certificate", zap.Error(err))
		return nil
	}
	if err := certificate.Sign(cert, op.key); err != nil {
		log.Error("Could not sign failure certificate", zap.Error(err))
		return nil
	}
	log.Warn("Issued signed certificate recording the failed wipe", zap.String("certificate_id", cert.CertificateID))
	return cert
}

func (op *operation) addNote(note string) {
	if note != "" {
		op.notes = append(op.notes, note)
	}
}

func (op *operation) record(s Stage, note string) {
	if op.cfg.Journal == nil || op.journalID == "" {
		return
	}
	if err := op.cfg.Journal.RecordStage(op.journalID, string(s), note); err != nil {
		otelzap.Ctx(op.rc.Ctx).Warn("Failed to record stage in journal", zap.String("stage", string(s)), zap.Error(err))
	}
}

func (op *operation) finishJournal(cert *certificate.WipeCertificate, err error) {
	if op.cfg.Journal == nil || op.journalID == "" {
		return
	}
	certID := ""
	if cert != nil {
		certID = cert.CertificateID
	}
	var jerr error
	if err != nil {
		jerr = op.cfg.Journal.Fail(op.journalID, err, certID)
	} else {
		jerr = op.cfg.Journal.Complete(op.journalID, certID)
	}
	if jerr != nil {
		otelzap.Ctx(op.rc.Ctx).Warn("Failed to close journal entry", zap.String("journal_id", op.journalID), zap.Error(jerr))
	}
}
