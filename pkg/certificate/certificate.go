// pkg/certificate/certificate.go
//
// Wipe certificate model and construction.

package certificate

import (
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/wipe"
	"github.com/google/uuid"
)

type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// DeviceInfo is the device snapshot taken at discovery.
type DeviceInfo struct {
	Path      string `json:"path" yaml:"path" cbor:"path"`
	Model     string `json:"model" yaml:"model" cbor:"model"`
	Serial    string `json:"serial" yaml:"serial" cbor:"serial"`
	SizeBytes uint64 `json:"size_bytes" yaml:"size_bytes" cbor:"size_bytes"`
}

type WipeDetails struct {
	Method          string    `json:"method" yaml:"method" cbor:"method"`
	Compliance      string    `json:"compliance" yaml:"compliance" cbor:"compliance"`
	Passes          int       `json:"passes" yaml:"passes" cbor:"passes"`
	StartTime       time.Time `json:"start_time" yaml:"start_time" cbor:"start_time"`
	EndTime         time.Time `json:"end_time" yaml:"end_time" cbor:"end_time"`
	DurationSeconds float64   `json:"duration_seconds" yaml:"duration_seconds" cbor:"duration_seconds"`
	Status          Status    `json:"status" yaml:"status" cbor:"status"`
	Notes           string    `json:"notes" yaml:"notes" cbor:"notes"`
	HPARemoved      bool      `json:"hpa_removed" yaml:"hpa_removed" cbor:"hpa_removed"`
	DCODetected     bool      `json:"dco_detected" yaml:"dco_detected" cbor:"dco_detected"`
}

type Verification struct {
	Method string `json:"method" yaml:"method" cbor:"method"`
	Result string `json:"result" yaml:"result" cbor:"result"`
}

// WipeCertificate is the signed compliance record. Any change after Sign
// invalidates Signature.
type WipeCertificate struct {
	CertificateID string       `json:"certificate_id" yaml:"certificate_id" cbor:"certificate_id"`
	DeviceInfo    DeviceInfo   `json:"device_info" yaml:"device_info" cbor:"device_info"`
	WipeDetails   WipeDetails  `json:"wipe_details" yaml:"wipe_details" cbor:"wipe_details"`
	Verification  Verification `json:"verification" yaml:"verification" cbor:"verification"`
	Signature     string       `json:"signature" yaml:"signature" cbor:"signature"`
}

// Input is everything the orchestrator knows when the wipe has finished.
type Input struct {
	Device           DeviceInfo
	Method           wipe.Method
	ConfiguredPasses int
	Start            time.Time
	End              time.Time
	Status           Status
	Notes            []string
	HPARemoved       bool
	DCODetected      bool
	Verification     Verification
}

// Build assembles an unsigned certificate with a fresh random id.
func Build(in Input) (*WipeCertificate, error) {
	if !in.Method.Valid() {
		return nil, cw_err.Newf(cw_err.KindConfig, "cannot certify unknown method %d", int(in.Method))
	}
	if in.Status != StatusSuccess && in.Status != StatusFailed {
		return nil, cw_err.Newf(cw_err.KindConfig, "invalid certificate status %q", in.Status)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "generate certificate id")
	}

	start, end := in.Start.UTC(), in.End.UTC()
	duration := end.Sub(start).Seconds()
	if duration < 0 {
		duration = 0
	}

	return &WipeCertificate{
		CertificateID: id.String(),
		DeviceInfo:    in.Device,
		WipeDetails: WipeDetails{
			Method:          in.Method.String(),
			Compliance:      in.Method.Compliance(),
			Passes:          in.Method.EffectivePasses(in.ConfiguredPasses),
			StartTime:       start,
			EndTime:         end,
			DurationSeconds: duration,
			Status:          in.Status,
			Notes:           strings.Join(in.Notes, "; "),
			HPARemoved:      in.HPARemoved,
			DCODetected:     in.DCODetected,
		},
		Verification: in.Verification,
	}, nil
}
