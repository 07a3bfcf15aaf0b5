// pkg/certificate/export.go
//
// Persisted and exported forms. The JSON file is the record of truth; YAML
// and CBOR are conversions for downstream systems and carry the same fields.

package certificate

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML, FormatCBOR:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", cw_err.NewUserError("unknown export format %q (want json, yaml or cbor)", s)
}

var cborMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	mode, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// Encode renders cert in the requested format.
func Encode(cert *WipeCertificate, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		out, err := json.MarshalIndent(cert, "", "  ")
		if err != nil {
			return nil, cw_err.Wrapf(cw_err.KindIo, err, "encode certificate as json")
		}
		return append(out, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cert); err != nil {
			return nil, cw_err.Wrapf(cw_err.KindIo, err, "encode certificate as yaml")
		}
		if err := enc.Close(); err != nil {
			return nil, cw_err.Wrapf(cw_err.KindIo, err, "encode certificate as yaml")
		}
		return buf.Bytes(), nil
	case FormatCBOR:
		out, err := cborMode.Marshal(cert)
		if err != nil {
			return nil, cw_err.Wrapf(cw_err.KindIo, err, "encode certificate as cbor")
		}
		return out, nil
	}
	return nil, cw_err.Newf(cw_err.KindConfig, "unsupported format %q", f)
}

// Decode parses a certificate previously produced by Encode.
func Decode(data []byte, f Format) (*WipeCertificate, error) {
	var cert WipeCertificate
	var err error
	switch f {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cert)
	case FormatYAML:
		err = yaml.Unmarshal(data, &cert)
	case FormatCBOR:
		err = cbor.Unmarshal(data, &cert)
	default:
		return nil, cw_err.Newf(cw_err.KindConfig, "unsupported format %q", f)
	}
	if err != nil {
		return nil, cw_err.Wrapf(cw_err.KindIo, err, "decode %s certificate", f)
	}
	return &cert, nil
}

// Save writes the indented JSON form of cert to path.
func Save(cert *WipeCertificate, path string) error {
	data, err := Encode(cert, FormatJSON)
	if err != nil {
		return err
	}
	if err := cw_io.WriteFileAtomic(path, data, 0o644); err != nil {
		return cw_err.Wrapf(cw_err.KindIo, err, "write certificate %s", path)
	}
	return nil
}

// Load reads a JSON certificate from path.
func Load(path string) (*WipeCertificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cw_err.Wrapf(cw_err.KindIo, err, "read certificate %s", path)
	}
	return Decode(data, FormatJSON)
}
