// pkg/certificate/canonical.go

package certificate

import (
	"bytes"
	"encoding/json"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
)

// CanonicalPayload is the exact byte string that is signed: the certificate
// with an empty signature, as compact JSON with every object's keys sorted,
// no HTML escaping, and numbers reproduced as written.
func CanonicalPayload(cert *WipeCertificate) ([]byte, error) {
	unsigned := *cert
	unsigned.Signature = ""

	raw, err := encode(unsigned)
	if err != nil {
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "serialize certificate")
	}

	// Round-trip through generic values: encoding/json writes map keys in
	// sorted order at every depth, and UseNumber keeps numeric text intact.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "canonicalize certificate")
	}

	out, err := encode(generic)
	if err != nil {
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "canonicalize certificate")
	}
	return out, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
