// pkg/certificate/sign.go

package certificate

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"math/big"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	cerr "github.com/cockroachdb/errors"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// SignatureSize is the length of the raw r‖s signature in bytes.
const SignatureSize = 64

var ErrSignatureMismatch = cerr.New("certificate signature does not match its contents")

// Sign sets cert.Signature to the hex-encoded P-256 signature over the
// canonical payload. Signing is deterministic (RFC 6979), so the same
// certificate and key always produce the same signature.
func Sign(cert *WipeCertificate, key *SigningKey) error {
	if key == nil || key.priv == nil {
		return cw_err.Newf(cw_err.KindSigning, "no signing key loaded")
	}

	cert.Signature = ""
	payload, err := CanonicalPayload(cert)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(payload)

	// A nil random source selects RFC 6979 deterministic nonces.
	der, err := key.priv.Sign(nil, digest[:], crypto.SHA256)
	if err != nil {
		return cw_err.Wrapf(cw_err.KindSigning, err, "sign certificate %s", cert.CertificateID)
	}
	raw, err := derToRaw(der)
	if err != nil {
		return cw_err.Wrapf(cw_err.KindSigning, err, "encode signature")
	}

	cert.Signature = hex.EncodeToString(raw)
	return nil
}

// Verify checks cert.Signature against pub. It never modifies cert.
func Verify(cert *WipeCertificate, pub *ecdsa.PublicKey) error {
	if pub == nil {
		return cw_err.Newf(cw_err.KindSigning, "no public key supplied")
	}
	raw, err := hex.DecodeString(cert.Signature)
	if err != nil || len(raw) != SignatureSize {
		return cw_err.New(cw_err.KindVerification,
			cerr.Wrapf(ErrSignatureMismatch, "malformed signature (%d hex chars)", len(cert.Signature)))
	}

	payload, err := CanonicalPayload(cert)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(payload)

	r := new(big.Int).SetBytes(raw[:SignatureSize/2])
	s := new(big.Int).SetBytes(raw[SignatureSize/2:])
	if !ecdsa.Verify(pub, digest[:], r, s) {
		return cw_err.New(cw_err.KindVerification, ErrSignatureMismatch)
	}
	return nil
}

// derToRaw converts an ASN.1 ECDSA-Sig-Value into fixed-width r‖s.
func derToRaw(der []byte) ([]byte, error) {
	var (
		r, s  big.Int
		inner cryptobyte.String
	)
	input := cryptobyte.String(der)
	if !input.ReadASN1(&inner, cbasn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(&r) ||
		!inner.ReadASN1Integer(&s) ||
		!inner.Empty() {
		return nil, cerr.New("invalid ASN.1 signature")
	}
	if r.Sign() <= 0 || s.Sign() <= 0 || r.BitLen() > 256 || s.BitLen() > 256 {
		return nil, cerr.New("signature component out of range")
	}

	out := make([]byte, SignatureSize)
	r.FillBytes(out[:SignatureSize/2])
	s.FillBytes(out[SignatureSize/2:])
	return out, nil
}
