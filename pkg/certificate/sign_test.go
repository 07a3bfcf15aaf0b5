package certificate

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"path/filepath"
	"testing"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *SigningKey {
	t.Helper()
	rc := testutil.NewTestContext(t)
	key, err := LoadOrCreateKey(rc, filepath.Join(t.TempDir(), "keys", "signing.pem"))
	require.NoError(t, err)
	return key
}

func TestSignDeterministic(t *testing.T) {
	key := testKey(t)

	a := fixture()
	require.NoError(t, Sign(a, key))
	b := fixture()
	require.NoError(t, Sign(b, key))

	assert.Len(t, a.Signature, 128)
	assert.Regexp(t, `^[0-9a-f]{128}$`, a.Signature)
	assert.Equal(t, a.Signature, b.Signature)

	// Re-signing an already signed certificate gives the same result.
	first := a.Signature
	require.NoError(t, Sign(a, key))
	assert.Equal(t, first, a.Signature)

	require.NoError(t, Verify(a, key.Public()))
}

func TestVerifyDetectsTampering(t *testing.T) {
	key := testKey(t)

	mutations := map[string]func(*WipeCertificate){
		"id":           func(c *WipeCertificate) { c.CertificateID = "00000000-0000-4000-8000-000000000002" },
		"serial":       func(c *WipeCertificate) { c.DeviceInfo.Serial = "S2" },
		"size":         func(c *WipeCertificate) { c.DeviceInfo.SizeBytes++ },
		"status":       func(c *WipeCertificate) { c.WipeDetails.Status = StatusFailed },
		"passes":       func(c *WipeCertificate) { c.WipeDetails.Passes = 7 },
		"end_time":     func(c *WipeCertificate) { c.WipeDetails.EndTime = c.WipeDetails.EndTime.Add(1) },
		"hpa_removed":  func(c *WipeCertificate) { c.WipeDetails.HPARemoved = true },
		"verification": func(c *WipeCertificate) { c.Verification.Result = "Verified all-zero!" },
		"signature": func(c *WipeCertificate) {
			b := []byte(c.Signature)
			if b[0] == '0' {
				b[0] = '1'
			} else {
				b[0] = '0'
			}
			c.Signature = string(b)
		},
		"truncated": func(c *WipeCertificate) { c.Signature = c.Signature[:126] },
		"not_hex":   func(c *WipeCertificate) { c.Signature = "zz" + c.Signature[2:] },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			cert := fixture()
			require.NoError(t, Sign(cert, key))
			mutate(cert)

			err := Verify(cert, key.Public())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSignatureMismatch)
			assert.True(t, cw_err.Is(err, cw_err.KindVerification))
		})
	}
}

func TestVerifyWrongKey(t *testing.T) {
	cert := fixture()
	require.NoError(t, Sign(cert, testKey(t)))

	other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	assert.ErrorIs(t, Verify(cert, &other.PublicKey), ErrSignatureMismatch)
}

func TestSignWithoutKey(t *testing.T) {
	err := Sign(fixture(), nil)
	assert.True(t, cw_err.Is(err, cw_err.KindSigning))
}

func TestDerToRawRejectsGarbage(t *testing.T) {
	_, err := derToRaw([]byte{0x30, 0x03, 0x02, 0x01})
	assert.Error(t, err)
	_, err = derToRaw(nil)
	assert.Error(t, err)
}
