// pkg/certificate/keystore.go
//
// Signing key persistence. The key is an ECDSA P-256 private key stored as
// an owner-only SEC1 PEM file.

package certificate

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/awnumar/memguard"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	pemTypeSEC1   = "EC PRIVATE KEY"
	pemTypePKCS8  = "PRIVATE KEY"
	pemTypePublic = "PUBLIC KEY"

	keyDirPerm  = 0o700
	keyFilePerm = 0o600
)

// SigningKey is the private key used for one operation.
type SigningKey struct {
	priv *ecdsa.PrivateKey
	path string
}

func (k *SigningKey) Public() *ecdsa.PublicKey {
	return &k.priv.PublicKey
}

func (k *SigningKey) Path() string {
	return k.path
}

// LoadOrCreateKey loads the key at path, or generates and persists a new one
// when no file exists. There is no unsigned fallback: every failure is a
// Signing error.
func LoadOrCreateKey(rc *cw_io.RuntimeContext, path string) (*SigningKey, error) {
	log := otelzap.Ctx(rc.Ctx)
	if path == "" {
		return nil, cw_err.Newf(cw_err.KindSigning, "signing key path is empty")
	}

	key, err := loadKey(path)
	if err == nil {
		if info, statErr := os.Stat(path); statErr == nil && info.Mode().Perm()&0o077 != 0 {
			log.Warn("Signing key file is readable by other users",
				zap.String("path", path), zap.String("mode", info.Mode().Perm().String()))
		}
		log.Info("Loaded signing key", zap.String("path", path))
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	log.Info("No signing key found, generating a new P-256 key", zap.String("path", path))
	key, err = createKey(path)
	if errors.Is(err, fs.ErrExist) {
		// Another process created it between our read and create.
		return loadKey(path)
	}
	return key, err
}

func loadKey(path string) (*SigningKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "read signing key %s", path)
	}
	defer memguard.WipeBytes(data)

	priv, err := ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "parse signing key %s", path)
	}
	return &SigningKey{priv: priv, path: path}, nil
}

// ParsePrivateKeyPEM accepts SEC1 and PKCS#8 encodings of a P-256 key.
func ParsePrivateKeyPEM(data []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, cw_err.Newf(cw_err.KindSigning, "no PEM block found")
	}
	defer memguard.WipeBytes(block.Bytes)

	var priv *ecdsa.PrivateKey
	switch block.Type {
	case pemTypeSEC1:
		k, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, cw_err.Wrapf(cw_err.KindSigning, err, "decode SEC1 key")
		}
		priv = k
	case pemTypePKCS8:
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, cw_err.Wrapf(cw_err.KindSigning, err, "decode PKCS#8 key")
		}
		ec, ok := k.(*ecdsa.PrivateKey)
		if !ok {
			return nil, cw_err.Newf(cw_err.KindSigning, "PKCS#8 key is %T, want ECDSA", k)
		}
		priv = ec
	default:
		return nil, cw_err.Newf(cw_err.KindSigning, "unsupported PEM block %q", block.Type)
	}

	if priv.Curve != elliptic.P256() {
		return nil, cw_err.Newf(cw_err.KindSigning, "signing key uses %s, want P-256", priv.Curve.Params().Name)
	}
	return priv, nil
}

func createKey(path string) (*SigningKey, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "generate signing key")
	}
	der, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "encode signing key")
	}
	defer memguard.WipeBytes(der)

	encoded := pem.EncodeToMemory(&pem.Block{Type: pemTypeSEC1, Bytes: der})
	defer memguard.WipeBytes(encoded)

	if err := os.MkdirAll(filepath.Dir(path), keyDirPerm); err != nil {
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "create key directory")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, keyFilePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "create signing key %s", path)
	}
	if _, err := f.Write(encoded); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "write signing key %s", path)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "sync signing key %s", path)
	}
	if err := f.Close(); err != nil {
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "close signing key %s", path)
	}
	return &SigningKey{priv: priv, path: path}, nil
}

// PublicKeyPEM encodes pub as a PKIX "PUBLIC KEY" block for verifiers.
func PublicKeyPEM(pub *ecdsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "encode public key")
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePublic, Bytes: der}), nil
}

// LoadPublicKey reads a verifier key from path. Both public key files and
// private key files are accepted; only the public half is returned.
func LoadPublicKey(path string) (*ecdsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "read key %s", path)
	}
	defer memguard.WipeBytes(data)

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, cw_err.Newf(cw_err.KindSigning, "no PEM block in %s", path)
	}
	if block.Type != pemTypePublic {
		priv, err := ParsePrivateKeyPEM(data)
		if err != nil {
			return nil, err
		}
		return &priv.PublicKey, nil
	}

	k, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, cw_err.Wrapf(cw_err.KindSigning, err, "decode public key %s", path)
	}
	pub, ok := k.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return nil, cw_err.Newf(cw_err.KindSigning, "%s is not a P-256 public key", path)
	}
	return pub, nil
}
