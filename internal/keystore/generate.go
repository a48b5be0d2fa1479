package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

// DefaultKeyBits is the modulus size of generated keys
const DefaultKeyBits = 2048

// Generate creates a self-signed development key pair for commonName.
// The resulting material is self-addressed.
func Generate(commonName string, bits int, validFor time.Duration) (*KeyMaterial, error) {
	if bits == 0 {
		bits = DefaultKeyBits
	}
	if validFor == 0 {
		validFor = 365 * 24 * time.Hour
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return nil, fmt.Errorf("generating serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"HCX Participant"},
			CommonName:   commonName,
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("creating certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate: %w", err)
	}

	return &KeyMaterial{
		PrivateKey:           key,
		Certificate:          cert,
		RecipientKey:         &key.PublicKey,
		RecipientCertificate: cert,
	}, nil
}

// WriteFiles writes the private key (PKCS#8) and certificate into dir using
// the base name, returning the paths written.
func WriteFiles(km *KeyMaterial, dir, name string) (Paths, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Paths{}, fmt.Errorf("creating key directory: %w", err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(km.PrivateKey)
	if err != nil {
		return Paths{}, fmt.Errorf("encoding private key: %w", err)
	}

	paths := Paths{
		PrivateKey:  filepath.Join(dir, name+".key"),
		Certificate: filepath.Join(dir, name+".crt"),
	}

	if err := writePEM(paths.PrivateKey, "PRIVATE KEY", keyDER, 0o600); err != nil {
		return Paths{}, err
	}
	if km.Certificate != nil {
		if err := writePEM(paths.Certificate, "CERTIFICATE", km.Certificate.Raw, 0o644); err != nil {
			return Paths{}, err
		}
	} else {
		paths.Certificate = ""
	}

	return paths, nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
