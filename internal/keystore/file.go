package keystore

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/shiva-rakshith/hcx-platform/pkg/security"
)

// Paths locates the PEM files making up the key material
type Paths struct {
	// PrivateKey is the node's RSA private key (PKCS#1 or PKCS#8)
	PrivateKey string

	// Certificate is the node's own certificate, optional
	Certificate string

	// Recipient is the peer's certificate or public key, optional
	Recipient string

	// TrustedCAs is a PEM bundle the recipient certificate must chain to,
	// optional
	TrustedCAs string
}

// LoadFiles reads and validates the key material
func LoadFiles(paths Paths) (*KeyMaterial, error) {
	if paths.PrivateKey == "" {
		return nil, ErrKeyNotFound
	}

	keyPEM, err := os.ReadFile(paths.PrivateKey)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, paths.PrivateKey)
		}
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	key, err := parsePrivateKey(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	if err := security.ValidateRSAPrivateKey(key); err != nil {
		return nil, err
	}

	km := &KeyMaterial{PrivateKey: key, RecipientKey: &key.PublicKey}

	if paths.Certificate != "" {
		cert, err := loadCertificate(paths.Certificate)
		if err != nil {
			return nil, fmt.Errorf("loading certificate: %w", err)
		}
		km.Certificate = cert
	}

	if paths.Recipient != "" {
		pub, cert, err := loadRecipient(paths.Recipient)
		if err != nil {
			return nil, fmt.Errorf("loading recipient key: %w", err)
		}
		if err := security.ValidateRSAPublicKey(pub); err != nil {
			return nil, fmt.Errorf("recipient key: %w", err)
		}
		if cert != nil {
			roots, err := loadCertPool(paths.TrustedCAs)
			if err != nil {
				return nil, fmt.Errorf("loading trusted CAs: %w", err)
			}
			if err := security.NewDefaultCertificateValidator(roots).ValidateCertificate(cert, nil); err != nil {
				return nil, fmt.Errorf("recipient certificate: %w", err)
			}
		}
		km.RecipientKey = pub
		km.RecipientCertificate = cert
	}

	return km, nil
}

func parsePrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, ErrNotRSAKey
		}
		return rsaKey, nil
	case "EC PRIVATE KEY":
		return nil, ErrNotRSAKey
	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
}

func loadCertificate(path string) (*x509.Certificate, error) {
	certPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading certificate file: %w", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
	}

	return x509.ParseCertificate(block.Bytes)
}

// loadRecipient accepts a certificate or a bare public key
func loadRecipient(path string) (*rsa.PublicKey, *x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading recipient file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, nil, fmt.Errorf("no PEM block found")
	}

	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, nil, err
		}
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, nil, ErrNotRSAKey
		}
		return pub, cert, nil
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, nil, err
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, nil, ErrNotRSAKey
		}
		return pub, nil, nil
	case "RSA PUBLIC KEY":
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		return pub, nil, err
	default:
		return nil, nil, fmt.Errorf("unsupported recipient PEM block: %s", block.Type)
	}
}

func loadCertPool(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates in %s", path)
	}
	return pool, nil
}
