// Package keystore loads the RSA key material used to open and seal
// envelopes.
//
// Keys are read from PEM files once at startup and are immutable afterwards.
// The recipient key, used to seal outbound envelopes, comes from a separate
// certificate or public key file; when none is configured the node's own
// public key is used, which suits loopback and sandbox setups.
package keystore

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"time"
)

// Common errors
var (
	ErrKeyNotFound = errors.New("private key not found")
	ErrNotRSAKey   = errors.New("key is not an RSA key")
)

// KeyMaterial holds the node's private key and the recipient's public key
type KeyMaterial struct {
	PrivateKey  *rsa.PrivateKey
	Certificate *x509.Certificate

	RecipientKey         *rsa.PublicKey
	RecipientCertificate *x509.Certificate
}

// SelfAddressed reports whether outbound envelopes are sealed for our own key
func (k *KeyMaterial) SelfAddressed() bool {
	return k.RecipientKey != nil && k.PrivateKey != nil && k.RecipientKey.Equal(&k.PrivateKey.PublicKey)
}

// Info describes the node's key
func (k *KeyMaterial) Info() KeyInfo {
	info := KeyInfo{
		Algorithm: "RSA",
		KeySize:   k.PrivateKey.N.BitLen(),
	}
	if k.Certificate != nil {
		info.NotBefore = k.Certificate.NotBefore
		info.NotAfter = k.Certificate.NotAfter
		info.CertificateSubject = k.Certificate.Subject.String()
	}
	return info
}

// KeyInfo describes a key
type KeyInfo struct {
	// Algorithm is the key algorithm, always "RSA" here
	Algorithm string

	// KeySize is the modulus size in bits
	KeySize int

	// NotBefore is when the associated certificate becomes valid
	NotBefore time.Time

	// NotAfter is when the associated certificate expires
	NotAfter time.Time

	// CertificateSubject is the subject DN of the certificate
	CertificateSubject string
}
