package security

import (
	"crypto/rsa"
	"errors"
	"fmt"
)

var (
	// ErrInvalidPublicKey is returned when a public key is invalid
	ErrInvalidPublicKey = errors.New("invalid public key")
	// ErrInvalidPrivateKey is returned when a private key is invalid
	ErrInvalidPrivateKey = errors.New("invalid private key")
	// ErrWeakKey is returned when a key is cryptographically weak
	ErrWeakKey = errors.New("weak key detected")
)

// MinRSAKeyBits is the smallest modulus accepted for envelope keys
const MinRSAKeyBits = 2048

// MaxEnvelopeSize bounds the compact serialization accepted for decryption (10 MB)
const MaxEnvelopeSize = 10 * 1024 * 1024

// ValidateRSAPublicKey validates an RSA public key for RSA-OAEP-256 key transport
func ValidateRSAPublicKey(publicKey *rsa.PublicKey) error {
	if publicKey == nil || publicKey.N == nil {
		return fmt.Errorf("%w: nil public key", ErrInvalidPublicKey)
	}

	if bits := publicKey.N.BitLen(); bits < MinRSAKeyBits {
		return fmt.Errorf("%w: %d-bit modulus, need at least %d", ErrWeakKey, bits, MinRSAKeyBits)
	}

	if publicKey.E < 3 || publicKey.E%2 == 0 {
		return fmt.Errorf("%w: bad public exponent %d", ErrInvalidPublicKey, publicKey.E)
	}

	return nil
}

// ValidateRSAPrivateKey validates an RSA private key
func ValidateRSAPrivateKey(privateKey *rsa.PrivateKey) error {
	if privateKey == nil {
		return fmt.Errorf("%w: nil private key", ErrInvalidPrivateKey)
	}

	if err := privateKey.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	return ValidateRSAPublicKey(&privateKey.PublicKey)
}

// SanitizeInputSize validates input data size to prevent DoS attacks
func SanitizeInputSize(data []byte, maxSize int, dataType string) error {
	if len(data) > maxSize {
		return fmt.Errorf("input data too large: %s size %d exceeds maximum %d bytes", dataType, len(data), maxSize)
	}

	if len(data) == 0 {
		return fmt.Errorf("input data is empty: %s", dataType)
	}

	return nil
}
