package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v4"

	"github.com/shiva-rakshith/hcx-platform/pkg/protocol"
)

// Envelope is a JWE compact serialization: five base64url segments joined
// by dots. The exchange headers travel in the protected header.
type Envelope string

// String returns the compact serialization
func (e Envelope) String() string {
	return string(e)
}

var (
	keyAlgorithms      = []jose.KeyAlgorithm{jose.RSA_OAEP_256}
	contentEncryptions = []jose.ContentEncryption{jose.A256GCM}
)

// Encryptor seals payloads for a single recipient using RSA-OAEP-256 key
// transport and A256GCM content encryption.
type Encryptor struct {
	recipient *rsa.PublicKey
}

// NewEncryptor creates an encryptor for the recipient public key
func NewEncryptor(recipient *rsa.PublicKey) (*Encryptor, error) {
	if err := ValidateRSAPublicKey(recipient); err != nil {
		return nil, err
	}
	return &Encryptor{recipient: recipient}, nil
}

// NewEncryptorFromCertificate creates an encryptor for the RSA key in a certificate
func NewEncryptorFromCertificate(cert *x509.Certificate) (*Encryptor, error) {
	if cert == nil {
		return nil, fmt.Errorf("%w: nil certificate", ErrInvalidPublicKey)
	}
	publicKey, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: certificate does not contain RSA public key", ErrInvalidPublicKey)
	}
	return NewEncryptor(publicKey)
}

// Encrypt seals payload with headers carried in the protected header.
// alg and enc are always RSA-OAEP-256 and A256GCM regardless of the values
// in headers.
func (e *Encryptor) Encrypt(headers *protocol.ExchangeHeaders, payload []byte) (Envelope, error) {
	if headers == nil {
		return "", fmt.Errorf("exchange headers are required")
	}

	opts := &jose.EncrypterOptions{}
	for _, f := range headers.Fields() {
		if f.Name == protocol.HeaderAlgorithm || f.Name == protocol.HeaderEncryption {
			continue
		}
		opts = opts.WithHeader(jose.HeaderKey(f.Name), f.Value)
	}

	encrypter, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.RSA_OAEP_256, Key: e.recipient},
		opts,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create encrypter: %w", err)
	}

	obj, err := encrypter.Encrypt(payload)
	if err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}

	compact, err := obj.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize envelope: %w", err)
	}

	return Envelope(compact), nil
}

// Decryptor opens envelopes sealed for its private key
type Decryptor struct {
	privateKey *rsa.PrivateKey
}

// NewDecryptor creates a decryptor for the given private key
func NewDecryptor(privateKey *rsa.PrivateKey) (*Decryptor, error) {
	if err := ValidateRSAPrivateKey(privateKey); err != nil {
		return nil, err
	}
	return &Decryptor{privateKey: privateKey}, nil
}

// Decrypt returns the plaintext of env. Any failure is a *DecryptionError.
func (d *Decryptor) Decrypt(env Envelope) ([]byte, error) {
	_, payload, err := d.Open(env)
	return payload, err
}

// Open decrypts env and returns its exchange headers along with the plaintext
func (d *Decryptor) Open(env Envelope) (*protocol.ExchangeHeaders, []byte, error) {
	if err := SanitizeInputSize([]byte(env), MaxEnvelopeSize, "envelope"); err != nil {
		return nil, nil, decryptionError(fmt.Errorf("%w: %v", ErrMalformedEnvelope, err))
	}

	obj, err := jose.ParseEncryptedCompact(string(env), keyAlgorithms, contentEncryptions)
	if err != nil {
		return nil, nil, decryptionError(fmt.Errorf("%w: %v", ErrMalformedEnvelope, err))
	}

	payload, err := obj.Decrypt(d.privateKey)
	if err != nil {
		return nil, nil, decryptionError(err)
	}

	headers, err := PeekHeaders(env)
	if err != nil {
		return nil, nil, decryptionError(err)
	}

	return headers, payload, nil
}

// PeekHeaders decodes the protected header of env without decrypting it.
// The result is unauthenticated until the envelope has been decrypted.
func PeekHeaders(env Envelope) (*protocol.ExchangeHeaders, error) {
	segments := strings.Split(string(env), ".")
	if len(segments) != 5 {
		return nil, fmt.Errorf("%w: expected 5 segments, got %d", ErrMalformedEnvelope, len(segments))
	}

	raw, err := base64.RawURLEncoding.DecodeString(segments[0])
	if err != nil {
		return nil, fmt.Errorf("%w: protected header: %v", ErrMalformedEnvelope, err)
	}

	var headers protocol.ExchangeHeaders
	if err := headers.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("%w: protected header: %v", ErrMalformedEnvelope, err)
	}
	return &headers, nil
}

// Encrypt seals payload for recipient
func Encrypt(headers *protocol.ExchangeHeaders, payload []byte, recipient *rsa.PublicKey) (Envelope, error) {
	e, err := NewEncryptor(recipient)
	if err != nil {
		return "", err
	}
	return e.Encrypt(headers, payload)
}

// Decrypt opens env with privateKey
func Decrypt(privateKey *rsa.PrivateKey, env Envelope) ([]byte, error) {
	d, err := NewDecryptor(privateKey)
	if err != nil {
		return nil, err
	}
	return d.Decrypt(env)
}

// DecryptWithHeaders opens env with privateKey and returns its headers too
func DecryptWithHeaders(privateKey *rsa.PrivateKey, env Envelope) (*protocol.ExchangeHeaders, []byte, error) {
	d, err := NewDecryptor(privateKey)
	if err != nil {
		return nil, nil, err
	}
	return d.Open(env)
}
