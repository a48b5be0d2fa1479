package security

import "errors"

// ErrMalformedEnvelope is returned when an envelope is not a valid JWE
// compact serialization
var ErrMalformedEnvelope = errors.New("malformed envelope")

// DecryptionError reports an envelope that could not be opened, either
// because it is malformed or because it was not sealed for our key.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	return "envelope decryption failed: " + e.Err.Error()
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

func decryptionError(err error) error {
	return &DecryptionError{Err: err}
}
