// Copyright (c) 2026 The HCX Platform Authors
// SPDX-License-Identifier: BSD-2-Clause

/*
Package security implements the HCX envelope codec.

An envelope is a JWE compact serialization (RFC 7516). The content key is
transported with RSA-OAEP-256 and the payload is sealed with A256GCM. The
exchange headers from package protocol travel in the JWE protected header,
so they are integrity protected but readable by intermediaries such as the
HCX gateway.

# Encryption

	enc, err := security.NewEncryptor(recipientPublicKey)
	env, err := enc.Encrypt(headers, payload)

A fresh content key and IV are drawn for every envelope, so encrypting the
same payload twice yields different envelopes.

# Decryption

	dec, err := security.NewDecryptor(privateKey)
	headers, payload, err := dec.Open(env)

Every decryption failure is reported as a [*DecryptionError]. Malformed input
additionally matches [ErrMalformedEnvelope] with errors.Is.

Keys shorter than 2048 bits are rejected with [ErrWeakKey].

# Recipient Certificates

[DefaultCertificateValidator] checks a recipient certificate before its key
is used for sealing: the validity window, the key type and size, the key
encipherment usage and, when a root pool is configured, the chain.
*/
package security
