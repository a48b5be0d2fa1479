// Copyright (c) 2026 The HCX Platform Authors
// SPDX-License-Identifier: BSD-2-Clause

/*
Package transport dispatches HCX envelopes to the gateway over HTTPS.

# TLS Configuration

The package recommends TLS 1.3 with fallback to TLS 1.2:

	config := transport.DefaultHTTPSConfig()
	// MinTLSVersion: TLS 1.2
	// MaxTLSVersion: TLS 1.3

For TLS 1.2, the following cipher suites are recommended:
  - TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256
  - TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256

# Dispatch

	client := transport.NewClient("https://staging-hcx.example/api", config,
	    transport.WithAuthToken(token))
	ack, err := client.Dispatch(ctx, envelope, "/v0.7/preauth/submit")

The envelope is posted as {"payload": "<compact JWE>"} exactly once. The
config timeout bounds each call. A non-2xx reply yields a [*DownstreamError]
carrying the peer status; network failures and timeouts carry status 500.
*/
package transport
