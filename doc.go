// Copyright (c) 2026 The HCX Platform Authors
// SPDX-License-Identifier: BSD-2-Clause

/*
Package hcxplatform implements a participant node for the Health Claims
Exchange (HCX) protocol: asynchronous, end-to-end encrypted exchange of
pre-authorization claims between providers and payers through an HCX
gateway.

# Overview

A node plays two roles. As a sender it composes a claim from a template,
seals it in a JWE envelope addressed to the recipient and posts it to the
gateway. As a receiver it accepts the gateway's callbacks, opens any
envelope they carry and fans the resulting document out to connected
subscribers.

# Specifications Implemented

  - HCX protocol v0.7 exchange headers and on_submit callbacks
  - JSON Web Encryption (RFC 7516), compact serialization
  - RSA-OAEP-256 key management with A256GCM content encryption (RFC 7518)

# Package Structure

	github.com/shiva-rakshith/hcx-platform/pkg/claim       - Claim templates and composition
	github.com/shiva-rakshith/hcx-platform/pkg/protocol    - Exchange headers and HCX operations
	github.com/shiva-rakshith/hcx-platform/pkg/security    - Envelope encryption and key validation
	github.com/shiva-rakshith/hcx-platform/pkg/transport   - HTTPS dispatch to the gateway
	github.com/shiva-rakshith/hcx-platform/pkg/reliability - Submission tracking and duplicate detection
	github.com/shiva-rakshith/hcx-platform/pkg/broadcast   - Subscriber fan-out and Redis relay

The node itself lives under internal/ (configuration, key material,
exchange workflows, HTTP server, metrics) and is started by cmd/hcx-node.

# Quick Start

Generate a development key pair and run a node against a gateway:

	hcx-node keygen --dir ./keys --name hosp
	export HCX_PROTOCOL_BASE_PATH=https://staging-hcx.swasth.app/api
	export HCX_PRIVATE_KEY_FILE=./keys/hosp.key
	export SENDER_CODE=hosp-01 api_version=v0.7
	hcx-node serve

Submit a claim:

	curl -X POST localhost:8080/preauth/submit \
	  -d '{"name":"Asha","gender":"female","amount":500,"recipient_code":"payer-01"}'

Callbacks arrive on /v0.7/preauth/on_submit and are streamed to
subscribers on /events (Server-Sent Events) and /ws (WebSocket).

# Using the Libraries

	headers, err := protocol.BuildHeaders(protocol.HeaderInput{
		RecipientCode: "payer-01",
		SenderCode:    "hosp-01",
	})
	if err != nil {
		return err
	}
	doc := claim.Compose(claim.DefaultTemplate(), claim.Fields{Name: "Asha"})
	payload, _ := json.Marshal(doc)
	env, err := security.Encrypt(headers, payload, recipientKey)
*/
package hcxplatform
