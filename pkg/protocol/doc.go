// Copyright (c) 2026 The HCX Platform Authors
// SPDX-License-Identifier: BSD-2-Clause

/*
Package protocol defines the HCX exchange headers and pre-authorization
operations.

Every envelope carries a fixed set of protocol headers identifying the
parties, the request and the workflow it belongs to. [HeaderBuilder]
produces a fresh set per submission:

	b := protocol.NewHeaderBuilder(protocol.WithDefaultSender("hosp-1"))
	headers, err := b.Build(protocol.HeaderInput{RecipientCode: "payer-1"})

The recipient code is mandatory; a missing one yields
[ErrRecipientCodeRequired]. Request, correlation, workflow and API call
identifiers are new UUIDs on every call unless the caller supplies the
correlation or workflow identifier.

Supplying an error code adds the sandbox simulated-error headers
(x-hcx-status_test and x-hcx-error_details_test) so the gateway answers
with that error.

Operations map to versioned gateway paths:

	protocol.OpPreauthSubmit.Path("v0.7") // "/v0.7/preauth/submit"
*/
package protocol
