// Copyright (c) 2026 The HCX Platform Authors
// SPDX-License-Identifier: BSD-2-Clause

// Package exchange implements the two message flows of an HCX participant
// node.
//
// A [Submitter] turns a caller request into a pre-authorization claim,
// wraps it in an encrypted envelope addressed to the recipient and
// dispatches it to the gateway once:
//
//	compose -> build headers -> encrypt -> dispatch -> {request, acknowledgement}
//
// A [CallbackHandler] accepts the gateway's asynchronous callbacks. Bodies
// that carry a payload envelope are decrypted and parsed; anything else is
// passed through unchanged. The resulting document is published to
// subscribers under the "acknowledgement" event.
//
// Both flows record their progress in a [reliability.Tracker] when one is
// configured so callbacks can be correlated with earlier submissions.
package exchange
