// Copyright (c) 2026 The HCX Platform Authors
// SPDX-License-Identifier: BSD-2-Clause

/*
Package reliability tracks outbound submissions and correlates callbacks.

# Submission States

Every submission moves through a fixed sequence of states:

	COMPOSED -> HEADERS_BUILT -> ENCRYPTED -> DISPATCHED -> ACKNOWLEDGED
	                                                     \-> FAILED

FAILED may be entered from any non-terminal state. Skipping a state is an
[ErrInvalidTransition].

	tracker := reliability.NewTracker(time.Hour, 24*time.Hour)
	defer tracker.Stop()

	tracker.Track(correlationID, workflowID, recipientCode)
	tracker.Advance(correlationID, reliability.StateHeadersBuilt)

# Callback Correlation

Callbacks are matched by correlation id and checked for duplicates by api
call id:

	match := tracker.RecordCallback(correlationID, apiCallID)
	if match.Duplicate {
	    // already seen within the duplicate window
	}

Nothing is ever rejected here. Unknown correlations and duplicates are
reported so the caller can log and count them.

Entries are evicted by a background janitor once they are older than the
configured TTL or duplicate window.
*/
package reliability
