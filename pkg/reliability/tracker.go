package reliability

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SubmissionState represents the state of an outbound submission
type SubmissionState int

const (
	StateComposed     SubmissionState = iota // Claim document composed
	StateHeadersBuilt                        // Exchange headers built
	StateEncrypted                           // Envelope sealed
	StateDispatched                          // Envelope posted to the gateway
	StateAcknowledged                        // Gateway acknowledged synchronously
	StateFailed                              // Submission failed
)

func (s SubmissionState) String() string {
	switch s {
	case StateComposed:
		return "COMPOSED"
	case StateHeadersBuilt:
		return "HEADERS_BUILT"
	case StateEncrypted:
		return "ENCRYPTED"
	case StateDispatched:
		return "DISPATCHED"
	case StateAcknowledged:
		return "ACKNOWLEDGED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("SubmissionState(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are allowed
func (s SubmissionState) Terminal() bool {
	return s == StateAcknowledged || s == StateFailed
}

var (
	// ErrNotTracked is returned for an unknown correlation id
	ErrNotTracked = errors.New("submission not tracked")
	// ErrInvalidTransition is returned when a state change skips or reverses a step
	ErrInvalidTransition = errors.New("invalid state transition")
)

// TrackedSubmission is a snapshot of a tracked submission
type TrackedSubmission struct {
	CorrelationID  string
	WorkflowID     string
	RecipientCode  string
	APICallID      string
	State          SubmissionState
	SubmittedAt    time.Time
	UpdatedAt      time.Time
	Callbacks      int
	LastCallbackAt time.Time
	Errors         []string
}

// CallbackMatch describes how an inbound callback relates to tracked state
type CallbackMatch struct {
	// Known is true when the correlation id belongs to a tracked submission
	Known bool
	// Duplicate is true when the callback id was already seen within the window
	Duplicate bool
	// Submission is the matched submission after recording the callback
	Submission TrackedSubmission
}

// Tracker correlates outbound submissions with inbound callbacks and detects
// duplicate callbacks. It never rejects anything; callers decide what to do
// with the result.
type Tracker struct {
	mu          sync.RWMutex
	submissions map[string]*TrackedSubmission

	// Duplicate detection
	receivedCallbacks map[string]time.Time
	duplicateWindow   time.Duration

	ttl      time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewTracker creates a tracker that forgets submissions after ttl and
// callback ids after duplicateWindow. A background janitor runs until Stop.
func NewTracker(ttl, duplicateWindow time.Duration) *Tracker {
	t := newTracker(ttl, duplicateWindow, time.Now)
	go t.cleanupLoop(cleanupInterval(ttl, duplicateWindow))
	return t
}

func newTracker(ttl, duplicateWindow time.Duration, now func() time.Time) *Tracker {
	return &Tracker{
		submissions:       make(map[string]*TrackedSubmission),
		receivedCallbacks: make(map[string]time.Time),
		duplicateWindow:   duplicateWindow,
		ttl:               ttl,
		now:               now,
		stop:              make(chan struct{}),
	}
}

func cleanupInterval(ttl, window time.Duration) time.Duration {
	interval := ttl
	if window > 0 && (interval <= 0 || window < interval) {
		interval = window
	}
	interval /= 2
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// Track starts tracking a submission in StateComposed
func (t *Tracker) Track(correlationID, workflowID, recipientCode string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.submissions[correlationID] = &TrackedSubmission{
		CorrelationID: correlationID,
		WorkflowID:    workflowID,
		RecipientCode: recipientCode,
		State:         StateComposed,
		SubmittedAt:   now,
		UpdatedAt:     now,
	}
}

// SetAPICallID records the api call id of the outbound envelope
func (t *Tracker) SetAPICallID(correlationID, apiCallID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub, exists := t.submissions[correlationID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotTracked, correlationID)
	}
	sub.APICallID = apiCallID
	return nil
}

// Advance moves a submission to the next state. States must be visited in
// order; StateFailed may be entered from any non-terminal state.
func (t *Tracker) Advance(correlationID string, state SubmissionState) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sub, exists := t.submissions[correlationID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotTracked, correlationID)
	}

	if sub.State.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, sub.State)
	}
	if state != StateFailed && state != sub.State+1 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sub.State, state)
	}

	sub.State = state
	sub.UpdatedAt = t.now()
	return nil
}

// Fail marks a submission as failed and records the error
func (t *Tracker) Fail(correlationID string, cause error) error {
	if err := t.Advance(correlationID, StateFailed); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if sub, ok := t.submissions[correlationID]; ok && cause != nil {
		sub.Errors = append(sub.Errors, cause.Error())
	}
	return nil
}

// RecordCallback records an inbound callback. callbackID identifies the
// callback for duplicate detection; it may be empty.
func (t *Tracker) RecordCallback(correlationID, callbackID string) CallbackMatch {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var match CallbackMatch

	if callbackID != "" {
		if receivedAt, seen := t.receivedCallbacks[callbackID]; seen && now.Sub(receivedAt) < t.duplicateWindow {
			match.Duplicate = true
		}
		t.receivedCallbacks[callbackID] = now
	}

	if sub, exists := t.submissions[correlationID]; exists && correlationID != "" {
		sub.Callbacks++
		sub.LastCallbackAt = now
		sub.UpdatedAt = now
		match.Known = true
		match.Submission = sub.snapshot()
	}

	return match
}

// Get returns a snapshot of a tracked submission
func (t *Tracker) Get(correlationID string) (TrackedSubmission, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	sub, exists := t.submissions[correlationID]
	if !exists {
		return TrackedSubmission{}, false
	}
	return sub.snapshot(), true
}

// Len returns the number of tracked submissions
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.submissions)
}

// Remove stops tracking a submission
func (t *Tracker) Remove(correlationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.submissions, correlationID)
}

// Stop terminates the janitor goroutine
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *Tracker) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.cleanup()
		}
	}
}

// cleanup evicts expired submissions and callback ids
func (t *Tracker) cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.ttl > 0 {
		for id, sub := range t.submissions {
			if now.Sub(sub.UpdatedAt) > t.ttl {
				delete(t.submissions, id)
			}
		}
	}

	for id, receivedAt := range t.receivedCallbacks {
		if now.Sub(receivedAt) > t.duplicateWindow {
			delete(t.receivedCallbacks, id)
		}
	}
}

func (s *TrackedSubmission) snapshot() TrackedSubmission {
	c := *s
	if s.Errors != nil {
		c.Errors = append([]string(nil), s.Errors...)
	}
	return c
}

// ComputeMessageHash computes a hash of message content for duplicate
// detection of callbacks that carry no api call id
func ComputeMessageHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
