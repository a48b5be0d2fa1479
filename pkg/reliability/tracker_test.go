package reliability

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker(ttl, window time.Duration) (*Tracker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return newTracker(ttl, window, clock.Now), clock
}

func TestNewTracker(t *testing.T) {
	tracker := NewTracker(time.Hour, 24*time.Hour)
	defer tracker.Stop()

	if tracker.submissions == nil {
		t.Error("expected submissions map to be initialized")
	}
	if tracker.receivedCallbacks == nil {
		t.Error("expected receivedCallbacks map to be initialized")
	}
	if tracker.duplicateWindow != 24*time.Hour {
		t.Errorf("expected duplicateWindow 24h, got %v", tracker.duplicateWindow)
	}
}

func TestTracker_Track(t *testing.T) {
	tracker, _ := newTestTracker(time.Hour, time.Hour)

	tracker.Track("corr-1", "wf-1", "payer-1")

	sub, exists := tracker.Get("corr-1")
	if !exists {
		t.Fatal("expected submission to exist")
	}
	if sub.State != StateComposed {
		t.Errorf("expected StateComposed, got %s", sub.State)
	}
	if sub.WorkflowID != "wf-1" || sub.RecipientCode != "payer-1" {
		t.Errorf("unexpected submission %+v", sub)
	}
	if tracker.Len() != 1 {
		t.Errorf("expected 1 tracked, got %d", tracker.Len())
	}
}

func TestTracker_Get_NotFound(t *testing.T) {
	tracker, _ := newTestTracker(time.Hour, time.Hour)

	if _, exists := tracker.Get("nonexistent"); exists {
		t.Error("expected submission to not exist")
	}
}

func TestTracker_FullLifecycle(t *testing.T) {
	tracker, _ := newTestTracker(time.Hour, time.Hour)
	tracker.Track("corr-1", "wf-1", "payer-1")

	for _, state := range []SubmissionState{StateHeadersBuilt, StateEncrypted, StateDispatched, StateAcknowledged} {
		if err := tracker.Advance("corr-1", state); err != nil {
			t.Fatalf("advance to %s: %v", state, err)
		}
	}

	sub, _ := tracker.Get("corr-1")
	if sub.State != StateAcknowledged {
		t.Errorf("expected ACKNOWLEDGED, got %s", sub.State)
	}

	if err := tracker.Advance("corr-1", StateFailed); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition from terminal state, got %v", err)
	}
}

func TestTracker_SkippingStateRejected(t *testing.T) {
	tracker, _ := newTestTracker(time.Hour, time.Hour)
	tracker.Track("corr-1", "", "")

	if err := tracker.Advance("corr-1", StateDispatched); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTracker_Fail(t *testing.T) {
	tracker, _ := newTestTracker(time.Hour, time.Hour)
	tracker.Track("corr-1", "", "")
	_ = tracker.Advance("corr-1", StateHeadersBuilt)

	if err := tracker.Fail("corr-1", errors.New("gateway down")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub, _ := tracker.Get("corr-1")
	if sub.State != StateFailed {
		t.Errorf("expected FAILED, got %s", sub.State)
	}
	if len(sub.Errors) != 1 || sub.Errors[0] != "gateway down" {
		t.Errorf("unexpected errors %v", sub.Errors)
	}
}

func TestTracker_NotTracked(t *testing.T) {
	tracker, _ := newTestTracker(time.Hour, time.Hour)

	if err := tracker.Advance("missing", StateHeadersBuilt); !errors.Is(err, ErrNotTracked) {
		t.Errorf("expected ErrNotTracked, got %v", err)
	}
	if err := tracker.SetAPICallID("missing", "x"); !errors.Is(err, ErrNotTracked) {
		t.Errorf("expected ErrNotTracked, got %v", err)
	}
}

func TestTracker_RecordCallback(t *testing.T) {
	tracker, _ := newTestTracker(time.Hour, time.Hour)
	tracker.Track("corr-1", "wf-1", "payer-1")

	match := tracker.RecordCallback("corr-1", "call-1")
	if !match.Known {
		t.Error("expected known correlation")
	}
	if match.Duplicate {
		t.Error("first callback must not be a duplicate")
	}
	if match.Submission.Callbacks != 1 {
		t.Errorf("expected 1 callback, got %d", match.Submission.Callbacks)
	}

	match = tracker.RecordCallback("corr-1", "call-1")
	if !match.Duplicate {
		t.Error("expected duplicate callback")
	}
	if match.Submission.Callbacks != 2 {
		t.Errorf("expected 2 callbacks, got %d", match.Submission.Callbacks)
	}

	unknown := tracker.RecordCallback("corr-unknown", "call-2")
	if unknown.Known {
		t.Error("expected unknown correlation")
	}
}

func TestTracker_DuplicateWindowExpires(t *testing.T) {
	tracker, clock := newTestTracker(time.Hour, time.Minute)

	tracker.RecordCallback("", "call-1")
	clock.Advance(30 * time.Second)
	if !tracker.RecordCallback("", "call-1").Duplicate {
		t.Error("expected duplicate within window")
	}

	clock.Advance(2 * time.Minute)
	if tracker.RecordCallback("", "call-1").Duplicate {
		t.Error("expected callback outside window to be fresh")
	}
}

func TestTracker_Cleanup(t *testing.T) {
	tracker, clock := newTestTracker(time.Minute, time.Minute)
	tracker.Track("old", "", "")
	tracker.RecordCallback("", "call-old")

	clock.Advance(30 * time.Second)
	tracker.Track("fresh", "", "")

	clock.Advance(45 * time.Second)
	tracker.cleanup()

	if _, ok := tracker.Get("old"); ok {
		t.Error("expected old submission to be evicted")
	}
	if _, ok := tracker.Get("fresh"); !ok {
		t.Error("expected fresh submission to remain")
	}
	if _, ok := tracker.receivedCallbacks["call-old"]; ok {
		t.Error("expected old callback id to be evicted")
	}
}

func TestTracker_SnapshotIsolation(t *testing.T) {
	tracker, _ := newTestTracker(time.Hour, time.Hour)
	tracker.Track("corr-1", "", "")
	_ = tracker.Fail("corr-1", errors.New("first"))

	sub, _ := tracker.Get("corr-1")
	sub.Errors[0] = "mutated"

	again, _ := tracker.Get("corr-1")
	if again.Errors[0] != "first" {
		t.Error("snapshot mutation leaked into tracker")
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tracker := NewTracker(time.Hour, time.Hour)
	defer tracker.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			tracker.Track(id, "", "")
			tracker.RecordCallback(id, id)
			tracker.Get(id)
		}(i)
	}
	wg.Wait()
}

func TestSubmissionState_String(t *testing.T) {
	tests := map[SubmissionState]string{
		StateComposed:       "COMPOSED",
		StateHeadersBuilt:   "HEADERS_BUILT",
		StateEncrypted:      "ENCRYPTED",
		StateDispatched:     "DISPATCHED",
		StateAcknowledged:   "ACKNOWLEDGED",
		StateFailed:         "FAILED",
		SubmissionState(42): "SubmissionState(42)",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}

func TestComputeMessageHash(t *testing.T) {
	a := ComputeMessageHash([]byte("hello"))
	b := ComputeMessageHash([]byte("hello"))
	c := ComputeMessageHash([]byte("world"))

	if a != b {
		t.Error("expected equal hashes for equal content")
	}
	if a == c {
		t.Error("expected different hashes for different content")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestCleanupInterval(t *testing.T) {
	if got := cleanupInterval(time.Hour, time.Minute); got != 30*time.Second {
		t.Errorf("expected 30s, got %v", got)
	}
	if got := cleanupInterval(0, 0); got != time.Second {
		t.Errorf("expected 1s floor, got %v", got)
	}
}

func TestTracker_Remove(t *testing.T) {
	tracker, _ := newTestTracker(time.Hour, time.Hour)
	tracker.Track("corr-1", "wf-1", "payer-1")
	tracker.RecordCallback("corr-1", "call-1")

	tracker.Remove("corr-1")
	if _, ok := tracker.Get("corr-1"); ok {
		t.Error("expected submission to be removed")
	}

	// callback ids outlive the submission for duplicate detection
	match := tracker.RecordCallback("corr-1", "call-1")
	if match.Known {
		t.Error("expected removed correlation to be unknown")
	}
	if !match.Duplicate {
		t.Error("expected duplicate after removal")
	}
}
