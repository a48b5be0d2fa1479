package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(false)

	m.SubmissionCompleted("acknowledged")
	m.SubmissionCompleted("acknowledged")
	m.SubmissionCompleted("failed")
	m.CallbackHandled("decrypted")
	m.DuplicateCallback()
	m.UnmatchedCallback()
	m.EventPublished("acknowledgement", 3)
	m.EventDropped("acknowledgement")
	m.SubscriberConnected("sse", 1)
	m.SubscriberConnected("sse", 1)
	m.SubscriberConnected("sse", -1)
	m.RateLimited("callback")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues("acknowledged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callbacks.WithLabelValues("decrypted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.duplicateCallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unmatchedCallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcastEvents.WithLabelValues("acknowledgement")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.broadcastDropped.WithLabelValues("acknowledgement")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.subscribers.WithLabelValues("sse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("callback")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SubmissionCompleted("x")
		m.DispatchObserved(200, time.Second)
		m.CallbackHandled("x")
		m.DuplicateCallback()
		m.UnmatchedCallback()
		m.EventPublished("x", 1)
		m.EventDropped("x")
		m.SubscriberConnected("ws", 1)
		m.HTTPRequest("/", "GET", 200, time.Millisecond)
		m.RateLimited("x")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New(true)
	m.HTTPRequest("/preauth/submit", http.MethodPost, 200, 10*time.Millisecond)
	m.DispatchObserved(202, 20*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `hcx_http_requests_total{method="POST",route="/preauth/submit",status="200"} 1`)
	assert.Contains(t, string(body), "hcx_dispatch_duration_seconds_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}
