// Package metrics exposes Prometheus collectors for the node.
//
// All methods are safe on a nil *Metrics so components can treat metrics as
// optional.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hcx"

// Metrics holds the node's collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	submissions        *prometheus.CounterVec
	dispatchDuration   *prometheus.HistogramVec
	callbacks          *prometheus.CounterVec
	duplicateCallbacks prometheus.Counter
	unmatchedCallbacks prometheus.Counter
	broadcastEvents    *prometheus.CounterVec
	broadcastDropped   *prometheus.CounterVec
	subscribers        *prometheus.GaugeVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	rateLimited        *prometheus.CounterVec
}

// New creates the collectors, optionally including Go runtime and process metrics
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total number of claim submissions by outcome",
		}, []string{"outcome"}),
		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Latency of envelope dispatch to the gateway",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		callbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_total",
			Help:      "Total number of inbound callbacks by handling mode",
		}, []string{"mode"}),
		duplicateCallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_duplicate_total",
			Help:      "Total number of callbacks whose api call id was already seen",
		}),
		unmatchedCallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_unmatched_total",
			Help:      "Total number of decrypted callbacks with an unknown correlation id",
		}),
		broadcastEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_events_total",
			Help:      "Total number of events published to subscribers",
		}, []string{"event"}),
		broadcastDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Total number of event deliveries skipped for slow subscribers",
		}, []string{"event"}),
		subscribers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Current number of connected subscribers",
		}, []string{"transport"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejected_total",
			Help:      "Total number of requests rejected due to rate limiting",
		}, []string{"route"}),
	}
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SubmissionCompleted counts a submission by outcome
func (m *Metrics) SubmissionCompleted(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// DispatchObserved records a dispatch round trip
func (m *Metrics) DispatchObserved(status int, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchDuration.WithLabelValues(strconv.Itoa(status)).Observe(d.Seconds())
}

// CallbackHandled counts a callback by mode (decrypted, passthrough, failed)
func (m *Metrics) CallbackHandled(mode string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(mode).Inc()
}

// DuplicateCallback counts a callback seen before
func (m *Metrics) DuplicateCallback() {
	if m == nil {
		return
	}
	m.duplicateCallbacks.Inc()
}

// UnmatchedCallback counts a callback for an unknown correlation
func (m *Metrics) UnmatchedCallback() {
	if m == nil {
		return
	}
	m.unmatchedCallbacks.Inc()
}

// EventPublished implements broadcast.Observer
func (m *Metrics) EventPublished(name string, _ int) {
	if m == nil {
		return
	}
	m.broadcastEvents.WithLabelValues(name).Inc()
}

// EventDropped implements broadcast.Observer
func (m *Metrics) EventDropped(name string) {
	if m == nil {
		return
	}
	m.broadcastDropped.WithLabelValues(name).Inc()
}

// SubscriberConnected adjusts the subscriber gauge by delta
func (m *Metrics) SubscriberConnected(transport string, delta int) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(transport).Add(float64(delta))
}

// HTTPRequest records a served request
func (m *Metrics) HTTPRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// RateLimited counts a request rejected by the rate limiter
func (m *Metrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}
