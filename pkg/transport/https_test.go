package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shiva-rakshith/hcx-platform/pkg/security"
)

func TestDefaultHTTPSConfig(t *testing.T) {
	config := DefaultHTTPSConfig()

	if config == nil {
		t.Fatal("expected non-nil config")
	}

	if config.MinTLSVersion != TLS12 {
		t.Errorf("expected MinTLSVersion TLS12, got %d", config.MinTLSVersion)
	}
	if config.MaxTLSVersion != TLS13 {
		t.Errorf("expected MaxTLSVersion TLS13, got %d", config.MaxTLSVersion)
	}
	if len(config.CipherSuites) == 0 {
		t.Error("expected CipherSuites to be set")
	}
	if config.Timeout != 30*time.Second {
		t.Errorf("expected Timeout 30s, got %v", config.Timeout)
	}
}

func TestRecommendedTLS12CipherSuites(t *testing.T) {
	for _, suite := range RecommendedTLS12CipherSuites {
		if tls.CipherSuiteName(suite) == "" {
			t.Errorf("unknown cipher suite: %d", suite)
		}
	}
}

func TestServerTLSConfig(t *testing.T) {
	cfg := DefaultHTTPSConfig()
	cfg.ClientAuth = tls.RequireAndVerifyClientCert

	tlsConfig := cfg.ServerTLSConfig()
	if tlsConfig.MinVersion != TLS12 {
		t.Errorf("expected MinVersion TLS12, got %d", tlsConfig.MinVersion)
	}
	if tlsConfig.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Error("ClientAuth mismatch")
	}
}

func TestNewClient_NilConfig(t *testing.T) {
	client := NewClient("http://gateway.example/api/", nil)

	if client.config == nil {
		t.Error("expected config to be set to default")
	}
	if client.BaseURL() != "http://gateway.example/api" {
		t.Errorf("expected trailing slash trimmed, got %q", client.BaseURL())
	}
}

func TestClient_Dispatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/v0.7/preauth/submit" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected content-type 'application/json', got '%s'", ct)
		}
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("expected User-Agent %q", DefaultUserAgent)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer s3cret" {
			t.Errorf("unexpected Authorization %q", auth)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if body["payload"] != "a.b.c.d.e" {
			t.Errorf("unexpected payload %q", body["payload"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"api_call_id":"abc","timestamp":"1"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/api", nil, WithAuthToken("s3cret"))

	ack, err := client.Dispatch(context.Background(), security.Envelope("a.b.c.d.e"), "/v0.7/preauth/submit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack.StatusCode != http.StatusAccepted {
		t.Errorf("expected 202, got %d", ack.StatusCode)
	}

	data, err := json.Marshal(ack)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"api_call_id":"abc","timestamp":"1"}` {
		t.Errorf("unexpected acknowledgement: %s", data)
	}
}

func TestClient_Dispatch_NonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("queued"))
	}))
	defer server.Close()

	ack, err := NewClient(server.URL, nil).Dispatch(context.Background(), "x", "preauth/submit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(ack.Body) != `"queued"` {
		t.Errorf("expected quoted body, got %s", ack.Body)
	}
}

func TestClient_Dispatch_ErrorStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad token"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil).Dispatch(context.Background(), "x", "/preauth/submit")
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}

	var de *DownstreamError
	if !errors.As(err, &de) {
		t.Fatalf("expected DownstreamError, got %T", err)
	}
	if de.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", de.StatusCode)
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Errorf("StatusCode mismatch")
	}
	if string(de.Body) != `{"error":"bad token"}` {
		t.Errorf("expected peer body to be kept, got %q", de.Body)
	}
	if got := de.Error(); got != "downstream returned status 401" {
		t.Errorf("peer body leaked into error: %q", got)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected exactly one attempt, got %d", n)
	}
}

func TestClient_Dispatch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, nil).Dispatch(context.Background(), "x", "/preauth/submit")
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", StatusCode(err))
	}
}

func TestClient_Dispatch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := DefaultHTTPSConfig()
	cfg.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := NewClient(server.URL, cfg).Dispatch(context.Background(), "x", "/preauth/submit")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", StatusCode(err))
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout not applied")
	}
}

func TestClient_Dispatch_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(server.URL, nil).Dispatch(ctx, "x", "/preauth/submit")
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestStatusCode_Plain(t *testing.T) {
	if StatusCode(errors.New("boom")) != http.StatusInternalServerError {
		t.Error("expected 500 for non-downstream error")
	}
}

func TestTLSConstants(t *testing.T) {
	if TLS12 != tls.VersionTLS12 {
		t.Errorf("TLS12 constant mismatch")
	}
	if TLS13 != tls.VersionTLS13 {
		t.Errorf("TLS13 constant mismatch")
	}
}
