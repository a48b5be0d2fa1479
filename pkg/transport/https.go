package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shiva-rakshith/hcx-platform/pkg/security"
)

// TLS version constants
const (
	TLS12 = tls.VersionTLS12
	TLS13 = tls.VersionTLS13
)

// Recommended TLS 1.2 cipher suites
var RecommendedTLS12CipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// DefaultUserAgent is sent on every outbound request
const DefaultUserAgent = "hcx-node/1.0"

// maxAcknowledgementSize bounds the peer response body we read (1 MB)
const maxAcknowledgementSize = 1 << 20

// HTTPSConfig contains HTTPS client/server configuration
type HTTPSConfig struct {
	MinTLSVersion   uint16
	MaxTLSVersion   uint16
	CipherSuites    []uint16
	ClientAuth      tls.ClientAuthType
	Certificates    []tls.Certificate
	RootCAs         *x509.CertPool
	ClientCAs       *x509.CertPool
	Timeout         time.Duration
	IdleConnTimeout time.Duration
}

// DefaultHTTPSConfig returns a default HTTPS configuration
func DefaultHTTPSConfig() *HTTPSConfig {
	return &HTTPSConfig{
		MinTLSVersion:   TLS12,
		MaxTLSVersion:   TLS13,
		CipherSuites:    RecommendedTLS12CipherSuites,
		ClientAuth:      tls.NoClientCert,
		Timeout:         30 * time.Second,
		IdleConnTimeout: 90 * time.Second,
	}
}

// ServerTLSConfig returns the TLS settings for an inbound listener
func (c *HTTPSConfig) ServerTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:   c.MinTLSVersion,
		MaxVersion:   c.MaxTLSVersion,
		CipherSuites: c.CipherSuites,
		Certificates: c.Certificates,
		ClientCAs:    c.ClientCAs,
		ClientAuth:   c.ClientAuth,
	}
}

// Acknowledgement is the peer's synchronous response to a dispatched envelope
type Acknowledgement struct {
	StatusCode int
	Body       json.RawMessage
}

// MarshalJSON encodes the acknowledgement as the peer's response body
func (a *Acknowledgement) MarshalJSON() ([]byte, error) {
	if len(a.Body) == 0 {
		return []byte("null"), nil
	}
	return a.Body, nil
}

// DownstreamError reports a failed dispatch. StatusCode is the peer's status
// when one was received and 500 otherwise. Body is kept out of Error so it
// never reaches callers.
type DownstreamError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *DownstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("downstream request failed: %v", e.Err)
	}
	return fmt.Sprintf("downstream returned status %d", e.StatusCode)
}

func (e *DownstreamError) Unwrap() error {
	return e.Err
}

// Client dispatches envelopes to the HCX gateway
type Client struct {
	client    *http.Client
	config    *HTTPSConfig
	baseURL   string
	authToken string
	userAgent string
	logger    *slog.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithAuthToken sets a bearer token sent on every request
func WithAuthToken(token string) ClientOption {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a client for the gateway at baseURL
func NewClient(baseURL string, config *HTTPSConfig, opts ...ClientOption) *Client {
	if config == nil {
		config = DefaultHTTPSConfig()
	}

	tlsConfig := &tls.Config{
		MinVersion:   config.MinTLSVersion,
		MaxVersion:   config.MaxTLSVersion,
		CipherSuites: config.CipherSuites,
		Certificates: config.Certificates,
		RootCAs:      config.RootCAs,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     tlsConfig,
		IdleConnTimeout:     config.IdleConnTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
	}

	c := &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		config:    config,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// BaseURL returns the gateway base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

type dispatchRequest struct {
	Payload security.Envelope `json:"payload"`
}

// Dispatch posts the envelope to endpointPath on the gateway. The request is
// attempted once; there are no retries.
func (c *Client) Dispatch(ctx context.Context, env security.Envelope, endpointPath string) (*Acknowledgement, error) {
	body, err := json.Marshal(dispatchRequest{Payload: env})
	if err != nil {
		return nil, &DownstreamError{StatusCode: http.StatusInternalServerError, Err: err}
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(endpointPath, "/")
	logger := c.logger.With("endpoint", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &DownstreamError{StatusCode: http.StatusInternalServerError, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		logger.Warn("dispatch failed", "error", err, "duration", time.Since(start))
		return nil, &DownstreamError{StatusCode: http.StatusInternalServerError, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxAcknowledgementSize))
	if err != nil {
		return nil, &DownstreamError{StatusCode: http.StatusInternalServerError, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	logger.Debug("dispatch response", "status", resp.StatusCode, "duration", time.Since(start), "body", string(respBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DownstreamError{StatusCode: resp.StatusCode, Body: respBody}
	}

	return &Acknowledgement{StatusCode: resp.StatusCode, Body: normalizeBody(respBody)}, nil
}

// StatusCode extracts the HTTP status carried by a dispatch error
func StatusCode(err error) int {
	var de *DownstreamError
	if errors.As(err, &de) && de.StatusCode != 0 {
		return de.StatusCode
	}
	return http.StatusInternalServerError
}

// normalizeBody keeps JSON bodies as-is and wraps anything else as a JSON string
func normalizeBody(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(string(trimmed))
	return quoted
}
