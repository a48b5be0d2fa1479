package protocol

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultDelay is the x-hcx-delay value the HCX sandbox uses to pace
// simulated responses
const DefaultDelay = "2000"

// timestampLayout matches ISO-8601 with millisecond precision in UTC
const timestampLayout = "2006-01-02T15:04:05.000Z"

// ValidationError reports missing or invalid caller input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ErrRecipientCodeRequired is returned when no recipient code is available
var ErrRecipientCodeRequired = &ValidationError{
	Field:   HeaderRecipientCode,
	Message: "Recipient Code is mandatory",
}

// HeaderInput holds the per-call values for building exchange headers
type HeaderInput struct {
	RecipientCode string
	SenderCode    string
	CorrelationID string
	WorkflowID    string
	ErrorCode     string
	ErrorMessage  string
}

// HeaderBuilder produces ExchangeHeaders for outbound envelopes
type HeaderBuilder struct {
	senderCode string
	delay      string
	now        func() time.Time
	newID      func() string
}

// Option represents a functional option for HeaderBuilder
type Option func(*HeaderBuilder)

// WithDefaultSender sets the sender code used when the caller supplies none
func WithDefaultSender(code string) Option {
	return func(b *HeaderBuilder) {
		b.senderCode = code
	}
}

// WithDelay sets the x-hcx-delay value; empty omits the header
func WithDelay(delay string) Option {
	return func(b *HeaderBuilder) {
		b.delay = delay
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(b *HeaderBuilder) {
		b.now = now
	}
}

// WithIDGenerator overrides the identifier source
func WithIDGenerator(newID func() string) Option {
	return func(b *HeaderBuilder) {
		b.newID = newID
	}
}

// NewHeaderBuilder creates a header builder with the given options
func NewHeaderBuilder(opts ...Option) *HeaderBuilder {
	b := &HeaderBuilder{
		delay: DefaultDelay,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build produces the exchange headers for one submission. The recipient code
// is the only mandatory input; no default is substituted for it here.
func (b *HeaderBuilder) Build(in HeaderInput) (*ExchangeHeaders, error) {
	recipient := strings.TrimSpace(in.RecipientCode)
	if recipient == "" {
		return nil, ErrRecipientCodeRequired
	}

	sender := strings.TrimSpace(in.SenderCode)
	if sender == "" {
		sender = b.senderCode
	}

	h := &ExchangeHeaders{
		RecipientCode: recipient,
		RequestID:     b.newID(),
		Timestamp:     b.now().UTC().Format(timestampLayout),
		SenderCode:    sender,
		CorrelationID: firstNonEmpty(in.CorrelationID, b.newID),
		Encryption:    EncryptionA256GCM,
		WorkflowID:    firstNonEmpty(in.WorkflowID, b.newID),
		Algorithm:     AlgorithmRSAOAEP256,
		APICallID:     b.newID(),
		Status:        StatusRequestQueued,
		Delay:         b.delay,
	}

	if code := strings.TrimSpace(in.ErrorCode); code != "" {
		msg := strings.TrimSpace(in.ErrorMessage)
		if msg == "" {
			msg = code
		}
		h.SimulatedError = &ErrorDetails{Code: code, Message: msg, Trace: ""}
	}

	return h, nil
}

// BuildHeaders builds headers with a default builder
func BuildHeaders(in HeaderInput, opts ...Option) (*ExchangeHeaders, error) {
	return NewHeaderBuilder(opts...).Build(in)
}

func firstNonEmpty(v string, gen func() string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return gen()
}
