package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/shiva-rakshith/hcx-platform/internal/metrics"
	"github.com/shiva-rakshith/hcx-platform/pkg/broadcast"
	"github.com/shiva-rakshith/hcx-platform/pkg/protocol"
	"github.com/shiva-rakshith/hcx-platform/pkg/reliability"
	"github.com/shiva-rakshith/hcx-platform/pkg/security"
)

// Callback handling modes reported to metrics
const (
	ModeDecrypted   = "decrypted"
	ModePassthrough = "passthrough"
	ModeFailed      = "failed"
)

// Publisher fans an event out to subscribers
type Publisher interface {
	Publish(name string, data any)
}

// CallbackMessage is the outcome of a processed callback
type CallbackMessage struct {
	// Document is the decrypted payload, or the request body unchanged
	Document json.RawMessage
	// Decrypted is true when the body carried a payload envelope
	Decrypted bool
	// Headers are the envelope's exchange headers when Decrypted
	Headers *protocol.ExchangeHeaders
	// Event is the name the document was published under
	Event string
	// Correlated is true when the callback matched a tracked submission
	Correlated bool
	// Duplicate is true when the callback was already seen
	Duplicate bool
}

// CallbackHandlerConfig wires a CallbackHandler
type CallbackHandlerConfig struct {
	Decryptor *security.Decryptor
	Publisher Publisher
	Tracker   *reliability.Tracker
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// CallbackHandler processes gateway callbacks
type CallbackHandler struct {
	decryptor *security.Decryptor
	publisher Publisher
	tracker   *reliability.Tracker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewCallbackHandler creates a CallbackHandler. Decryptor and Publisher are
// required.
func NewCallbackHandler(cfg CallbackHandlerConfig) (*CallbackHandler, error) {
	if cfg.Decryptor == nil {
		return nil, errors.New("exchange: decryptor is required")
	}
	if cfg.Publisher == nil {
		return nil, errors.New("exchange: publisher is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CallbackHandler{
		decryptor: cfg.Decryptor,
		publisher: cfg.Publisher,
		tracker:   cfg.Tracker,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}, nil
}

type callbackBody struct {
	Payload json.RawMessage `json:"payload"`
}

// HandleCallback turns a callback body into a response document.
//
// When the body has a non-empty "payload" member it must be a string
// envelope sealed for our key; the decrypted plaintext must be JSON and
// becomes the document. Otherwise the body itself is the document. The
// document is published under broadcast.EventAcknowledgement before it is
// returned. Failures are returned as *ProcessingError and nothing is
// published.
func (h *CallbackHandler) HandleCallback(ctx context.Context, body []byte) (*CallbackMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body = bytes.TrimSpace(body)
	if !json.Valid(body) {
		return nil, h.failed(&ProcessingError{Stage: StageParse, Err: errors.New("body is not valid JSON")})
	}

	env, hasPayload, err := payloadOf(body)
	if err != nil {
		return nil, h.failed(&ProcessingError{Stage: StageParse, Err: err})
	}

	var msg *CallbackMessage
	if hasPayload {
		msg, err = h.open(env)
		if err != nil {
			return nil, h.failed(err)
		}
	} else {
		msg = h.passthrough(body)
	}

	msg.Event = broadcast.EventAcknowledgement
	h.publisher.Publish(msg.Event, msg.Document)

	return msg, nil
}

func (h *CallbackHandler) open(env security.Envelope) (*CallbackMessage, error) {
	headers, plaintext, err := h.decryptor.Open(env)
	if err != nil {
		return nil, &ProcessingError{Stage: StageDecrypt, Err: err}
	}

	plaintext = bytes.TrimSpace(plaintext)
	if !json.Valid(plaintext) {
		return nil, &ProcessingError{Stage: StageDecode, Err: errors.New("decrypted payload is not valid JSON")}
	}

	log := h.logger.With(
		"correlation_id", headers.CorrelationID,
		"api_call_id", headers.APICallID,
		"sender_code", headers.SenderCode,
	)
	log.Debug("callback decrypted", "headers", headers, "document", string(plaintext))

	msg := &CallbackMessage{
		Document:  json.RawMessage(plaintext),
		Decrypted: true,
		Headers:   headers,
	}

	if h.tracker != nil {
		match := h.tracker.RecordCallback(headers.CorrelationID, headers.APICallID)
		msg.Correlated = match.Known
		msg.Duplicate = match.Duplicate
		switch {
		case match.Duplicate:
			log.Warn("duplicate callback received")
			h.metrics.DuplicateCallback()
		case !match.Known:
			log.Warn("callback for unknown correlation id")
			h.metrics.UnmatchedCallback()
		}
		// on_submit is the final answer for a submission
		if match.Known {
			h.tracker.Remove(headers.CorrelationID)
			log.Debug("submission completed",
				"callbacks", match.Submission.Callbacks,
				"elapsed", match.Submission.LastCallbackAt.Sub(match.Submission.SubmittedAt),
			)
		}
	}

	h.metrics.CallbackHandled(ModeDecrypted)
	log.Info("callback processed", "mode", ModeDecrypted)
	return msg, nil
}

func (h *CallbackHandler) passthrough(body []byte) *CallbackMessage {
	msg := &CallbackMessage{Document: json.RawMessage(body)}

	if h.tracker != nil {
		hash := reliability.ComputeMessageHash(body)
		if h.tracker.RecordCallback("", "body:"+hash).Duplicate {
			msg.Duplicate = true
			h.logger.Warn("duplicate callback received", "hash", hash)
			h.metrics.DuplicateCallback()
		}
	}

	h.metrics.CallbackHandled(ModePassthrough)
	h.logger.Debug("callback passed through", "document", string(body))
	return msg
}

func (h *CallbackHandler) failed(err error) error {
	h.metrics.CallbackHandled(ModeFailed)
	h.logger.Error("callback processing failed", "error", err)
	return err
}

// payloadOf extracts the payload envelope from a callback body. A body that
// is not an object, or whose payload is absent, null or empty, carries no
// envelope.
func payloadOf(body []byte) (security.Envelope, bool, error) {
	if len(body) == 0 || body[0] != '{' {
		return "", false, nil
	}

	var cb callbackBody
	if err := json.Unmarshal(body, &cb); err != nil {
		return "", false, err
	}
	raw := bytes.TrimSpace(cb.Payload)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false, nil
	}

	var env string
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", false, errors.New("payload must be a string envelope")
	}
	if env == "" {
		return "", false, nil
	}
	return security.Envelope(env), true, nil
}
