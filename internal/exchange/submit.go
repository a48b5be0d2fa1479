package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shiva-rakshith/hcx-platform/internal/metrics"
	"github.com/shiva-rakshith/hcx-platform/pkg/claim"
	"github.com/shiva-rakshith/hcx-platform/pkg/protocol"
	"github.com/shiva-rakshith/hcx-platform/pkg/reliability"
	"github.com/shiva-rakshith/hcx-platform/pkg/security"
	"github.com/shiva-rakshith/hcx-platform/pkg/transport"
)

// Submission outcomes reported to metrics
const (
	OutcomeAcknowledged = "acknowledged"
	OutcomeRejected     = "rejected"
	OutcomeFailed       = "failed"
)

// Dispatcher delivers an envelope to the gateway
type Dispatcher interface {
	Dispatch(ctx context.Context, env security.Envelope, endpointPath string) (*transport.Acknowledgement, error)
}

// SubmitRequest is the caller's pre-authorization request
type SubmitRequest struct {
	Name          string        `json:"name,omitempty"`
	Gender        string        `json:"gender,omitempty"`
	Amount        *claim.Amount `json:"amount,omitempty"`
	RecipientCode string        `json:"recipient_code,omitempty"`
	SenderCode    string        `json:"sender_code,omitempty"`
	ErrorCode     string        `json:"error_code,omitempty"`
	ErrorMessage  string        `json:"error_code_message,omitempty"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	WorkflowID    string        `json:"workflow_id,omitempty"`
}

// SubmissionResult is returned to the caller after a successful dispatch
type SubmissionResult struct {
	Request         claim.Document             `json:"request"`
	Acknowledgement *transport.Acknowledgement `json:"acknowledgement"`

	// Headers are the exchange headers the envelope was sealed with
	Headers *protocol.ExchangeHeaders `json:"-"`
}

// SubmitterConfig wires a Submitter
type SubmitterConfig struct {
	Template   *claim.Template
	Headers    *protocol.HeaderBuilder
	Encryptor  *security.Encryptor
	Dispatcher Dispatcher
	// SubmitPath is the gateway path, e.g. /v0.7/preauth/submit
	SubmitPath string
	// DefaultRecipient is used when a request names no recipient
	DefaultRecipient string

	Tracker *reliability.Tracker
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Submitter runs the submission flow
type Submitter struct {
	template         *claim.Template
	headers          *protocol.HeaderBuilder
	encryptor        *security.Encryptor
	dispatcher       Dispatcher
	submitPath       string
	defaultRecipient string
	tracker          *reliability.Tracker
	metrics          *metrics.Metrics
	logger           *slog.Logger
}

// NewSubmitter creates a Submitter. Template, Encryptor and Dispatcher are
// required.
func NewSubmitter(cfg SubmitterConfig) (*Submitter, error) {
	if cfg.Template == nil {
		return nil, errors.New("exchange: template is required")
	}
	if cfg.Encryptor == nil {
		return nil, errors.New("exchange: encryptor is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("exchange: dispatcher is required")
	}
	if cfg.Headers == nil {
		cfg.Headers = protocol.NewHeaderBuilder()
	}
	if cfg.SubmitPath == "" {
		cfg.SubmitPath = protocol.OpPreauthSubmit.Path("")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Submitter{
		template:         cfg.Template,
		headers:          cfg.Headers,
		encryptor:        cfg.Encryptor,
		dispatcher:       cfg.Dispatcher,
		submitPath:       cfg.SubmitPath,
		defaultRecipient: strings.TrimSpace(cfg.DefaultRecipient),
		tracker:          cfg.Tracker,
		metrics:          cfg.Metrics,
		logger:           cfg.Logger,
	}, nil
}

// Submit composes, seals and dispatches one pre-authorization claim.
//
// A missing recipient is reported as a *protocol.ValidationError before
// anything is sent. Dispatch failures are returned as the transport's
// *transport.DownstreamError.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (*SubmissionResult, error) {
	recipient := strings.TrimSpace(req.RecipientCode)
	if recipient == "" {
		recipient = s.defaultRecipient
	}

	doc := claim.Compose(s.template, claim.Fields{
		Name:   req.Name,
		Gender: req.Gender,
		Amount: req.Amount,
	})

	headers, err := s.headers.Build(protocol.HeaderInput{
		RecipientCode: recipient,
		SenderCode:    req.SenderCode,
		CorrelationID: req.CorrelationID,
		WorkflowID:    req.WorkflowID,
		ErrorCode:     req.ErrorCode,
		ErrorMessage:  req.ErrorMessage,
	})
	if err != nil {
		s.metrics.SubmissionCompleted(OutcomeRejected)
		return nil, err
	}

	log := s.logger.With(
		"correlation_id", headers.CorrelationID,
		"recipient_code", headers.RecipientCode,
		"api_call_id", headers.APICallID,
	)

	s.track(headers)
	s.advance(log, headers.CorrelationID, reliability.StateHeadersBuilt)

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, s.fail(log, headers.CorrelationID, fmt.Errorf("encoding claim: %w", err))
	}

	env, err := s.encryptor.Encrypt(headers, payload)
	if err != nil {
		return nil, s.fail(log, headers.CorrelationID, fmt.Errorf("sealing claim: %w", err))
	}
	s.advance(log, headers.CorrelationID, reliability.StateEncrypted)

	log.Debug("dispatching claim", "path", s.submitPath, "headers", headers)

	start := time.Now()
	ack, err := s.dispatcher.Dispatch(ctx, env, s.submitPath)
	if err != nil {
		s.metrics.DispatchObserved(transport.StatusCode(err), time.Since(start))
		return nil, s.fail(log, headers.CorrelationID, err)
	}
	s.metrics.DispatchObserved(ack.StatusCode, time.Since(start))

	s.advance(log, headers.CorrelationID, reliability.StateDispatched)
	s.advance(log, headers.CorrelationID, reliability.StateAcknowledged)
	s.metrics.SubmissionCompleted(OutcomeAcknowledged)

	log.Info("claim submitted", "status", ack.StatusCode)

	return &SubmissionResult{
		Request:         doc,
		Acknowledgement: ack,
		Headers:         headers,
	}, nil
}

func (s *Submitter) track(headers *protocol.ExchangeHeaders) {
	if s.tracker == nil {
		return
	}
	s.tracker.Track(headers.CorrelationID, headers.WorkflowID, headers.RecipientCode)
	_ = s.tracker.SetAPICallID(headers.CorrelationID, headers.APICallID)
}

func (s *Submitter) advance(log *slog.Logger, correlationID string, state reliability.SubmissionState) {
	if s.tracker == nil {
		return
	}
	if err := s.tracker.Advance(correlationID, state); err != nil {
		log.Warn("failed to update submission state", "state", state, "error", err)
	}
}

func (s *Submitter) fail(log *slog.Logger, correlationID string, err error) error {
	log.Error("claim submission failed", "error", err)
	s.metrics.SubmissionCompleted(OutcomeFailed)
	if s.tracker != nil {
		if terr := s.tracker.Fail(correlationID, err); terr != nil {
			log.Warn("failed to update submission state", "state", reliability.StateFailed, "error", terr)
		}
	}
	return err
}
