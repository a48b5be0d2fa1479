package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Exchange header names. These are wire contract and must not change.
const (
	HeaderRecipientCode    = "x-hcx-recipient_code"
	HeaderRequestID        = "x-hcx-request_id"
	HeaderTimestamp        = "x-hcx-timestamp"
	HeaderSenderCode       = "x-hcx-sender_code"
	HeaderCorrelationID    = "x-hcx-correlation_id"
	HeaderEncryption       = "enc"
	HeaderWorkflowID       = "x-hcx-workflow_id"
	HeaderAlgorithm        = "alg"
	HeaderAPICallID        = "x-hcx-api_call_id"
	HeaderStatus           = "x-hcx-status"
	HeaderDelay            = "x-hcx-delay"
	HeaderStatusTest       = "x-hcx-status_test"
	HeaderErrorDetailsTest = "x-hcx-error_details_test"
)

// Algorithm tags and status values
const (
	AlgorithmRSAOAEP256 = "RSA-OAEP-256"
	EncryptionA256GCM   = "A256GCM"

	StatusRequestQueued = "request.queued"
	StatusResponseError = "response.error"
)

// ErrorDetails is the simulated-error block requested by test callers
type ErrorDetails struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Trace   string `json:"trace"`
}

// ExchangeHeaders is the protocol metadata carried in every envelope.
// SimulatedError is the optional sub-record; when set it also produces the
// x-hcx-status_test header.
type ExchangeHeaders struct {
	RecipientCode  string
	RequestID      string
	Timestamp      string
	SenderCode     string
	CorrelationID  string
	Encryption     string
	WorkflowID     string
	Algorithm      string
	APICallID      string
	Status         string
	Delay          string
	SimulatedError *ErrorDetails
}

// Field is a single header name/value pair
type Field struct {
	Name  string
	Value any
}

// Fields returns the headers in wire order. An empty sender code, delay or
// simulated error is omitted.
func (h *ExchangeHeaders) Fields() []Field {
	fields := []Field{
		{HeaderRecipientCode, h.RecipientCode},
		{HeaderRequestID, h.RequestID},
		{HeaderTimestamp, h.Timestamp},
	}
	if h.SenderCode != "" {
		fields = append(fields, Field{HeaderSenderCode, h.SenderCode})
	}
	fields = append(fields, []Field{
		{HeaderCorrelationID, h.CorrelationID},
		{HeaderEncryption, h.Encryption},
		{HeaderWorkflowID, h.WorkflowID},
		{HeaderAlgorithm, h.Algorithm},
		{HeaderAPICallID, h.APICallID},
		{HeaderStatus, h.Status},
	}...)
	if h.Delay != "" {
		fields = append(fields, Field{HeaderDelay, h.Delay})
	}
	if h.SimulatedError != nil {
		fields = append(fields,
			Field{HeaderStatusTest, StatusResponseError},
			Field{HeaderErrorDetailsTest, *h.SimulatedError},
		)
	}
	return fields
}

// MarshalJSON encodes the headers as an object in wire order
func (h ExchangeHeaders) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range h.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding header %s: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes headers from a JSON object. Unknown keys are ignored.
func (h *ExchangeHeaders) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	str := func(name string, dst *string) error {
		v, ok := raw[name]
		if !ok || string(v) == "null" {
			return nil
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("header %s: %w", name, err)
		}
		return nil
	}

	targets := []struct {
		name string
		dst  *string
	}{
		{HeaderRecipientCode, &h.RecipientCode},
		{HeaderRequestID, &h.RequestID},
		{HeaderTimestamp, &h.Timestamp},
		{HeaderSenderCode, &h.SenderCode},
		{HeaderCorrelationID, &h.CorrelationID},
		{HeaderEncryption, &h.Encryption},
		{HeaderWorkflowID, &h.WorkflowID},
		{HeaderAlgorithm, &h.Algorithm},
		{HeaderAPICallID, &h.APICallID},
		{HeaderStatus, &h.Status},
		{HeaderDelay, &h.Delay},
	}
	for _, t := range targets {
		if err := str(t.name, t.dst); err != nil {
			return err
		}
	}

	if v, ok := raw[HeaderErrorDetailsTest]; ok && string(v) != "null" {
		var details ErrorDetails
		if err := json.Unmarshal(v, &details); err != nil {
			return fmt.Errorf("header %s: %w", HeaderErrorDetailsTest, err)
		}
		h.SimulatedError = &details
	}
	return nil
}
