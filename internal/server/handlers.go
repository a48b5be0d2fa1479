package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/shiva-rakshith/hcx-platform/internal/exchange"
	"github.com/shiva-rakshith/hcx-platform/pkg/security"
)

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req exchange.SubmitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBodySize))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.submitter.Submit(r.Context(), req)
	if err != nil {
		s.logger.Debug("submission failed",
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		s.writeError(w, err)
		return
	}

	s.jsonResponse(w, result, http.StatusOK)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, security.MaxEnvelopeSize))
	if err != nil {
		s.jsonError(w, "failed to read request body", http.StatusRequestEntityTooLarge)
		return
	}

	s.logger.Debug("callback received",
		"request_id", middleware.GetReqID(r.Context()),
		"remote", r.RemoteAddr,
		"content-length", len(body),
	)

	msg, err := s.callbacks.HandleCallback(r.Context(), body)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.jsonResponse(w, msg.Document, http.StatusOK)
}
