package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-automation/internal/events"
)

// PublishEventRequest is the body of POST /events.
//
//	{"kind": "sensor.motion", "scope": "kitchen",
//	 "payload": {"sensor_id": "pir-kitchen", "area": "kitchen", "detected": true}}
type PublishEventRequest struct {
	Kind    string          `json:"kind"`
	Scope   string          `json:"scope"`
	Payload json.RawMessage `json:"payload"`
}

// handlePublishEvent injects a synthetic event. It answers after every
// matching handler has completed.
func (s *Server) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeUnavailable(w, "event bus not available")
		return
	}

	var req PublishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Kind == "" {
		writeBadRequest(w, "kind is required")
		return
	}

	payload, err := events.Decode(req.Kind, req.Payload)
	if errors.Is(err, events.ErrNotDecodable) {
		writeValidation(w, err.Error())
		return
	}
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.bus.Publish(r.Context(), payload, req.Scope); err != nil {
		writeUnavailable(w, err.Error())
		return
	}

	s.logger.Info("synthetic event published", "kind", req.Kind, "scope", req.Scope)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"kind":  payload.Kind().Name(),
		"scope": req.Scope,
	})
}

// handleDiagnostics returns the newest journal entries and per-severity
// counts.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if s.diagnostics == nil {
		writeUnavailable(w, "diagnostics not available")
		return
	}
	limit, err := parseLimit(r, defaultHistoryLimit)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	entries := s.diagnostics.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": nonNil(entries),
		"counts":  s.diagnostics.Counts(),
	})
}
