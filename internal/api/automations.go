package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-automation/internal/automation"
)

// History query limits.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// parseLimit reads ?limit=, falling back to def and capping at maxHistoryLimit.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, maxHistoryLimit), nil
}

func (s *Server) handleListAutomations(w http.ResponseWriter, _ *http.Request) {
	if s.automations == nil {
		writeUnavailable(w, "automation engine not available")
		return
	}
	list := s.automations.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"automations": list,
		"count":       len(list),
	})
}

func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	if s.automations == nil {
		writeUnavailable(w, "automation engine not available")
		return
	}
	rule, err := s.automations.Get(chi.URLParam(r, "id"))
	if errors.Is(err, automation.ErrRuleNotFound) {
		writeNotFound(w, "automation not found")
		return
	}
	if err != nil {
		writeInternalError(w, "failed to get automation")
		return
	}
	writeJSON(w, http.StatusOK, rule.Status())
}

// handleDeleteAutomation disposes a rule until the next restart or
// configuration reload.
func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	if s.automations == nil {
		writeUnavailable(w, "automation engine not available")
		return
	}
	id := chi.URLParam(r, "id")
	err := s.automations.Remove(id)
	if errors.Is(err, automation.ErrRuleNotFound) {
		writeNotFound(w, "automation not found")
		return
	}
	if err != nil {
		writeInternalError(w, "failed to remove automation")
		return
	}
	s.logger.Info("automation removed via API", "automation", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	if s.automations == nil {
		writeUnavailable(w, "automation engine not available")
		return
	}
	limit, err := parseLimit(r, defaultHistoryLimit)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	records, err := s.automations.Triggers(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("listing triggers failed", "automation", id, "error", err)
		writeInternalError(w, "failed to list triggers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"automation_id": id,
		"triggers":      nonNil(records),
		"count":         len(records),
	})
}

func (s *Server) handleRecentTriggers(w http.ResponseWriter, r *http.Request) {
	if s.automations == nil {
		writeUnavailable(w, "automation engine not available")
		return
	}
	limit, err := parseLimit(r, defaultHistoryLimit)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	records, err := s.automations.RecentTriggers(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing recent triggers failed", "error", err)
		writeInternalError(w, "failed to list triggers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"triggers": nonNil(records),
		"count":    len(records),
	})
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
