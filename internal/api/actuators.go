package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-automation/internal/actuator"
)

// manualCommandTimeout bounds a manual actuator command.
const manualCommandTimeout = 5 * time.Second

// SetStateRequest is the body of PUT /actuators/{id}/state.
type SetStateRequest struct {
	State actuator.State `json:"state"`
}

func (s *Server) handleListActuators(w http.ResponseWriter, r *http.Request) {
	if s.actuators == nil {
		writeUnavailable(w, "actuators not available")
		return
	}
	list := s.actuators.List()
	if area := r.URL.Query().Get("area"); area != "" {
		filtered := list[:0:0]
		for _, a := range list {
			if a.Area == area {
				filtered = append(filtered, a)
			}
		}
		list = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"actuators": nonNil(list),
		"count":     len(list),
	})
}

func (s *Server) handleGetActuator(w http.ResponseWriter, r *http.Request) {
	if s.actuators == nil {
		writeUnavailable(w, "actuators not available")
		return
	}
	status, err := s.actuators.Get(chi.URLParam(r, "id"))
	if errors.Is(err, actuator.ErrUnknownActuator) {
		writeNotFound(w, "actuator not found")
		return
	}
	if err != nil {
		writeInternalError(w, "failed to get actuator")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleSetActuatorState sends a manual command. The command is tagged
// with actuator.SourceAPI.
func (s *Server) handleSetActuatorState(w http.ResponseWriter, r *http.Request) {
	if s.actuators == nil {
		writeUnavailable(w, "actuators not available")
		return
	}

	var req SetStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.State == "" {
		writeBadRequest(w, "state is required")
		return
	}

	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), manualCommandTimeout)
	defer cancel()

	err := s.actuators.SetState(actuator.WithSource(ctx, actuator.SourceAPI), id, req.State)
	switch {
	case err == nil:
	case errors.Is(err, actuator.ErrUnknownActuator):
		writeNotFound(w, "actuator not found")
		return
	case errors.Is(err, actuator.ErrInvalidState):
		writeValidation(w, err.Error())
		return
	case errors.Is(err, actuator.ErrDisabled):
		writeConflict(w, "actuator is disabled")
		return
	default:
		s.logger.Warn("manual actuator command failed", "actuator", id, "state", req.State, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, "command could not be delivered")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"actuator_id": id,
		"state":       req.State,
		"source":      actuator.SourceAPI,
	})
}

func (s *Server) handleEnableActuator(w http.ResponseWriter, r *http.Request) {
	s.setActuatorEnabled(w, r, true)
}

func (s *Server) handleDisableActuator(w http.ResponseWriter, r *http.Request) {
	s.setActuatorEnabled(w, r, false)
}

func (s *Server) setActuatorEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	if s.actuators == nil {
		writeUnavailable(w, "actuators not available")
		return
	}
	id := chi.URLParam(r, "id")
	set := s.actuators.Disable
	if enabled {
		set = s.actuators.Enable
	}
	if err := set(id); err != nil {
		if errors.Is(err, actuator.ErrUnknownActuator) {
			writeNotFound(w, "actuator not found")
			return
		}
		writeInternalError(w, "failed to update actuator")
		return
	}
	status, err := s.actuators.Get(id)
	if err != nil {
		writeInternalError(w, "failed to get actuator")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
