// Package api provides HTTP handlers for DialogKit endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/DialogKit/internal/models"
	"github.com/google/uuid"
)

func (s *Server) turnHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.turnHandler: processing turn request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.turnHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.turnHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
		slog.Debug("Server.turnHandler: minted new session", "session", sessionID)
	}

	response, err := s.manager.HandleTurn(r.Context(), sessionID, req.Input)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			slog.Warn("Server.turnHandler: invalid input", "error", err, "session", sessionID)
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
			return
		}
		slog.Error("Server.turnHandler: turn failed", "error", err, "session", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process turn"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(response))
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.stateHandler: processing state request", "method", r.Method)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing session parameter"))
		return
	}
	snapshot, err := s.store.LoadSnapshot(r.Context(), sessionID)
	if err != nil {
		slog.Error("Server.stateHandler: loading snapshot failed", "error", err, "session", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session state"))
		return
	}
	if snapshot == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(snapshot))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}
