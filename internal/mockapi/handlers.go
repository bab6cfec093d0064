package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/energynexus/nexus-cli/internal/models"
)

// errorResponse mirrors the service's error body
type errorResponse struct {
	Error   string                   `json:"error"`
	Code    string                   `json:"code"`
	Message string                   `json:"message"`
	Details []models.ValidationError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, msg)
}

func writeError(w http.ResponseWriter, status int, code, message string, details ...models.ValidationError) {
	writeJSON(w, status, errorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Message: message,
		Details: details,
	})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "pong")
}

func (s *Server) handleFullReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.report())
}

func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.weekly())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, string(s.store.getStatus()))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	switch err := s.startSimulation(); {
	case errors.Is(err, errAlreadyRunning):
		writeText(w, http.StatusOK, "Simulation already running")
	case errors.Is(err, errNoDataset):
		writeError(w, http.StatusConflict, "NO_DATASET", err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	default:
		writeText(w, http.StatusOK, "Simulation started")
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.stopSimulation() {
		writeText(w, http.StatusOK, "Simulation is not running")
		return
	}
	writeText(w, http.StatusOK, "Simulation stopped")
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if s.store.getStatus() == models.StatusStreaming {
		writeError(w, http.StatusConflict, "STREAMING", "stop the simulation before clearing data")
		return
	}
	s.store.clear()
	slog.Info("stored readings cleared")
	writeText(w, http.StatusOK, "All data cleared")
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.store.getStatus() == models.StatusStreaming {
		writeError(w, http.StatusConflict, "STREAMING", "stop the simulation before uploading a dataset")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	n, err := s.ingest(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_DATASET", err.Error())
		return
	}
	writeText(w, http.StatusOK, fmt.Sprintf("Dataset loaded: %d records queued", n))
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.users())
}

type changeRoleRequest struct {
	Email   string `json:"email"`
	NewRole string `json:"newRole"`
}

func (s *Server) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	var req changeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid JSON body")
		return
	}
	role, ok := models.ParseRole(req.NewRole)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", fmt.Sprintf("unknown role %q", req.NewRole))
		return
	}
	if !s.store.setRole(req.Email, role) {
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "no user with that email")
		return
	}
	writeText(w, http.StatusOK, fmt.Sprintf("Role of %s changed to %s", req.Email, role))
}
