package api

import (
	"net/http"
	"strings"

	"github.com/navikt/benchroom/internal/authz"
	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/service"
)

// SessionListResponse wraps the active support sessions
type SessionListResponse struct {
	Sessions []*models.SupportSession `json:"sessions"`
}

// SupportHandler handles HTTP requests for live-support sessions
type SupportHandler struct {
	support SupportServicer
	guard   AdminGuard
}

// NewSupportHandler creates a new support session handler
func NewSupportHandler(support SupportServicer, guard AdminGuard) *SupportHandler {
	return &SupportHandler{
		support: support,
		guard:   guard,
	}
}

// ServeHTTP handles /api/support/sessions[/{id}/end]
func (h *SupportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 3 || pathParts[2] != "sessions" {
		http.NotFound(w, r)
		return
	}

	switch {
	case len(pathParts) == 3 && r.Method == http.MethodPost:
		h.startSession(w, r)
	case len(pathParts) == 3 && r.Method == http.MethodGet:
		h.guard.Require(authz.ObjectSupport, authz.ActionRead, h.listSessions)(w, r)
	case len(pathParts) == 5 && pathParts[4] == "end" && r.Method == http.MethodPost:
		sessionID := pathParts[3]
		h.guard.Require(authz.ObjectSupport, authz.ActionEnd, func(w http.ResponseWriter, r *http.Request) {
			h.endSession(w, r, sessionID)
		})(w, r)
	case len(pathParts) == 3 || (len(pathParts) == 5 && pathParts[4] == "end"):
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

// startSession handles POST /api/support/sessions
func (h *SupportHandler) startSession(w http.ResponseWriter, r *http.Request) {
	var req service.StartSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.support.StartSession(r.Context(), req.UserName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// listSessions handles GET /api/support/sessions
func (h *SupportHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: h.support.ListActiveSessions(r.Context())})
}

// endSession handles POST /api/support/sessions/{id}/end
func (h *SupportHandler) endSession(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.support.EndSession(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
