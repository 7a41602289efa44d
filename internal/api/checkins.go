package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/navikt/benchroom/internal/authz"
	"github.com/navikt/benchroom/internal/logging"
	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/service"
	"github.com/navikt/benchroom/internal/utils"
)

// CheckInCreatedResponse is returned after a successful submission
type CheckInCreatedResponse struct {
	ID string `json:"id"`
}

// CheckInListResponse wraps a list of ledger records
type CheckInListResponse struct {
	CheckIns []*models.CheckIn `json:"checkIns"`
}

// CheckInHandler handles HTTP requests for the check-in ledger
type CheckInHandler struct {
	occupancy OccupancyServicer
	guard     AdminGuard
}

// NewCheckInHandler creates a new check-in handler
func NewCheckInHandler(occupancy OccupancyServicer, guard AdminGuard) *CheckInHandler {
	return &CheckInHandler{
		occupancy: occupancy,
		guard:     guard,
	}
}

// ServeHTTP handles HTTP requests for check-ins.
// Path format: /api/checkins[/{id}[/checkout]]
func (h *CheckInHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	var checkInID, action string
	if len(pathParts) >= 3 {
		checkInID = pathParts[2]
	}
	if len(pathParts) == 4 {
		action = pathParts[3]
	}

	switch {
	case len(pathParts) > 4 || (action != "" && action != "checkout"):
		http.NotFound(w, r)
	case checkInID == "" && action != "":
		http.NotFound(w, r)
	case checkInID == "" && r.Method == http.MethodPost:
		h.submitCheckIn(w, r)
	case checkInID == "" && r.Method == http.MethodGet:
		h.listCheckIns(w, r)
	case checkInID != "" && action == "" && r.Method == http.MethodGet:
		h.getCheckIn(w, r, checkInID)
	case action == "checkout" && r.Method == http.MethodPost:
		h.guard.Require(authz.ObjectCheckIns, authz.ActionCheckout, func(w http.ResponseWriter, r *http.Request) {
			h.checkOut(w, r, checkInID)
		})(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// submitCheckIn handles POST /api/checkins
func (h *CheckInHandler) submitCheckIn(w http.ResponseWriter, r *http.Request) {
	var req service.CheckInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	id, err := h.occupancy.SubmitCheckIn(ctx, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CheckInCreatedResponse{ID: id})
}

// listCheckIns handles GET /api/checkins?active=true|false
func (h *CheckInHandler) listCheckIns(w http.ResponseWriter, r *http.Request) {
	activeOnly := true
	if raw := r.URL.Query().Get("active"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_QUERY", "active must be true or false")
			return
		}
		activeOnly = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	var (
		checkIns []*models.CheckIn
		err      error
	)
	if activeOnly {
		checkIns, err = h.occupancy.ActiveCheckIns(ctx)
	} else {
		checkIns, err = h.occupancy.AllCheckIns(ctx)
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CheckInListResponse{CheckIns: checkIns})
}

// getCheckIn handles GET /api/checkins/{id}
func (h *CheckInHandler) getCheckIn(w http.ResponseWriter, r *http.Request, id string) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	checkIn, err := h.occupancy.GetCheckIn(ctx, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkIn)
}

// checkOut handles POST /api/checkins/{id}/checkout.
// An empty body releases the benches of the check-in itself.
func (h *CheckInHandler) checkOut(w http.ResponseWriter, r *http.Request, id string) {
	var req service.CheckOutRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	if err := h.occupancy.CheckOut(ctx, id, req.Benches); err != nil {
		writeServiceError(w, r, err)
		return
	}

	logging.Info().Str("checkInId", utils.SanitizeLogString(id)).Msg("Check-out performed through API")
	w.WriteHeader(http.StatusNoContent)
}
