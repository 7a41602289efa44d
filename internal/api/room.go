package api

import (
	"context"
	"net/http"
	"time"

	"github.com/navikt/benchroom/internal/authz"
	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/service"
)

// storeTimeout bounds the store operations of a single API request
const storeTimeout = 5 * time.Second

// AvailableBenchesResponse lists the benches free for a new check-in
type AvailableBenchesResponse struct {
	Benches []models.Bench `json:"benches"`
}

// RoomHandler handles HTTP requests for the room document
type RoomHandler struct {
	occupancy OccupancyServicer
	guard     AdminGuard
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(occupancy OccupancyServicer, guard AdminGuard) *RoomHandler {
	return &RoomHandler{
		occupancy: occupancy,
		guard:     guard,
	}
}

// ServeHTTP routes /api/room and /api/room/benches/available
func (h *RoomHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/room" && r.Method == http.MethodGet:
		h.getRoom(w, r)
	case r.URL.Path == "/api/room" && r.Method == http.MethodPut:
		h.guard.Require(authz.ObjectRoom, authz.ActionUpdate, h.updateRoom)(w, r)
	case r.URL.Path == "/api/room/benches/available" && r.Method == http.MethodGet:
		h.availableBenches(w, r)
	case r.URL.Path == "/api/room" || r.URL.Path == "/api/room/benches/available":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

// getRoom handles GET /api/room
func (h *RoomHandler) getRoom(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	room, err := h.occupancy.GetRoom(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// updateRoom handles PUT /api/room
func (h *RoomHandler) updateRoom(w http.ResponseWriter, r *http.Request) {
	var update service.RoomInfoUpdate
	if !decodeJSON(w, r, &update) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	room, err := h.occupancy.UpdateRoomInfo(ctx, update)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// availableBenches handles GET /api/room/benches/available
func (h *RoomHandler) availableBenches(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	benches, err := h.occupancy.AvailableBenches(ctx)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailableBenchesResponse{Benches: benches})
}
