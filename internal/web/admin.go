package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/navikt/benchroom/internal/authz"
	"github.com/navikt/benchroom/internal/logging"
	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/service"
	"github.com/navikt/benchroom/internal/utils"
)

// Messages shown on the admin pages
const (
	msgSaved          = "Changes saved successfully!"
	msgSaveFailed     = "Failed to save changes. Please try again."
	msgCheckedOut     = "Check-out successful."
	msgCheckOutFailed = "Failed to check out. Please try again."
)

// AdminGuard wraps admin handlers with authentication and an authorization decision
type AdminGuard interface {
	Require(object, action string, next http.HandlerFunc) http.HandlerFunc
}

// AdminHandler manages admin dashboard requests
type AdminHandler struct {
	occupancy OccupancyViewer
	support   SupportDesk
	guard     AdminGuard
	templates *template.Template
	now       func() time.Time
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(occupancy OccupancyViewer, support SupportDesk, guard AdminGuard) (*AdminHandler, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	return &AdminHandler{
		occupancy: occupancy,
		support:   support,
		guard:     guard,
		templates: tmpl,
		now:       time.Now,
	}, nil
}

// SetupAdminRoutes registers admin routes on the given mux with authentication
func (h *AdminHandler) SetupAdminRoutes(mux *http.ServeMux) {
	g := h.guard

	mux.HandleFunc("/admin", g.Require(authz.ObjectRoom, authz.ActionRead, h.handleAdminDashboard))
	mux.HandleFunc("/admin/room", g.Require(authz.ObjectRoom, authz.ActionUpdate, h.handleUpdateRoom))
	mux.HandleFunc("/admin/checkins", g.Require(authz.ObjectCheckIns, authz.ActionRead, h.handleCheckInRecords))
	mux.HandleFunc("/admin/checkins/", g.Require(authz.ObjectCheckIns, authz.ActionCheckout, h.handleCheckOut))
	mux.HandleFunc("/admin/partial/checkins", g.Require(authz.ObjectCheckIns, authz.ActionRead, h.handlePartialCheckIns))
	mux.HandleFunc("/admin/support", g.Require(authz.ObjectSupport, authz.ActionRead, h.handleSupportSessions))
	mux.HandleFunc("/admin/support/", g.Require(authz.ObjectSupport, authz.ActionEnd, h.handleEndSession))
	mux.HandleFunc("/admin/partial/support", g.Require(authz.ObjectSupport, authz.ActionRead, h.handlePartialSessions))
}

type checkInTableView struct {
	Page
	Status   *models.RoomStatus
	CheckIns []*models.CheckIn
	ReturnTo string
	Notice   string
	Error    string
}

// handleAdminDashboard renders the room form and the active sessions
func (h *AdminHandler) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := h.occupancy.RoomStatus(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Error getting room status")
		http.Error(w, "Failed to get room data", http.StatusInternalServerError)
		return
	}

	active, err := h.occupancy.ActiveCheckIns(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Error getting active check-ins")
		http.Error(w, "Failed to get check-ins", http.StatusInternalServerError)
		return
	}

	view := checkInTableView{
		Page:     newPage("Admin", h.now()),
		Status:   status,
		CheckIns: active,
		ReturnTo: "/admin",
	}
	view.Notice, view.Error = flashMessages(r)

	renderTemplate(h.templates, w, http.StatusOK, "dashboard.html", view)
}

// handleCheckInRecords renders the full check-in history
func (h *AdminHandler) handleCheckInRecords(w http.ResponseWriter, r *http.Request) {
	all, err := h.occupancy.AllCheckIns(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Error getting check-in records")
		http.Error(w, "Failed to get check-ins", http.StatusInternalServerError)
		return
	}

	view := checkInTableView{
		Page:     newPage("Check-in records", h.now()),
		CheckIns: all,
		ReturnTo: "/admin/checkins",
	}
	view.Notice, view.Error = flashMessages(r)

	renderTemplate(h.templates, w, http.StatusOK, "checkins.html", view)
}

// handlePartialCheckIns renders the check-in table for htmx updates.
// ?all=true includes checked-out records.
func (h *AdminHandler) handlePartialCheckIns(w http.ResponseWriter, r *http.Request) {
	view := checkInTableView{ReturnTo: "/admin"}

	var err error
	if r.URL.Query().Get("all") == "true" {
		view.ReturnTo = "/admin/checkins"
		view.CheckIns, err = h.occupancy.AllCheckIns(r.Context())
	} else {
		view.CheckIns, err = h.occupancy.ActiveCheckIns(r.Context())
	}
	if err != nil {
		logging.Error().Err(err).Msg("Error getting check-ins")
		http.Error(w, "Failed to get check-ins", http.StatusInternalServerError)
		return
	}

	renderTemplate(h.templates, w, http.StatusOK, "checkin_table", view)
}

// handleUpdateRoom applies the room form (POST only)
func (h *AdminHandler) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	update, err := roomUpdateFromForm(r)
	if err == nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		_, err = h.occupancy.UpdateRoomInfo(ctx, update)
	}
	if err != nil {
		logging.Warn().Err(err).Msg("Room update failed")
		http.Redirect(w, r, "/admin?error=save", http.StatusSeeOther)
		return
	}

	logging.Info().Msg("Room information updated from admin dashboard")
	http.Redirect(w, r, "/admin?notice=saved", http.StatusSeeOther)
}

// roomUpdateFromForm reads the dashboard form. The availability checkbox is
// absent from the form when unchecked.
func roomUpdateFromForm(r *http.Request) (service.RoomInfoUpdate, error) {
	name := r.PostForm.Get("name")
	availability := r.PostForm.Get("availability") == "true"

	update := service.RoomInfoUpdate{
		Name:         &name,
		Availability: &availability,
	}

	for field, target := range map[string]**int{
		"capacity":         &update.Capacity,
		"currentOccupancy": &update.CurrentOccupancy,
	} {
		raw := strings.TrimSpace(r.PostForm.Get(field))
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			return service.RoomInfoUpdate{}, errors.New(field + " must be a whole number")
		}
		*target = &value
	}

	return update, nil
}

// handleCheckOut checks out a session (POST /admin/checkins/{id}/checkout)
func (h *AdminHandler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := pathAction(r.URL.Path, "/admin/checkins/", "checkout")
	if !ok {
		http.NotFound(w, r)
		return
	}

	returnTo := "/admin"
	if err := r.ParseForm(); err == nil && r.PostForm.Get("return") == "/admin/checkins" {
		returnTo = "/admin/checkins"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.occupancy.CheckOut(ctx, id, nil); err != nil {
		logging.Warn().Err(err).Str("checkInId", utils.SanitizeLogString(id)).Msg("Check-out failed")
		http.Redirect(w, r, returnTo+"?error=checkout", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, returnTo+"?notice=checkedout", http.StatusSeeOther)
}

type sessionsView struct {
	Page
	Sessions []*models.SupportSession
}

// handleSupportSessions renders the active support sessions
func (h *AdminHandler) handleSupportSessions(w http.ResponseWriter, r *http.Request) {
	view := sessionsView{
		Page:     newPage("Support sessions", h.now()),
		Sessions: h.support.ListActiveSessions(r.Context()),
	}
	renderTemplate(h.templates, w, http.StatusOK, "admin_support.html", view)
}

// handlePartialSessions renders the session table for htmx updates
func (h *AdminHandler) handlePartialSessions(w http.ResponseWriter, r *http.Request) {
	view := sessionsView{Sessions: h.support.ListActiveSessions(r.Context())}
	renderTemplate(h.templates, w, http.StatusOK, "session_table", view)
}

// handleEndSession ends a support session (POST /admin/support/{id}/end)
func (h *AdminHandler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := pathAction(r.URL.Path, "/admin/support/", "end")
	if !ok {
		http.NotFound(w, r)
		return
	}

	if err := h.support.EndSession(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			http.NotFound(w, r)
			return
		}
		logging.Error().Err(err).Str("sessionId", utils.SanitizeLogString(id)).Msg("Ending support session failed")
		http.Error(w, "Failed to end session", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/admin/support", http.StatusSeeOther)
}

// pathAction extracts {id} from prefix + "{id}/" + action
func pathAction(path, prefix, action string) (string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	id, act, found := strings.Cut(rest, "/")
	if !found || id == "" || act != action {
		return "", false
	}
	return id, true
}

// flashMessages maps the redirect query flags to the page messages
func flashMessages(r *http.Request) (notice, errMsg string) {
	switch r.URL.Query().Get("notice") {
	case "saved":
		notice = msgSaved
	case "checkedout":
		notice = msgCheckedOut
	}
	switch r.URL.Query().Get("error") {
	case "save":
		errMsg = msgSaveFailed
	case "checkout":
		errMsg = msgCheckOutFailed
	}
	return notice, errMsg
}
