// Package web serves the HTML pages of benchroom and their live-update stream
package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/navikt/benchroom/internal/logging"
	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/service"
	"github.com/navikt/benchroom/internal/utils"
	"github.com/navikt/benchroom/internal/validation"
)

// Messages shown on the public forms
const (
	msgCheckInInvalid = "Please select at least one bench and specify a check-out time."
	msgCheckInFailed  = "Failed to log check-in. Please try again."
	msgCheckInDone    = "Check-in successful!"
	msgNameRequired   = "Please enter your name to start the chat."
	msgSupportFailed  = "Failed to start the chat. Please try again."
)

// Handler manages public web UI requests
type Handler struct {
	occupancy  OccupancyViewer
	support    SupportDesk
	templates  *template.Template
	sseManager *SSEManager
	now        func() time.Time
}

// NewHandler creates a new web UI handler
func NewHandler(occupancy OccupancyViewer, support SupportDesk, sseManager *SSEManager) (*Handler, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	return &Handler{
		occupancy:  occupancy,
		support:    support,
		templates:  tmpl,
		sseManager: sseManager,
		now:        time.Now,
	}, nil
}

// SetupRoutes registers web UI routes on the given mux
func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.Handle("/events", h.sseManager)
	mux.HandleFunc("/", h.handleIndex)
	mux.HandleFunc("/partial/room", h.handlePartialRoom)
	mux.HandleFunc("/checkin", h.handleCheckIn)
	mux.HandleFunc("/support", h.handleSupport)
}

// handleIndex renders the room information page
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	status, err := h.occupancy.RoomStatus(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Error getting room status")
		http.Error(w, "Failed to get room data", http.StatusInternalServerError)
		return
	}

	viewModel := struct {
		Page
		Status *models.RoomStatus
		Notice string
	}{
		Page:   newPage("Room", h.now()),
		Status: status,
	}
	if r.URL.Query().Get("checkedIn") != "" {
		viewModel.Notice = msgCheckInDone
	}

	h.render(w, http.StatusOK, "index.html", viewModel)
}

// handlePartialRoom renders just the room status block for htmx updates
func (h *Handler) handlePartialRoom(w http.ResponseWriter, r *http.Request) {
	status, err := h.occupancy.RoomStatus(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Error getting room status")
		http.Error(w, "Failed to get room data", http.StatusInternalServerError)
		return
	}

	h.render(w, http.StatusOK, "room_status", status)
}

type checkInView struct {
	Page
	Available []models.Bench
	TimeIn    string
	TimeOut   string
	Error     string
}

// handleCheckIn shows the check-in form and accepts its submission
func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.renderCheckIn(w, r, http.StatusOK, checkInView{TimeIn: h.now().Format(models.TimeOfDayLayout)})
	case http.MethodPost:
		h.submitCheckIn(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) submitCheckIn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	req := service.CheckInRequest{
		TimeIn:  r.PostForm.Get("timeIn"),
		TimeOut: r.PostForm.Get("timeOut"),
	}
	for _, b := range r.PostForm["benches"] {
		req.Benches = append(req.Benches, models.Bench(b))
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, err := h.occupancy.SubmitCheckIn(ctx, req)
	if err != nil {
		view := checkInView{TimeIn: req.TimeIn, TimeOut: req.TimeOut, Error: msgCheckInFailed}
		status := http.StatusInternalServerError

		var verr *validation.RequestValidationError
		if errors.As(err, &verr) {
			view.Error = msgCheckInInvalid
			status = http.StatusBadRequest
		} else {
			logging.Error().Err(err).Msg("Check-in submission failed")
		}
		h.renderCheckIn(w, r, status, view)
		return
	}

	logging.Info().Str("checkInId", id).Msg("Check-in submitted from web form")
	http.Redirect(w, r, "/?checkedIn=1", http.StatusSeeOther)
}

func (h *Handler) renderCheckIn(w http.ResponseWriter, r *http.Request, status int, view checkInView) {
	available, err := h.occupancy.AvailableBenches(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Error getting available benches")
		http.Error(w, "Failed to get room data", http.StatusInternalServerError)
		return
	}

	view.Page = newPage("Check in", h.now())
	view.Available = available
	h.render(w, status, "checkin.html", view)
}

type supportView struct {
	Page
	Session  *models.SupportSession
	UserName string
	Error    string
}

// handleSupport shows the support form and starts a session on submission
func (h *Handler) handleSupport(w http.ResponseWriter, r *http.Request) {
	view := supportView{Page: newPage("Support", h.now())}

	switch r.Method {
	case http.MethodGet:
		h.render(w, http.StatusOK, "support.html", view)
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}
		view.UserName = r.PostForm.Get("userName")

		session, err := h.support.StartSession(r.Context(), view.UserName)
		if err != nil {
			if errors.Is(err, service.ErrInvalidUserName) {
				view.Error = msgNameRequired
				h.render(w, http.StatusBadRequest, "support.html", view)
				return
			}
			logging.Error().Err(err).Str("userName", utils.SanitizeLogString(view.UserName)).Msg("Starting support session failed")
			view.Error = msgSupportFailed
			h.render(w, http.StatusInternalServerError, "support.html", view)
			return
		}

		view.Session = session
		h.render(w, http.StatusOK, "support.html", view)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// render executes a named template, logging failures once headers are sent
func (h *Handler) render(w http.ResponseWriter, status int, name string, data interface{}) {
	renderTemplate(h.templates, w, status, name, data)
}

func renderTemplate(tmpl *template.Template, w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		logging.Error().Err(err).Str("template", name).Msg("Error rendering template")
	}
}

// Shutdown gracefully shuts down the web handler and its SSE manager
func (h *Handler) Shutdown() {
	h.sseManager.Shutdown()
}
