package api

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/navikt/benchroom/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies holds everything the API routes are built from
type Dependencies struct {
	Occupancy OccupancyServicer
	Support   SupportServicer
	Store     Pinger
	Guard     AdminGuard
	// WebhookSecret verifies call events; empty disables verification
	WebhookSecret string
	// RateLimitPerMinute caps public API requests per client IP; 0 disables the limit
	RateLimitPerMinute int
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(deps Dependencies) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoints for Kubernetes
	mux.HandleFunc("/health/live", HealthLiveHandler)
	mux.HandleFunc("/health/ready", NewHealthReadyHandler(deps.Store))
	mux.Handle("/metrics", promhttp.Handler())

	limit := rateLimiter(deps.RateLimitPerMinute)

	roomHandler := limit(metrics.Instrument("/api/room", NewRoomHandler(deps.Occupancy, deps.Guard)))
	mux.Handle("/api/room", roomHandler)
	mux.Handle("/api/room/", roomHandler)

	checkInHandler := limit(metrics.Instrument("/api/checkins", NewCheckInHandler(deps.Occupancy, deps.Guard)))
	mux.Handle("/api/checkins", checkInHandler)
	mux.Handle("/api/checkins/", checkInHandler)

	// The webhook is registered on the more specific path so it is not caught by the sessions handler
	mux.Handle("/api/support/webhook", metrics.Instrument("/api/support/webhook", NewWebhookHandler(deps.Support, deps.WebhookSecret)))
	mux.Handle("/api/support/", limit(metrics.Instrument("/api/support/sessions", NewSupportHandler(deps.Support, deps.Guard))))

	return mux
}

func rateLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.LimitByIP(perMinute, time.Minute)
}
