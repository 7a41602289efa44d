// Package api provides the HTTP handlers for the benchroom JSON API
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/navikt/benchroom/internal/logging"
)

// HealthResponse represents the response for health check endpoints
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthLiveHandler handles Kubernetes liveness probe requests
func HealthLiveHandler(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status: "UP",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// NewHealthReadyHandler returns a readiness probe that pings the store
func NewHealthReadyHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		response := HealthResponse{Status: "UP"}
		status := http.StatusOK
		if err := store.Ping(ctx); err != nil {
			logging.Warn().Err(err).Msg("Readiness check failed")
			response.Status = "DOWN"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(response)
	}
}
