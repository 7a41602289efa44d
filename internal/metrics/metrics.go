// Package metrics exposes Prometheus collectors for the check-in service
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/navikt/benchroom/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reconciler metrics
	CheckInsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "benchroom_checkins_submitted_total",
			Help: "Total number of check-ins written to the ledger",
		},
	)

	CheckOuts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchroom_checkouts_total",
			Help: "Total number of checkout attempts by result",
		},
		[]string{"result"}, // "ok", "already_checked_out", "not_found", "error"
	)

	OrphanedCheckIns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "benchroom_orphaned_checkins_total",
			Help: "Check-ins written whose room update failed afterwards",
		},
	)

	RoomOccupancy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "benchroom_room_occupancy",
			Help: "Current occupancy counter of the room",
		},
	)

	BenchesInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "benchroom_benches_in_use",
			Help: "Number of distinct benches currently marked in use",
		},
	)

	OccupancyDrift = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "benchroom_occupancy_drift",
			Help: "Occupancy counter minus the number of benches in use",
		},
	)

	// Live update metrics
	SSEClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "benchroom_sse_clients",
			Help: "Number of connected server-sent event clients",
		},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "benchroom_support_websocket_connections",
			Help: "Number of open support relay connections",
		},
	)

	WebSocketDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "benchroom_support_websocket_dropped_total",
			Help: "Support relay clients disconnected because their send queue was full",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "benchroom_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "benchroom_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordRoom updates the room gauges from a room snapshot
func RecordRoom(room *models.Room) {
	if room == nil {
		return
	}
	RoomOccupancy.Set(float64(room.CurrentOccupancy))
	BenchesInUse.Set(float64(len(room.BenchesInUse)))
	OccupancyDrift.Set(float64(room.Drift()))
}

// RecordCheckOut counts a checkout attempt
func RecordCheckOut(result string) {
	CheckOuts.WithLabelValues(result).Inc()
}

// RecordAPIRequest records one served HTTP request
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the recorder
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Instrument wraps a handler and records its latency under endpoint
func Instrument(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		RecordAPIRequest(r.Method, endpoint, rec.status, time.Since(start))
	})
}
