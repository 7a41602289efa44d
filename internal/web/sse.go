package web

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/navikt/benchroom/internal/logging"
	"github.com/navikt/benchroom/internal/metrics"
	"github.com/navikt/benchroom/internal/models"
	"github.com/r3labs/sse/v2"
)

// UpdatesStream is the single stream every page subscribes to
const UpdatesStream = "updates"

// SSEManager pushes "update" events to connected pages whenever the room,
// the check-in ledger or a support session changes
type SSEManager struct {
	server  *sse.Server
	clients atomic.Int64
}

// NewSSEManager creates a new server-sent events manager
func NewSSEManager() *SSEManager {
	sm := &SSEManager{}

	sm.server = sse.NewWithCallback(
		func(streamID string, sub *sse.Subscriber) {
			metrics.SSEClients.Set(float64(sm.clients.Add(1)))
			logging.Debug().Str("stream", streamID).Msg("SSE client connected")
		},
		func(streamID string, sub *sse.Subscriber) {
			metrics.SSEClients.Set(float64(sm.clients.Add(-1)))
			logging.Debug().Str("stream", streamID).Msg("SSE client disconnected")
		},
	)
	// Pages re-fetch their partials on every event, so old events are never replayed
	sm.server.AutoReplay = false
	sm.server.Headers = map[string]string{
		"Cache-Control":     "no-cache, no-transform",
		"X-Accel-Buffering": "no",
	}
	sm.server.CreateStream(UpdatesStream)

	return sm
}

// ServeHTTP implements the http.Handler interface for SSE connections
func (sm *SSEManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Query().Get("stream") == "" {
		r = r.Clone(r.Context())
		q := r.URL.Query()
		q.Set("stream", UpdatesStream)
		r.URL.RawQuery = q.Encode()
	}

	sm.server.ServeHTTP(w, r)
}

// Notify publishes an update event for a change
func (sm *SSEManager) Notify(change models.Change) {
	event := &sse.Event{
		ID:    []byte(strconv.FormatInt(time.Now().UnixNano(), 10)),
		Event: []byte("update"),
		Data:  []byte(change.Kind),
	}
	if !sm.server.TryPublish(UpdatesStream, event) {
		logging.Warn().Str("kind", string(change.Kind)).Msg("SSE stream buffer full - update dropped")
	}
}

// ClientCount returns the number of connected SSE clients
func (sm *SSEManager) ClientCount() int {
	return int(sm.clients.Load())
}

// Shutdown closes every stream and disconnects all clients
func (sm *SSEManager) Shutdown() {
	sm.server.Close()
}
