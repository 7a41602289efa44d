// Package support relays chat and call signaling between the members of a
// live-support channel over websockets
package support

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/navikt/benchroom/internal/logging"
	"github.com/navikt/benchroom/internal/metrics"
	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/utils"
)

// ErrBackpressure is returned when a client's send queue is full
var ErrBackpressure = errors.New("backpressure")

var errClientClosed = errors.New("connection closed")

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
	maxFrameSize = 64 * 1024
)

// client is one websocket connection on a channel
type client struct {
	id      string
	user    string
	channel string
	conn    *websocket.Conn
	send    chan []byte

	mu     sync.RWMutex
	closed bool
}

// trySend queues a frame without blocking
func (c *client) trySend(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errClientClosed
	}
	select {
	case c.send <- frame:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

// Sessions decides which connections may join a support channel
type Sessions interface {
	IsActiveChannel(channel string) bool
	AuthorizeJoin(channel, user, token string) bool
}

// Hub keeps the connections of every support channel
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*client]struct{}

	upgrader websocket.Upgrader
	sessions Sessions
	now      func() time.Time
}

// NewHub creates a hub that admits connections approved by sessions
func NewHub(sessions Sessions) *Hub {
	return &Hub{
		channels: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sessions: sessions,
		now:      time.Now,
	}
}

// ServeHTTP upgrades GET /support/ws?channel=<channel>&user=<userId>&token=<joinToken>
// for the visitor holding the session's join token.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	channel := query.Get("channel")
	user := query.Get("user")
	if channel == "" || user == "" {
		http.Error(w, "channel and user are required", http.StatusBadRequest)
		return
	}
	if !h.sessions.IsActiveChannel(channel) {
		http.Error(w, "Support channel not found", http.StatusNotFound)
		return
	}
	if !h.sessions.AuthorizeJoin(channel, user, query.Get("token")) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	h.accept(w, r, channel, user)
}

// ServeAdmin upgrades GET ?channel=<channel> for an already authorized admin,
// who joins as the member every support call rings.
func (h *Hub) ServeAdmin(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}
	if !h.sessions.IsActiveChannel(channel) {
		http.Error(w, "Support channel not found", http.StatusNotFound)
		return
	}

	h.accept(w, r, channel, models.AdminUserID)
}

func (h *Hub) accept(w http.ResponseWriter, r *http.Request, channel, user string) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("Support websocket upgrade failed")
		return
	}
	ws.SetReadLimit(maxFrameSize)

	c := &client{
		id:      uuid.NewString(),
		user:    user,
		channel: channel,
		conn:    ws,
		send:    make(chan []byte, sendBuffer),
	}
	h.register(c)

	logging.Info().
		Str("clientId", c.id).
		Str("channel", utils.SanitizeLogString(channel)).
		Str("user", utils.SanitizeLogString(user)).
		Msg("Support client connected")

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.channels[c.channel]
	if !ok {
		members = make(map[*client]struct{})
		h.channels[c.channel] = members
	}
	members[c] = struct{}{}
	metrics.WebSocketConnections.Inc()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	members, ok := h.channels[c.channel]
	if ok {
		if _, present := members[c]; present {
			delete(members, c)
			metrics.WebSocketConnections.Dec()
		}
		if len(members) == 0 {
			delete(h.channels, c.channel)
		}
	}
	h.mu.Unlock()

	c.close()
}

func (h *Hub) writePump(c *client) {
	for frame := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			break
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			logging.Debug().Err(err).Str("clientId", c.id).Msg("Support write failed")
			break
		}
	}
	h.unregister(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		logging.Info().Str("clientId", c.id).Msg("Support client disconnected")
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Str("clientId", c.id).Msg("Support read error")
			}
			return
		}
		h.handleFrame(c, data)
	}
}

func (h *Hub) handleFrame(c *client, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.sendError(c, "malformed message")
		return
	}
	if err := env.Validate(); err != nil {
		logging.Debug().Err(err).Str("clientId", c.id).Str("type", string(env.Type)).Msg("Rejected support frame")
		h.sendError(c, err.Error())
		return
	}

	env.From = c.user
	if env.Type == MessageChat {
		sentAt := h.now()
		env.SentAt = &sentAt
	}

	frame, err := json.Marshal(&env)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to encode support frame")
		return
	}
	h.broadcast(c, frame, env.BroadcastToSender())
}

func (h *Hub) broadcast(sender *client, frame []byte, includeSender bool) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.channels[sender.channel]))
	for member := range h.channels[sender.channel] {
		if member == sender && !includeSender {
			continue
		}
		targets = append(targets, member)
	}
	h.mu.RUnlock()

	for _, target := range targets {
		if err := target.trySend(frame); errors.Is(err, ErrBackpressure) {
			metrics.WebSocketDropped.Inc()
			logging.Warn().Str("clientId", target.id).Msg("Dropping slow support client")
			h.unregister(target)
		}
	}
}

func (h *Hub) sendError(c *client, message string) {
	frame, err := json.Marshal(&Envelope{Type: MessageError, Text: message})
	if err != nil {
		return
	}
	_ = c.trySend(frame)
}

// ClientCount returns the number of connections on channel
func (h *Hub) ClientCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// CloseChannel disconnects every member of channel
func (h *Hub) CloseChannel(channel string) {
	h.mu.RLock()
	members := make([]*client, 0, len(h.channels[channel]))
	for member := range h.channels[channel] {
		members = append(members, member)
	}
	h.mu.RUnlock()

	for _, member := range members {
		h.unregister(member)
	}
}

// Close disconnects every client of every channel
func (h *Hub) Close() {
	h.mu.RLock()
	channels := make([]string, 0, len(h.channels))
	for channel := range h.channels {
		channels = append(channels, channel)
	}
	h.mu.RUnlock()

	for _, channel := range channels {
		h.CloseChannel(channel)
	}
}
