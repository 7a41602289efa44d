package api

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/navikt/benchroom/internal/logging"
	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/service"
	"github.com/navikt/benchroom/internal/utils"
)

const (
	// SignatureHeader carries "v0=<hex hmac>" for each call event
	SignatureHeader = "x-call-signature"
	// TimestampHeader carries the request timestamp included in the signed message
	TimestampHeader = "x-call-request-timestamp"

	// EventCallStateChanged is posted whenever a call changes state
	EventCallStateChanged = "call.state_changed"
)

// CallEvent is the envelope posted by the video platform
type CallEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// CallStatePayload is the payload of a call.state_changed event
type CallStatePayload struct {
	CallID string `json:"callId"`
	State  string `json:"state"`
}

// WebhookHandler processes call events from the video platform
type WebhookHandler struct {
	support     SupportServicer
	secretToken string
}

// NewWebhookHandler creates a webhook handler verifying requests with secretToken.
// An empty secret disables verification.
func NewWebhookHandler(support SupportServicer, secretToken string) *WebhookHandler {
	return &WebhookHandler{
		support:     support,
		secretToken: secretToken,
	}
}

// ServeHTTP handles HTTP requests for the webhook endpoint
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		logging.Warn().Err(err).Msg("Error reading webhook body")
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if h.secretToken != "" {
		if !h.verifySignature(r.Header, body) {
			logging.Warn().Msg("Invalid webhook signature")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	} else {
		logging.Warn().Msg("Webhook verification disabled - CALL_WEBHOOK_SECRET not set")
	}

	var event CallEvent
	if err := json.Unmarshal(body, &event); err != nil {
		logging.Warn().Err(err).Msg("Error parsing webhook JSON")
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()

	switch event.Event {
	case EventCallStateChanged:
		if err := h.handleCallStateChanged(ctx, event.Payload); err != nil {
			logging.Warn().Err(err).Msg("Error processing call state event")
			http.Error(w, "Invalid call event", http.StatusBadRequest)
			return
		}
	default:
		logging.Info().Str("event", utils.SanitizeLogString(event.Event)).Msg("Unsupported webhook event type")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"success": true}`)
}

// verifySignature checks the x-call-signature header against an HMAC-SHA256
// of "v0:<timestamp>:<body>" keyed with the webhook secret.
func (h *WebhookHandler) verifySignature(header http.Header, body []byte) bool {
	signatureHeader := header.Get(SignatureHeader)
	if signatureHeader == "" {
		logging.Debug().Msg("Missing signature header")
		return false
	}

	parts := strings.SplitN(signatureHeader, "=", 2)
	if len(parts) != 2 || parts[0] != "v0" {
		logging.Debug().Msg("Invalid signature format")
		return false
	}

	timestamp := header.Get(TimestampHeader)
	if timestamp == "" {
		logging.Debug().Msg("Missing timestamp header")
		return false
	}

	return hmac.Equal([]byte(SignPayload(h.secretToken, timestamp, body)), []byte(parts[1]))
}

// SignPayload returns the hex signature the platform sends for body at timestamp
func SignPayload(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("v0:%s:%s", timestamp, body)))
	return hex.EncodeToString(mac.Sum(nil))
}

// handleCallStateChanged applies a call.state_changed event to its support session.
// Events for unknown or finished calls are acknowledged and ignored.
func (h *WebhookHandler) handleCallStateChanged(ctx context.Context, raw json.RawMessage) error {
	var payload CallStatePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("parse payload: %w", err)
	}
	if payload.CallID == "" {
		return errors.New("missing callId")
	}
	state, err := models.ParseCallState(payload.State)
	if err != nil {
		return err
	}

	if _, err := h.support.ApplyCallEvent(ctx, payload.CallID, state); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			logging.Info().Str("callId", utils.SanitizeLogString(payload.CallID)).Msg("Call event for unknown session")
			return nil
		}
		return err
	}
	return nil
}
