package support

import (
	"errors"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

// MessageType is the kind of frame exchanged on a support channel
type MessageType string

const (
	MessageChat      MessageType = "chat"
	MessageOffer     MessageType = "offer"
	MessageAnswer    MessageType = "answer"
	MessageCandidate MessageType = "candidate"
	MessageError     MessageType = "error"
)

// Envelope is the JSON frame relayed between the members of a channel
type Envelope struct {
	Type      MessageType              `json:"type"`
	From      string                   `json:"from,omitempty"`
	Text      string                   `json:"text,omitempty"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	SentAt    *time.Time               `json:"sentAt,omitempty"`
}

var (
	errEmptyChat        = errors.New("chat message is empty")
	errMissingSDP       = errors.New("session description is empty")
	errIncompleteSDP    = errors.New("session description lacks origin or session name")
	errMissingCandidate = errors.New("candidate message carries no candidate")
	errUnknownType      = errors.New("unknown message type")
)

// Validate checks that the envelope's body matches its type.
// Session descriptions must parse as SDP and carry the o= and s= lines; the relay
// never interprets them further.
func (e *Envelope) Validate() error {
	switch e.Type {
	case MessageChat:
		if strings.TrimSpace(e.Text) == "" {
			return errEmptyChat
		}
		return nil
	case MessageOffer, MessageAnswer:
		if strings.TrimSpace(e.SDP) == "" {
			return errMissingSDP
		}
		desc := webrtc.SessionDescription{Type: webrtc.NewSDPType(string(e.Type)), SDP: e.SDP}
		parsed, err := desc.Unmarshal()
		if err != nil {
			return err
		}
		if parsed.Origin.UnicastAddress == "" || parsed.SessionName == "" {
			return errIncompleteSDP
		}
		return nil
	case MessageCandidate:
		if e.Candidate == nil || strings.TrimSpace(e.Candidate.Candidate) == "" {
			return errMissingCandidate
		}
		return nil
	default:
		return errUnknownType
	}
}

// BroadcastToSender reports whether the sender receives its own frame back
func (e *Envelope) BroadcastToSender() bool {
	return e.Type == MessageChat
}
