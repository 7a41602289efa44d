package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AdminUserID is the member every support call rings
const AdminUserID = "admin"

// CallState represents the calling state reported by the video platform
type CallState int

const (
	CallStateIdle CallState = iota
	CallStateRinging
	CallStateJoined
	CallStateReconnecting
	CallStateLeft
)

// String returns the string representation of a call state
func (s CallState) String() string {
	return [...]string{"idle", "ringing", "joined", "reconnecting", "left"}[s]
}

// ParseCallState converts the platform's state name into a CallState
func ParseCallState(s string) (CallState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idle":
		return CallStateIdle, nil
	case "ringing":
		return CallStateRinging, nil
	case "joined":
		return CallStateJoined, nil
	case "reconnecting":
		return CallStateReconnecting, nil
	case "left":
		return CallStateLeft, nil
	}
	return CallStateIdle, fmt.Errorf("unknown call state %q", s)
}

// MarshalText encodes the call state by name
func (s CallState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a call state name
func (s *CallState) UnmarshalText(text []byte) error {
	parsed, err := ParseCallState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SupportSession is a live-support conversation between a visitor and the admin.
// JoinToken admits the visitor to the session's chat channel.
type SupportSession struct {
	ID        string     `json:"id"`
	Channel   string     `json:"channel"`
	UserName  string     `json:"userName"`
	UserID    string     `json:"userId"`
	CallID    string     `json:"callId"`
	CallState CallState  `json:"callState"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"createdAt"`
	JoinToken string     `json:"joinToken,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// SupportUserID derives the platform user id from a display name
func SupportUserID(userName string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(userName)), "_")
}

// NewSupportSession creates a session for userName started at the given time
func NewSupportSession(userName string, now time.Time) *SupportSession {
	ms := now.UnixMilli()
	userID := SupportUserID(userName)
	return &SupportSession{
		ID:        fmt.Sprintf("session_%d", ms),
		Channel:   fmt.Sprintf("support_channel_%d", ms),
		UserName:  strings.TrimSpace(userName),
		UserID:    userID,
		CallID:    fmt.Sprintf("call-%s-%s", userID, AdminUserID),
		CallState: CallStateIdle,
		Active:    true,
		CreatedAt: now,
		JoinToken: uuid.NewString(),
	}
}
