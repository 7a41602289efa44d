package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/navikt/benchroom/internal/logging"
	"github.com/navikt/benchroom/internal/models"
	"github.com/navikt/benchroom/internal/utils"
	"github.com/navikt/benchroom/internal/validation"
)

// endedSessionRetention is how long an ended session stays readable before it is pruned
const endedSessionRetention = time.Hour

// StartSessionRequest opens a live-support session
type StartSessionRequest struct {
	UserName string `json:"userName" validate:"required,notblank"`
}

// SupportService tracks live-support sessions in process memory
type SupportService struct {
	mu       sync.RWMutex
	sessions map[string]*models.SupportSession
	now      func() time.Time

	callbacksMu     sync.RWMutex
	updateCallbacks []UpdateCallback
}

// NewSupportService creates an empty support session registry
func NewSupportService() *SupportService {
	return &SupportService{
		sessions:        make(map[string]*models.SupportSession),
		now:             time.Now,
		updateCallbacks: make([]UpdateCallback, 0),
	}
}

// SetClock replaces the time source
func (s *SupportService) SetClock(now func() time.Time) {
	s.now = now
}

// RegisterUpdateCallback registers a callback function to be called when a session changes
func (s *SupportService) RegisterUpdateCallback(callback UpdateCallback) {
	s.callbacksMu.Lock()
	defer s.callbacksMu.Unlock()
	s.updateCallbacks = append(s.updateCallbacks, callback)
}

func (s *SupportService) notifyUpdate(sessionID string) {
	s.callbacksMu.RLock()
	callbacks := make([]UpdateCallback, len(s.updateCallbacks))
	copy(callbacks, s.updateCallbacks)
	s.callbacksMu.RUnlock()

	change := models.Change{Kind: models.ChangeKindSupport, ID: sessionID}
	for _, callback := range callbacks {
		callback(change)
	}
}

// StartSession creates a session for userName. Session ids are derived from the
// start time in milliseconds and are bumped forward on collision.
func (s *SupportService) StartSession(ctx context.Context, userName string) (*models.SupportSession, error) {
	req := StartSessionRequest{UserName: userName}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidUserName, verr)
	}

	s.mu.Lock()
	now := s.now()
	s.pruneEndedLocked(now)
	session := models.NewSupportSession(userName, now)
	for {
		if _, exists := s.sessions[session.ID]; !exists {
			break
		}
		now = now.Add(time.Millisecond)
		session = models.NewSupportSession(userName, now)
	}
	s.sessions[session.ID] = session
	result := *session
	s.mu.Unlock()

	logging.Info().
		Str("sessionId", result.ID).
		Str("userId", utils.SanitizeLogString(result.UserID)).
		Msg("Support session started")
	s.notifyUpdate(result.ID)
	return &result, nil
}

// GetSession returns a copy of a session
func (s *SupportService) GetSession(ctx context.Context, id string) (*models.SupportSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	result := *session
	return &result, nil
}

// ListActiveSessions returns copies of the active sessions, newest first
func (s *SupportService) ListActiveSessions(ctx context.Context) []*models.SupportSession {
	s.mu.RLock()
	result := make([]*models.SupportSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		if session.Active {
			cp := *session
			result = append(result, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// EndSession closes a session and marks its call as left
func (s *SupportService) EndSession(ctx context.Context, id string) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	s.endLocked(session)
	session.CallState = models.CallStateLeft
	s.mu.Unlock()

	logging.Info().Str("sessionId", id).Msg("Support session ended")
	s.notifyUpdate(id)
	return nil
}

// ApplyCallEvent records a call state reported by the video platform.
// The newest active session with the call id is updated; a call reaching the
// left state ends its session.
func (s *SupportService) ApplyCallEvent(ctx context.Context, callID string, state models.CallState) (*models.SupportSession, error) {
	s.mu.Lock()
	var session *models.SupportSession
	for _, candidate := range s.sessions {
		if candidate.CallID != callID || !candidate.Active {
			continue
		}
		if session == nil || candidate.CreatedAt.After(session.CreatedAt) {
			session = candidate
		}
	}
	if session == nil {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}

	session.CallState = state
	if state == models.CallStateLeft {
		s.endLocked(session)
	}
	result := *session
	s.mu.Unlock()

	logging.Info().
		Str("sessionId", result.ID).
		Str("callId", utils.SanitizeLogString(callID)).
		Str("state", state.String()).
		Msg("Call state updated")
	s.notifyUpdate(result.ID)
	return &result, nil
}

// IsActiveChannel reports whether channel belongs to an active session
func (s *SupportService) IsActiveChannel(channel string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessions {
		if session.Channel == channel && session.Active {
			return true
		}
	}
	return false
}

// AuthorizeJoin reports whether user may join channel with token. Only the
// visitor of an active session holds its token.
func (s *SupportService) AuthorizeJoin(channel, user, token string) bool {
	if token == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessions {
		if session.Channel != channel || !session.Active {
			continue
		}
		return session.UserID == user &&
			subtle.ConstantTimeCompare([]byte(session.JoinToken), []byte(token)) == 1
	}
	return false
}

func (s *SupportService) endLocked(session *models.SupportSession) {
	if !session.Active {
		return
	}
	endedAt := s.now()
	session.Active = false
	session.EndedAt = &endedAt
}

func (s *SupportService) pruneEndedLocked(now time.Time) {
	for id, session := range s.sessions {
		if session.EndedAt != nil && now.Sub(*session.EndedAt) > endedSessionRetention {
			delete(s.sessions, id)
		}
	}
}
