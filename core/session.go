package core

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"
)

// ErrSessionNotFound is returned by stores for unknown session identifiers.
var ErrSessionNotFound = errors.New("session not found")

// Session is the conversation context scoped to one user of one application.
// Identity is (AppName, UserID, ID). It is safe for concurrent access.
//
// Contract:
//   - Event history is append-only and ordered
//   - GetEvents returns a defensive copy to avoid external mutation
//   - GetConversationHistory filters events to user/assistant/tool roles and
//     excludes partial streaming fragments
//   - State holds profile facts rendered into instruction templates
type Session struct {
	AppName string         `json:"app_name"`
	UserID  string         `json:"user_id"`
	ID      string         `json:"id"`
	State   map[string]any `json:"state"`
	Events  []Event        `json:"events"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
	mu      sync.RWMutex
}

// NewSession creates an empty session.
func NewSession(appName, userID, id string) *Session {
	now := time.Now()
	return &Session{
		AppName: appName,
		UserID:  userID,
		ID:      id,
		State:   map[string]any{},
		Events:  []Event{},
		Created: now,
		Updated: now,
	}
}

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// SetState sets a key/value pair in session state updating the Updated timestamp.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State[key] = value
	s.Updated = time.Now()
}

// ApplyStateDelta merges the provided key/value pairs into State.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.State, delta)
	s.Updated = time.Now()
}

// StateSnapshot returns a shallow copy of State.
func (s *Session) StateSnapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.State)
}

// AddEvent appends an event to the history updating Updated timestamp.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, ev)
	s.Updated = time.Now()
}

// Len returns the number of recorded events.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Events)
}

// GetEvents returns a defensive copy of the full event slice.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return events
}

// GetConversationHistory returns filtered events suitable for providing
// conversational context to models (excludes partials and non-conversational roles).
func (s *Session) GetConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Content == nil || ev.IsPartial() {
			continue
		}
		switch ev.Content.Role {
		case "user", "assistant", "tool":
			res = append(res, ev)
		}
	}
	return res
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		AppName: s.AppName,
		UserID:  s.UserID,
		ID:      s.ID,
		State:   maps.Clone(s.State),
		Events:  make([]Event, len(s.Events)),
		Created: s.Created,
		Updated: s.Updated,
	}
	if clone.State == nil {
		clone.State = map[string]any{}
	}
	copy(clone.Events, s.Events)
	return clone
}

// SessionStore holds one active session per user for the lifetime of the
// process. Implementations must let different users proceed independently
// and serialize work for the same user through Lock.
type SessionStore interface {
	// GetOrCreate returns the active session id for userID, creating it on first use.
	GetOrCreate(ctx context.Context, userID string) (string, error)
	// Get returns a snapshot of the session.
	Get(ctx context.Context, sessionID string) (*Session, error)
	// Append records an event in the session history.
	Append(ctx context.Context, sessionID string, ev Event) error
	// History returns the ordered event history.
	History(ctx context.Context, sessionID string) ([]Event, error)
	// ApplyDelta merges profile facts into the session state.
	ApplyDelta(ctx context.Context, sessionID string, delta map[string]any) error
	// Lock acquires the per-user lock; the returned func releases it.
	Lock(ctx context.Context, userID string) (func(), error)
}
