package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/logging"
)

// DefaultAppName is the application identifier of sessions created without
// an explicit one.
const DefaultAppName = "productivity_planner"

// Options configures an InMemoryStore.
type Options struct {
	AppName string
	Logger  logging.Logger
	// NewID generates session ids; defaults to "session_" + 8 hex chars.
	NewID func() string
}

type userSlot struct {
	sessionID string
	lock      chan struct{}
}

// InMemoryStore is a process-wide SessionStore. The store mutex guards only
// the user and session maps and is never held while a caller works; each
// user has its own lock so different users never wait on each other while
// runs for the same user are serialized through Lock.
type InMemoryStore struct {
	appName string
	newID   func() string
	logger  logging.Logger

	mu       sync.RWMutex
	users    map[string]*userSlot
	sessions map[string]*core.Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{
		AppName: DefaultAppName,
		Logger:  logging.NoOpLogger{},
		NewID:   newSessionID,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.NewID == nil {
		opts.NewID = newSessionID
	}

	return &InMemoryStore{
		appName:  opts.AppName,
		newID:    opts.NewID,
		logger:   opts.Logger,
		users:    make(map[string]*userSlot),
		sessions: make(map[string]*core.Session),
	}
}

// AppName returns the application identifier of new sessions.
func (s *InMemoryStore) AppName() string { return s.appName }

// GetOrCreate returns the active session id of userID, creating the session
// on first use. Later calls for the same user return the same id.
func (s *InMemoryStore) GetOrCreate(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if userID == "" {
		return "", fmt.Errorf("user id is required")
	}

	s.mu.RLock()
	slot, ok := s.users[userID]
	s.mu.RUnlock()
	if ok && slot.sessionID != "" {
		return slot.sessionID, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot = s.slotLocked(userID)
	if slot.sessionID != "" {
		return slot.sessionID, nil
	}

	id := s.newID()
	for _, taken := s.sessions[id]; taken; _, taken = s.sessions[id] {
		id = s.newID()
	}

	s.sessions[id] = core.NewSession(s.appName, userID, id)
	slot.sessionID = id

	s.logger.Info("session.created", "app", s.appName, "user", userID, "session", id)

	return id, nil
}

// Get returns a snapshot of the session.
func (s *InMemoryStore) Get(_ context.Context, sessionID string) (*core.Session, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// Append records ev at the end of the session history.
func (s *InMemoryStore) Append(_ context.Context, sessionID string, ev core.Event) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	sess.AddEvent(ev)
	return nil
}

// History returns a copy of the ordered event history.
func (s *InMemoryStore) History(_ context.Context, sessionID string) ([]core.Event, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.GetEvents(), nil
}

// ApplyDelta merges delta into the session state.
func (s *InMemoryStore) ApplyDelta(_ context.Context, sessionID string, delta map[string]any) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	sess.ApplyStateDelta(delta)
	return nil
}

// Lock acquires userID's lock and returns its release func. A call chain
// that already holds the lock (marked with core.WithHeldUser) gets
// core.ErrReentrancyViolation instead of waiting on itself.
func (s *InMemoryStore) Lock(ctx context.Context, userID string) (func(), error) {
	if core.HoldsUser(ctx, userID) {
		return nil, fmt.Errorf("%w: session lock for user %s is already held by this call chain", core.ErrReentrancyViolation, userID)
	}

	s.mu.Lock()
	slot := s.slotLocked(userID)
	s.mu.Unlock()

	select {
	case slot.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot.lock })
	}, nil
}

// Len returns the number of sessions held.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *InMemoryStore) lookup(sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}
	return sess, nil
}

// slotLocked returns the slot of userID, creating it; s.mu must be held.
func (s *InMemoryStore) slotLocked(userID string) *userSlot {
	slot, ok := s.users[userID]
	if !ok {
		slot = &userSlot{lock: make(chan struct{}, 1)}
		s.users[userID] = slot
	}
	return slot
}

func newSessionID() string {
	return "session_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

var _ core.SessionStore = (*InMemoryStore)(nil)
