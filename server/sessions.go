package server

import (
	"sync"

	"github.com/google/uuid"

	"github.com/chazu/norn/vm"
)

// Session is one client workspace: an evaluator plus the lock that
// serializes its memo mutations and entropy draws.
type Session struct {
	ID   string
	Name string

	mu     sync.Mutex
	interp *vm.Interp
}

// Eval runs one evaluation on the session's evaluator. Calls are
// serialized; the evaluator's caches and entropy stream see them in
// arrival order.
func (s *Session) Eval(expr *vm.Noun) (*vm.Noun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interp.Eval(expr)
}

// SessionStore manages live sessions.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	newInterp func() *vm.Interp
}

// NewSessionStore creates a session store whose sessions get evaluators
// from the given factory.
func NewSessionStore(newInterp func() *vm.Interp) *SessionStore {
	return &SessionStore{
		sessions:  make(map[string]*Session),
		newInterp: newInterp,
	}
}

// Create opens a new session with an optional name.
func (s *SessionStore) Create(name string) *Session {
	session := &Session{
		ID:     uuid.New().String(),
		Name:   name,
		interp: s.newInterp(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	return session
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	return session, ok
}

// Destroy removes a session, reporting whether it existed. Its memo
// tables become garbage once outstanding evaluations finish.
func (s *SessionStore) Destroy(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
