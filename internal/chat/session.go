package chat

import (
	"sync"

	"github.com/google/uuid"
)

// windowSize is how many exchanges a session keeps. Older exchanges fall off
// the front; the window only feeds prompt context, so losing history is
// cheap.
const windowSize = 4

// Turn is one exchange in a conversation: the customer's message and the
// answer it got.
type Turn struct {
	User      string
	Assistant string
}

// SessionStore keeps a bounded window of recent exchanges per session, in
// memory. Sessions live until process shutdown; there is no persistence and
// none is needed, the window only shapes the next prompt.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string][]Turn
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string][]Turn)}
}

// NewSession allocates a fresh session ID.
func (s *SessionStore) NewSession() string {
	return uuid.NewString()
}

// Append records an exchange, silently evicting the oldest once the window
// is full. Appending to an unknown session creates it.
func (s *SessionStore) Append(id string, t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.sessions[id], t)
	if len(turns) > windowSize {
		turns = turns[len(turns)-windowSize:]
	}
	s.sessions[id] = turns
}

// Window returns a copy of the session's exchanges, oldest first.
func (s *SessionStore) Window(id string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.sessions[id]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
