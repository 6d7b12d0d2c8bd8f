package session

import (
	"sync"
	"time"
)

// ConnectFunc performs the voice-channel join for a new session.
type ConnectFunc func() (VoiceConn, error)

// Registry is the process-wide guild → session map. Sessions are created and
// destroyed only through it; the lock is held across the connect call so a
// guild never ends up with two sessions.
type Registry struct {
	resolver Resolver

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(resolver Resolver) *Registry {
	return &Registry{
		resolver: resolver,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the guild's session, connecting and creating one if
// none exists. A failed connect leaves the registry untouched.
func (r *Registry) GetOrCreate(guildID string, notify Notifier, idleWait time.Duration, connect ConnectFunc) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[guildID]; ok {
		return s, nil
	}
	conn, err := connect()
	if err != nil {
		return nil, err
	}
	s := newSession(r, guildID, conn, notify, idleWait)
	r.sessions[guildID] = s
	return s, nil
}

// Get returns the guild's session, or nil when the bot is not connected
// there. Commands that only make sense inside a session use this path.
func (r *Registry) Get(guildID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[guildID]
}

func (r *Registry) remove(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, guildID)
}
