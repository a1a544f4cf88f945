package presence

import (
	"fmt"
	"slices"
	"sync"

	apperrors "teslo/internal/errors"
)

// ErrNotFound is returned when a connection id has no live session.
var ErrNotFound = fmt.Errorf("session: %w", apperrors.ErrNotFound)

// Conn is the part of a socket the registry needs.
type Conn interface {
	ID() string
	Emit(event string, data any) error
	Close() error
}

// Session binds one live connection to one authenticated user.
type Session struct {
	ConnectionID string
	UserID       string
	DisplayName  string
	Conn         Conn

	seq uint64
}

// Registry tracks live sessions keyed by connection id.
// Only one session per user is allowed; registering a second one
// displaces the first.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session // connectionID -> session
	byUser   map[string]string   // userID -> connectionID
	seq      uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]string),
	}
}

// Register inserts a session for conn. If the user already had a live
// session, it is removed and its connection closed; the displaced session
// is returned so the caller can log it.
func (r *Registry) Register(conn Conn, userID, displayName string) (Session, bool) {
	r.mu.Lock()
	var displaced *Session
	if oldID, ok := r.byUser[userID]; ok {
		displaced = r.sessions[oldID]
		delete(r.sessions, oldID)
		delete(r.byUser, userID)
	}
	// A reused connection id replaces whatever was stored under it.
	if prev, ok := r.sessions[conn.ID()]; ok {
		delete(r.byUser, prev.UserID)
	}

	r.seq++
	r.sessions[conn.ID()] = &Session{
		ConnectionID: conn.ID(),
		UserID:       userID,
		DisplayName:  displayName,
		Conn:         conn,
		seq:          r.seq,
	}
	r.byUser[userID] = conn.ID()
	r.mu.Unlock()

	if displaced == nil {
		return Session{}, false
	}
	// Close outside the lock: the transport may call back into Remove.
	if displaced.Conn != nil && displaced.ConnectionID != conn.ID() {
		displaced.Conn.Close()
	}
	return *displaced, true
}

// Remove drops the session for connectionID. Unknown ids are ignored.
func (r *Registry) Remove(connectionID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connectionID]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, connectionID)
	if r.byUser[sess.UserID] == connectionID {
		delete(r.byUser, sess.UserID)
	}
	return *sess, true
}

// ConnectionIDs returns the live connection ids in registration order.
func (r *Registry) ConnectionIDs() []string {
	snapshot := r.snapshot()
	ids := make([]string, 0, len(snapshot))
	for _, s := range snapshot {
		ids = append(ids, s.ConnectionID)
	}
	return ids
}

// Conns returns the live connections in registration order.
func (r *Registry) Conns() []Conn {
	snapshot := r.snapshot()
	conns := make([]Conn, 0, len(snapshot))
	for _, s := range snapshot {
		conns = append(conns, s.Conn)
	}
	return conns
}

// DisplayNameOf returns the name of the user behind connectionID.
func (r *Registry) DisplayNameOf(connectionID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[connectionID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, connectionID)
	}
	return sess.DisplayName, nil
}

// SessionOf returns the session stored under connectionID.
func (r *Registry) SessionOf(connectionID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[connectionID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) snapshot() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Session) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return out
}
