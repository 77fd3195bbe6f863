package session

import (
	"net/netip"
	"sync"

	"github.com/google/uuid"
)

// Status is a session lifecycle state carried by registry events.
type Status int

const (
	StatusConnected Status = iota
	StatusDisconnected
)

// Event notifies subscribers of a session status change.
type Event struct {
	UserID  uuid.UUID
	Status  Status
	Session *Session
}

// Conn is the transport half of a session. Satisfied by *websocket.Conn.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Session is one connected player.
type Session struct {
	UserID uuid.UUID
	Name   string
	Addr   netip.Addr
	HWID   []byte

	mu   sync.Mutex
	conn Conn
}

// NewSession wraps a connection in a session.
func NewSession(userID uuid.UUID, name string, addr netip.Addr, hwid []byte, conn Conn) *Session {
	return &Session{UserID: userID, Name: name, Addr: addr, HWID: hwid, conn: conn}
}

// Disconnect sends a final message carrying reason and closes the transport.
func (s *Session) Disconnect(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteJSON(Message{Type: MsgTypeDisconnect, Reason: reason})
	_ = s.conn.Close()
}

// Registry tracks connected sessions by user id and fans status changes out
// to subscribers. Register and Unregister run subscriber callbacks
// synchronously so a connect handler observes a populated ban cache before
// it returns.
type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	subMu       sync.RWMutex
	subscribers []func(Event)
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[uuid.UUID]*Session)}
}

// Subscribe adds a status-change listener.
func (r *Registry) Subscribe(fn func(Event)) {
	r.subMu.Lock()
	r.subscribers = append(r.subscribers, fn)
	r.subMu.Unlock()
}

// Register adds a session, displacing any previous session for the same
// user, and emits a connected event.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	prev := r.sessions[s.UserID]
	r.sessions[s.UserID] = s
	r.mu.Unlock()

	if prev != nil {
		prev.Disconnect("Connected from another location.")
	}
	r.emit(Event{UserID: s.UserID, Status: StatusConnected, Session: s})
}

// Unregister removes a session if it is still the current one for its user
// and emits a disconnected event.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	current, ok := r.sessions[s.UserID]
	if !ok || current != s {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, s.UserID)
	r.mu.Unlock()

	r.emit(Event{UserID: s.UserID, Status: StatusDisconnected, Session: s})
}

// TryGetSession looks a connected session up by user id.
func (r *Registry) TryGetSession(userID uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[userID]
	r.mu.RUnlock()
	return s, ok
}

// Connected reports whether the user currently has a session.
func (r *Registry) Connected(userID uuid.UUID) bool {
	_, ok := r.TryGetSession(userID)
	return ok
}

func (r *Registry) emit(ev Event) {
	r.subMu.RLock()
	subs := r.subscribers
	r.subMu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}
