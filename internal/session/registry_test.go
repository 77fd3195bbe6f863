package session

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	messages []Message
	closed   bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := v.(Message); ok {
		f.messages = append(f.messages, msg)
	}
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func newFakeSession(userID uuid.UUID) (*Session, *fakeConn) {
	conn := &fakeConn{}
	return NewSession(userID, "tester", netip.MustParseAddr("192.0.2.10"), nil, conn), conn
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	userID := uuid.New()
	sess, _ := newFakeSession(userID)

	assert.False(t, r.Connected(userID))

	r.Register(sess)
	found, ok := r.TryGetSession(userID)
	require.True(t, ok)
	assert.Same(t, sess, found)
	assert.True(t, r.Connected(userID))

	r.Unregister(sess)
	_, ok = r.TryGetSession(userID)
	assert.False(t, ok)
}

func TestRegistryEmitsEvents(t *testing.T) {
	r := NewRegistry()
	userID := uuid.New()
	sess, _ := newFakeSession(userID)

	var events []Event
	r.Subscribe(func(ev Event) { events = append(events, ev) })

	r.Register(sess)
	r.Unregister(sess)

	require.Len(t, events, 2)
	assert.Equal(t, StatusConnected, events[0].Status)
	assert.Equal(t, userID, events[0].UserID)
	assert.Same(t, sess, events[0].Session)
	assert.Equal(t, StatusDisconnected, events[1].Status)
}

func TestRegistryDisplacesPreviousSession(t *testing.T) {
	r := NewRegistry()
	userID := uuid.New()
	first, firstConn := newFakeSession(userID)
	second, _ := newFakeSession(userID)

	r.Register(first)
	r.Register(second)

	firstConn.mu.Lock()
	closed := firstConn.closed
	firstConn.mu.Unlock()
	assert.True(t, closed, "displaced session must be disconnected")

	current, ok := r.TryGetSession(userID)
	require.True(t, ok)
	assert.Same(t, second, current)

	// Unregistering the stale session must not remove the new one.
	r.Unregister(first)
	_, ok = r.TryGetSession(userID)
	assert.True(t, ok)
}

func TestSendRoleBansSortsKeys(t *testing.T) {
	sess, conn := newFakeSession(uuid.New())

	require.NoError(t, sess.SendRoleBans([]string{"Job:Warden", "Job:Captain", "Antag:Traitor"}))

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.messages, 1)
	assert.Equal(t, MsgTypeRoleBans, conn.messages[0].Type)
	assert.Equal(t, []string{"Antag:Traitor", "Job:Captain", "Job:Warden"}, conn.messages[0].Bans)
}

func TestDisconnectSendsReasonThenCloses(t *testing.T) {
	sess, conn := newFakeSession(uuid.New())

	sess.Disconnect("banned for cheating")

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.messages, 1)
	assert.Equal(t, MsgTypeDisconnect, conn.messages[0].Type)
	assert.Equal(t, "banned for cheating", conn.messages[0].Reason)
	assert.True(t, conn.closed)
}
