package session

import "sort"

const (
	// MsgTypeRoleBans carries the full current role-ban key set for the
	// receiving session's own account. Server-initiated, no request half;
	// each push replaces the previous one on the client.
	MsgTypeRoleBans = "role_bans"
	// MsgTypeDisconnect is the final message before the server closes the
	// connection.
	MsgTypeDisconnect = "disconnect"
)

// Message is the single server-to-client frame kind.
type Message struct {
	Type   string   `json:"type"`
	Bans   []string `json:"bans"`
	Reason string   `json:"reason,omitempty"`
}

// SendRoleBans pushes the current role-ban key set to the client. The list
// is sorted so repeated pushes of the same set are byte-identical.
func (s *Session) SendRoleBans(bans []string) error {
	sorted := make([]string, len(bans))
	copy(sorted, bans)
	sort.Strings(sorted)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(Message{Type: MsgTypeRoleBans, Bans: sorted})
}
