package websocket

import (
	"encoding/hex"
	"log"
	"net/http"
	"net/netip"
	"time"

	"modpulse/internal/ban"
	"modpulse/internal/model"
	"modpulse/internal/session"
	"modpulse/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the game client is not a browser
	},
}

// SessionHandler accepts a player connection: it enforces server bans before
// the upgrade, registers the session (which populates the ban cache and
// triggers the initial role-ban push) and keeps reading until the client
// goes away.
func SessionHandler(c *gin.Context, st *store.Store, registry *session.Registry, authority *ban.Authority) {
	w := c.Writer
	r := c.Request

	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}
	username := r.URL.Query().Get("name")
	if username == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}

	var hwid []byte
	if raw := r.URL.Query().Get("hwid"); raw != "" {
		hwid, err = hex.DecodeString(raw)
		if err != nil {
			http.Error(w, "invalid hwid", http.StatusBadRequest)
			return
		}
	}

	addr, _ := netip.ParseAddr(c.ClientIP())

	// Connection-time enforcement: an active server ban on any of the
	// identifiers keeps the player out before the upgrade.
	activeBan, err := authority.CheckServerBan(r.Context(), addr, &userID, hwid)
	if err != nil {
		http.Error(w, "failed to check ban status", http.StatusInternalServerError)
		return
	}
	if activeBan != nil {
		http.Error(w, activeBan.FormatBanMessage(), http.StatusForbidden)
		return
	}

	if err := st.UpsertPlayerRecord(r.Context(), &model.PlayerRecord{
		UserID:           userID,
		LastSeenUserName: username,
		LastSeenAddress:  addr.String(),
		LastSeenHWID:     hwid,
		LastSeenTime:     time.Now(),
	}); err != nil {
		log.Printf("failed to update player record for %s: %v", username, err)
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade websocket: %v", err)
		return
	}

	sess := session.NewSession(userID, username, addr, hwid, wsConn)
	registry.Register(sess)
	defer registry.Unregister(sess)

	// The protocol has no client-to-server half; the read loop only
	// detects disconnection.
	for {
		if _, _, err := wsConn.ReadMessage(); err != nil {
			return
		}
	}
}
