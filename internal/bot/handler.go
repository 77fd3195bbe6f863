package bot

import (
	"fmt"
	"log"
	"time"

	"modpulse/internal/model"

	"gopkg.in/telebot.v3"
	"gorm.io/gorm"
)

// BotHandler is the Telegram admin chat channel. Ban and pardon alerts go to
// the configured chat; a /status command answers with active ban counts.
type BotHandler struct {
	Bot    *telebot.Bot
	ChatID int64
	db     *gorm.DB
}

// NewBotHandler initializes and returns a new BotHandler
func NewBotHandler(token string, chatID int64, db *gorm.DB) (*BotHandler, error) {
	pref := telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := telebot.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	handler := &BotHandler{
		Bot:    b,
		ChatID: chatID,
		db:     db,
	}

	handler.setupHandlers()
	return handler, nil
}

// setupHandlers registers all command handlers
func (h *BotHandler) setupHandlers() {
	h.Bot.Handle("/start", h.handleStart)
	h.Bot.Handle("/status", h.handleStatus)
}

func (h *BotHandler) handleStart(c telebot.Context) error {
	return c.Send(fmt.Sprintf("Moderation alerts are delivered to chat %d.", h.ChatID))
}

// handleStatus reports how many bans are currently in force.
func (h *BotHandler) handleStatus(c telebot.Context) error {
	now := time.Now()

	var serverBans int64
	h.db.Model(&model.ServerBan{}).
		Where("id NOT IN (?)", h.db.Model(&model.ServerUnban{}).Select("ban_id")).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(&serverBans)

	var roleBans int64
	h.db.Model(&model.RoleBan{}).
		Where("id NOT IN (?)", h.db.Model(&model.RoleUnban{}).Select("ban_id")).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(&roleBans)

	return c.Send(fmt.Sprintf("Active bans: %d server, %d role.", serverBans, roleBans))
}

// SendAdminAlert implements notify.AlertSink. Failures are logged and
// dropped so a Telegram outage never touches the ban path.
func (h *BotHandler) SendAdminAlert(text string) {
	if _, err := h.Bot.Send(telebot.ChatID(h.ChatID), text); err != nil {
		log.Printf("telegram alert failed: %v", err)
	}
}

// Start starts the bot poller
func (h *BotHandler) Start() {
	h.Bot.Start()
}
