package model

import "gorm.io/gorm"

type Config struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;not null"`
	Value string `gorm:"type:text"`
}

const (
	ConfigKeyBanWebhookURL    = "ban_webhook_url"
	ConfigKeyTelegramBotToken = "telegram_bot_token"
	ConfigKeyTelegramChatID   = "telegram_chat_id"
	ConfigKeyShowPIIOnBan     = "show_pii_on_ban"
	ConfigKeyRoundID          = "round_id"
)
