package handler

import (
	"net/http"

	"modpulse/internal/model"
	"modpulse/internal/store"

	"github.com/gin-gonic/gin"
)

// GetModerationConfig retrieves the runtime moderation settings.
func GetModerationConfig(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ban_webhook_url": st.ConfigValue(model.ConfigKeyBanWebhookURL),
			"show_pii_on_ban": st.ConfigValue(model.ConfigKeyShowPIIOnBan) == "true",
		})
	}
}

// UpdateModerationConfig updates the webhook endpoint and the PII flag. An
// empty webhook URL disables the channel.
func UpdateModerationConfig(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			BanWebhookURL string `json:"ban_webhook_url"`
			ShowPIIOnBan  bool   `json:"show_pii_on_ban"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := st.SetConfigValue(model.ConfigKeyBanWebhookURL, input.BanWebhookURL); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update webhook URL"})
			return
		}
		showPII := "false"
		if input.ShowPIIOnBan {
			showPII = "true"
		}
		if err := st.SetConfigValue(model.ConfigKeyShowPIIOnBan, showPII); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update PII flag"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Moderation configuration updated successfully"})
	}
}

// GetTelegramConfig retrieves Telegram Bot Token and alert chat id.
func GetTelegramConfig(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"bot_token": st.ConfigValue(model.ConfigKeyTelegramBotToken),
			"chat_id":   st.ConfigValue(model.ConfigKeyTelegramChatID),
		})
	}
}

// UpdateTelegramConfig updates Telegram Bot Token and alert chat id. The bot
// picks the new values up on the next restart.
func UpdateTelegramConfig(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			BotToken string `json:"bot_token"`
			ChatID   string `json:"chat_id"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := st.SetConfigValue(model.ConfigKeyTelegramBotToken, input.BotToken); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update Telegram Bot Token"})
			return
		}
		if err := st.SetConfigValue(model.ConfigKeyTelegramChatID, input.ChatID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update Telegram chat id"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Telegram configuration updated successfully"})
	}
}
