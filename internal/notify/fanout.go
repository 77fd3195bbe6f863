package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"modpulse/internal/store"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const (
	nameCacheTTL     = 5 * time.Minute
	nameCacheCleanup = 10 * time.Minute

	// SystemUser is the display name for actions with no issuing admin.
	SystemUser = "system"
)

// AlertSink receives human-readable admin alerts. Implemented by the
// Telegram bot; LogAlerts is the fallback when no bot is configured.
type AlertSink interface {
	SendAdminAlert(text string)
}

// LogAlerts writes admin alerts to the operator log only.
type LogAlerts struct{}

func (LogAlerts) SendAdminAlert(text string) {
	log.Printf("admin alert: %s", text)
}

// Fanout dispatches ban and pardon notifications to the admin alert channel
// and the webhook endpoint. Both channels are best effort: a slow or failing
// channel never blocks or fails the ban transaction that triggered it.
type Fanout struct {
	store   *store.Store
	alerts  AlertSink
	webhook *Webhook
	names   *cache.Cache
}

func NewFanout(st *store.Store, alerts AlertSink, webhook *Webhook) *Fanout {
	return &Fanout{
		store:   st,
		alerts:  alerts,
		webhook: webhook,
		names:   cache.New(nameCacheTTL, nameCacheCleanup),
	}
}

// SendAdminAlert forwards to the alert channel and the operator log.
func (f *Fanout) SendAdminAlert(text string) {
	log.Print(text)
	f.alerts.SendAdminAlert(text)
}

// PlayerName resolves a player's last-seen name, SystemUser for nil ids.
// Results are cached; name resolution sits on the notification path and
// must not hit the store on every event.
func (f *Fanout) PlayerName(ctx context.Context, userID *uuid.UUID) string {
	if userID == nil {
		return SystemUser
	}
	key := userID.String()
	if name, found := f.names.Get(key); found {
		return name.(string)
	}

	record, err := f.store.GetPlayerRecord(ctx, *userID)
	if err != nil || record == nil || record.LastSeenUserName == "" {
		return SystemUser
	}
	f.names.Set(key, record.LastSeenUserName, nameCacheTTL)
	return record.LastSeenUserName
}

// MentionToken resolves the chat mention for a player, empty when unknown.
func (f *Fanout) MentionToken(ctx context.Context, userID *uuid.UUID) string {
	if userID == nil {
		return ""
	}
	record, err := f.store.GetPlayerRecord(ctx, *userID)
	if err != nil || record == nil || record.DiscordID == "" {
		return ""
	}
	return fmt.Sprintf("<@!%s>", record.DiscordID)
}

// LengthString renders a ban duration for humans.
func LengthString(expires *time.Time) string {
	if expires == nil {
		return "never"
	}
	return "until " + expires.UTC().Format(time.RFC1123)
}

// ServerBanNotice describes a freshly issued server ban.
type ServerBanNotice struct {
	BanID      uint
	RoundID    *int64
	TargetName string
	Mention    string
	AdminName  string
	BannedAt   time.Time
	ExpiresAt  *time.Time
	Minutes    uint
	Reason     string
}

// DispatchServerBan sends the webhook for a server ban without blocking the
// caller.
func (f *Fanout) DispatchServerBan(n ServerBanNotice) {
	title := fmt.Sprintf("Permanent ban #%d", n.BanID)
	if n.Minutes > 0 {
		title = fmt.Sprintf("Ban #%d for %d minutes", n.BanID, n.Minutes)
	}

	var desc strings.Builder
	if n.RoundID != nil {
		fmt.Fprintf(&desc, "> **Round:** `%d`\n\n", *n.RoundID)
	}
	target := fmt.Sprintf("`%s`", n.TargetName)
	if n.Mention != "" {
		target += " (" + n.Mention + ")"
	}
	fmt.Fprintf(&desc, "> **Offender:** %s\n> **Admin:** `%s`\n\n", target, n.AdminName)
	fmt.Fprintf(&desc, "> **Issued:** <t:%d:R>\n\n", n.BannedAt.Unix())
	if n.ExpiresAt != nil {
		fmt.Fprintf(&desc, "**Expires:** <t:%d:R>\n", n.ExpiresAt.Unix())
	}
	appendReason(&desc, n.Reason)

	go f.webhook.Deliver(WebhookPayload{Embeds: []Embed{{Title: title, Description: desc.String()}}})
}

// RoleBanNotice describes a role ban, or a department ban when RoleName is
// the department's display name. Department expansion sends exactly one of
// these for the whole group.
type RoleBanNotice struct {
	AdminName  string
	RoleName   string
	TargetName string
	BannedAt   time.Time
	Length     string
	Reason     string
}

// DispatchRoleBan sends the webhook for a role or department ban without
// blocking the caller.
func (f *Fanout) DispatchRoleBan(n RoleBanNotice) {
	title := fmt.Sprintf("Role ban: %s", n.RoleName)

	var desc strings.Builder
	fmt.Fprintf(&desc, "> **Offender:** `%s`\n> **Admin:** `%s`\n\n", n.TargetName, n.AdminName)
	fmt.Fprintf(&desc, "> **Issued:** <t:%d:R>\n> **Expires:** %s\n\n", n.BannedAt.Unix(), n.Length)
	appendReason(&desc, n.Reason)

	go f.webhook.Deliver(WebhookPayload{Embeds: []Embed{{Title: title, Description: desc.String()}}})
}

func appendReason(desc *strings.Builder, reason string) {
	if reason == "" {
		return
	}
	desc.WriteString("**Reason:**\n> ")
	desc.WriteString(strings.Join(strings.Split(strings.TrimSpace(reason), "\n"), "\n> "))
	desc.WriteString("\n")
}
