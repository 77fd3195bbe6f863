package model

import (
	"time"

	"github.com/google/uuid"
)

// TrackerOverall is the play-time tracker covering all roles combined.
const TrackerOverall = "Overall"

// PlayerRecord is the last-seen snapshot of a player, refreshed on connect.
type PlayerRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	UserID           uuid.UUID `gorm:"type:text;uniqueIndex;not null" json:"user_id"`
	LastSeenUserName string    `json:"last_seen_user_name"`
	LastSeenAddress  string    `json:"last_seen_address"`
	LastSeenHWID     []byte    `json:"last_seen_hwid,omitempty"`
	LastSeenTime     time.Time `json:"last_seen_time"`
	DiscordID        string    `json:"discord_id,omitempty"`
}

// PlayTime accumulates time spent per tracker for one player.
type PlayTime struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	UserID    uuid.UUID     `gorm:"type:text;index;not null" json:"user_id"`
	Tracker   string        `gorm:"index;not null" json:"tracker"`
	TimeSpent time.Duration `json:"time_spent"`
}
