package model

import (
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User is an admin-panel account, not a game player. Player identities live
// in PlayerRecord.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLogin    *time.Time `json:"last_login"`
	Username     string     `gorm:"uniqueIndex;not null" json:"username"`
	Password     string     `gorm:"not null" json:"-"`
	TokenVersion int64      `gorm:"default:1" json:"-"`
	Role         string     `gorm:"default:'moderator'" json:"role"`
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.Password != "" {
		u.Password, err = HashPassword(u.Password)
	}
	return
}
