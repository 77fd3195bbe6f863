package store

import (
	"log"
	"os"
	"time"

	"modpulse/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the durable ban record store. All ban and pardon rows are
// append-only; nothing here deletes a ban.
type Store struct {
	db *gorm.DB
}

// New wraps an existing gorm handle. Used by tests with an in-memory DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open connects to the sqlite database at path and runs migrations.
func Open(path string) (*Store, error) {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&model.User{},
		&model.Config{},
		&model.PlayerRecord{},
		&model.PlayTime{},
		&model.ServerBan{},
		&model.ServerUnban{},
		&model.RoleBan{},
		&model.RoleUnban{},
	)
}

// DB exposes the raw handle for the HTTP layer and the bot.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ConfigValue reads a runtime config value, empty string when unset.
func (s *Store) ConfigValue(key string) string {
	var config model.Config
	s.db.Where("key = ?", key).First(&config)
	return config.Value
}

// SetConfigValue upserts a runtime config value.
func (s *Store) SetConfigValue(key, value string) error {
	// Assign takes a map so an empty value still clears the row.
	return s.db.Model(&model.Config{}).Where("key = ?", key).
		Assign(map[string]interface{}{"key": key, "value": value}).
		FirstOrCreate(&model.Config{}).Error
}
