package store

import (
	"context"
	"errors"
	"time"

	"modpulse/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetPlayTimes returns all play-time trackers recorded for a player.
func (s *Store) GetPlayTimes(ctx context.Context, userID uuid.UUID) ([]model.PlayTime, error) {
	var times []model.PlayTime
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&times).Error
	return times, err
}

// OverallPlaytime returns the cumulative overall play time, zero when none
// has been tracked yet.
func (s *Store) OverallPlaytime(ctx context.Context, userID uuid.UUID) (time.Duration, error) {
	times, err := s.GetPlayTimes(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, t := range times {
		if t.Tracker == model.TrackerOverall {
			return t.TimeSpent, nil
		}
	}
	return 0, nil
}

// GetPlayerRecord fetches the last-seen snapshot for a player, nil when the
// player has never connected.
func (s *Store) GetPlayerRecord(ctx context.Context, userID uuid.UUID) (*model.PlayerRecord, error) {
	var record model.PlayerRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// UpsertPlayerRecord refreshes the last-seen snapshot on connect.
func (s *Store) UpsertPlayerRecord(ctx context.Context, record *model.PlayerRecord) error {
	return s.db.WithContext(ctx).
		Where("user_id = ?", record.UserID).
		Assign(model.PlayerRecord{
			LastSeenUserName: record.LastSeenUserName,
			LastSeenAddress:  record.LastSeenAddress,
			LastSeenHWID:     record.LastSeenHWID,
			LastSeenTime:     record.LastSeenTime,
		}).
		FirstOrCreate(record).Error
}
