package store

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"strings"
	"time"

	"modpulse/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AddServerBan persists a new server ban. The assigned id is authoritative.
func (s *Store) AddServerBan(ctx context.Context, ban *model.ServerBan) error {
	return s.db.WithContext(ctx).Create(ban).Error
}

// GetServerBan returns the most recent active server ban matching any of the
// given identifiers, or nil when none is in force.
func (s *Store) GetServerBan(ctx context.Context, addr netip.Addr, userID *uuid.UUID, hwid []byte) (*model.ServerBan, error) {
	conds, args := identityConds(addr, userID, hwid)
	if len(conds) == 0 {
		return nil, nil
	}

	var bans []model.ServerBan
	err := s.db.WithContext(ctx).
		Preload("Unban").
		Where(strings.Join(conds, " OR "), args...).
		Order("banned_at DESC").
		Find(&bans).Error
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range bans {
		if bans[i].Active(now) && identityMatches(bans[i].BanIdentity, addr, userID, hwid) {
			return &bans[i], nil
		}
	}
	return nil, nil
}

// AddRoleBan persists a role ban unless an identical active ban already
// exists for the same subject and role. Reports whether a row was inserted.
func (s *Store) AddRoleBan(ctx context.Context, ban *model.RoleBan) (bool, error) {
	q := s.db.WithContext(ctx).Model(&model.RoleBan{}).
		Where("role = ?", ban.Role).
		Where("id NOT IN (?)", s.db.Model(&model.RoleUnban{}).Select("ban_id")).
		Where("expires_at IS NULL OR expires_at > ?", time.Now())
	if ban.UserID != nil {
		q = q.Where("user_id = ?", *ban.UserID)
	} else {
		q = q.Where("address = ? AND address_cidr = ?", ban.Address, ban.AddressCIDR)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	if err := s.db.WithContext(ctx).Create(ban).Error; err != nil {
		return false, err
	}
	return true, nil
}

// GetRoleBans returns unpardoned role bans matching any of the identifiers.
// Expired bans are included only when includeExpired is set.
func (s *Store) GetRoleBans(ctx context.Context, addr netip.Addr, userID *uuid.UUID, hwid []byte, includeExpired bool) ([]model.RoleBan, error) {
	conds, args := identityConds(addr, userID, hwid)
	if len(conds) == 0 {
		return nil, nil
	}

	q := s.db.WithContext(ctx).
		Where(strings.Join(conds, " OR "), args...).
		Where("id NOT IN (?)", s.db.Model(&model.RoleUnban{}).Select("ban_id")).
		Order("banned_at DESC")
	if !includeExpired {
		q = q.Where("expires_at IS NULL OR expires_at > ?", time.Now())
	}

	var bans []model.RoleBan
	if err := q.Find(&bans).Error; err != nil {
		return nil, err
	}

	matched := bans[:0]
	for i := range bans {
		if identityMatches(bans[i].BanIdentity, addr, userID, hwid) {
			matched = append(matched, bans[i])
		}
	}
	return matched, nil
}

// GetRoleBan fetches one role ban by id with its pardon, nil when missing.
func (s *Store) GetRoleBan(ctx context.Context, id uint) (*model.RoleBan, error) {
	var ban model.RoleBan
	err := s.db.WithContext(ctx).Preload("Unban").First(&ban, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ban, nil
}

// AddRoleUnban attaches a pardon to a role ban. The unique index on ban_id
// is the backstop against double pardons.
func (s *Store) AddRoleUnban(ctx context.Context, unban *model.RoleUnban) error {
	return s.db.WithContext(ctx).Create(unban).Error
}

// AddServerUnban attaches a pardon to a server ban.
func (s *Store) AddServerUnban(ctx context.Context, unban *model.ServerUnban) error {
	return s.db.WithContext(ctx).Create(unban).Error
}

// identityConds builds the SQL prefilter for identifier matching. Address
// bans are range-matched in Go afterwards, so any row with an address is a
// candidate when an address is queried.
func identityConds(addr netip.Addr, userID *uuid.UUID, hwid []byte) ([]string, []interface{}) {
	var conds []string
	var args []interface{}
	if userID != nil {
		conds = append(conds, "user_id = ?")
		args = append(args, *userID)
	}
	if len(hwid) > 0 {
		conds = append(conds, "hwid = ?")
		args = append(args, hwid)
	}
	if addr.IsValid() {
		conds = append(conds, "address <> ''")
	}
	return conds, args
}

func identityMatches(id model.BanIdentity, addr netip.Addr, userID *uuid.UUID, hwid []byte) bool {
	if userID != nil && id.UserID != nil && *userID == *id.UserID {
		return true
	}
	if len(hwid) > 0 && len(id.HWID) > 0 && bytes.Equal(hwid, id.HWID) {
		return true
	}
	return addr.IsValid() && id.MatchesAddress(addr)
}
