package store

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"modpulse/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	s := New(db)
	require.NoError(t, s.Migrate())
	return s
}

func timePtr(t time.Time) *time.Time { return &t }

func TestAddServerBanAssignsID(t *testing.T) {
	s := newTestStore(t)
	target := uuid.New()

	ban := &model.ServerBan{
		BanIdentity: model.BanIdentity{UserID: &target},
		BannedAt:    time.Now(),
		Reason:      "test",
		Severity:    model.SeverityNotice,
	}
	require.NoError(t, s.AddServerBan(context.Background(), ban))
	assert.NotZero(t, ban.ID)
}

func TestGetServerBanMatchByUserID(t *testing.T) {
	s := newTestStore(t)
	target := uuid.New()

	require.NoError(t, s.AddServerBan(context.Background(), &model.ServerBan{
		BanIdentity: model.BanIdentity{UserID: &target},
		BannedAt:    time.Now(),
		Reason:      "by user",
		Severity:    model.SeverityMajor,
	}))

	found, err := s.GetServerBan(context.Background(), netip.Addr{}, &target, nil)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "by user", found.Reason)

	other := uuid.New()
	found, err = s.GetServerBan(context.Background(), netip.Addr{}, &other, nil)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestGetServerBanMatchByCIDR(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AddServerBan(context.Background(), &model.ServerBan{
		BanIdentity: model.BanIdentity{Address: "10.20.0.0", AddressCIDR: 16},
		BannedAt:    time.Now(),
		Reason:      "range ban",
		Severity:    model.SeverityMajor,
	}))

	found, err := s.GetServerBan(context.Background(), netip.MustParseAddr("10.20.33.44"), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, found, "address inside the banned range must match")

	found, err = s.GetServerBan(context.Background(), netip.MustParseAddr("10.21.0.1"), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, found, "address outside the banned range must not match")
}

func TestGetServerBanMatchByHWID(t *testing.T) {
	s := newTestStore(t)
	hwid := []byte{0xde, 0xad, 0xbe, 0xef}

	require.NoError(t, s.AddServerBan(context.Background(), &model.ServerBan{
		BanIdentity: model.BanIdentity{HWID: hwid},
		BannedAt:    time.Now(),
		Reason:      "hardware ban",
		Severity:    model.SeverityIndefinite,
	}))

	found, err := s.GetServerBan(context.Background(), netip.Addr{}, nil, hwid)
	require.NoError(t, err)
	require.NotNil(t, found)

	found, err = s.GetServerBan(context.Background(), netip.Addr{}, nil, []byte{0x01})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestGetServerBanIgnoresExpiredAndPardoned(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	target := uuid.New()

	expired := &model.ServerBan{
		BanIdentity: model.BanIdentity{UserID: &target},
		BannedAt:    time.Now().Add(-2 * time.Hour),
		ExpiresAt:   timePtr(time.Now().Add(-time.Hour)),
		Reason:      "expired",
		Severity:    model.SeverityMinor,
	}
	require.NoError(t, s.AddServerBan(ctx, expired))

	pardoned := &model.ServerBan{
		BanIdentity: model.BanIdentity{UserID: &target},
		BannedAt:    time.Now().Add(-time.Hour),
		Reason:      "pardoned",
		Severity:    model.SeverityMinor,
	}
	require.NoError(t, s.AddServerBan(ctx, pardoned))
	require.NoError(t, s.AddServerUnban(ctx, &model.ServerUnban{BanID: pardoned.ID, UnbanTime: time.Now()}))

	found, err := s.GetServerBan(ctx, netip.Addr{}, &target, nil)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestAddRoleBanDuplicateDetection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	target := uuid.New()

	ban := &model.RoleBan{
		BanIdentity: model.BanIdentity{UserID: &target},
		Role:        "Job:Captain",
		BannedAt:    time.Now(),
		Reason:      "first",
		Severity:    model.SeverityMinor,
	}
	inserted, err := s.AddRoleBan(ctx, ban)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := &model.RoleBan{
		BanIdentity: model.BanIdentity{UserID: &target},
		Role:        "Job:Captain",
		BannedAt:    time.Now(),
		Reason:      "second",
		Severity:    model.SeverityMinor,
	}
	inserted, err = s.AddRoleBan(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted, "identical active ban must be suppressed")

	// A different role for the same user is fine.
	other := &model.RoleBan{
		BanIdentity: model.BanIdentity{UserID: &target},
		Role:        "Job:Warden",
		BannedAt:    time.Now(),
		Severity:    model.SeverityMinor,
	}
	inserted, err = s.AddRoleBan(ctx, other)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestAddRoleBanAllowsReissueAfterPardon(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	target := uuid.New()

	first := &model.RoleBan{
		BanIdentity: model.BanIdentity{UserID: &target},
		Role:        "Job:Captain",
		BannedAt:    time.Now(),
		Severity:    model.SeverityMinor,
	}
	inserted, err := s.AddRoleBan(ctx, first)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, s.AddRoleUnban(ctx, &model.RoleUnban{BanID: first.ID, UnbanTime: time.Now()}))

	second := &model.RoleBan{
		BanIdentity: model.BanIdentity{UserID: &target},
		Role:        "Job:Captain",
		BannedAt:    time.Now(),
		Severity:    model.SeverityMinor,
	}
	inserted, err = s.AddRoleBan(ctx, second)
	require.NoError(t, err)
	assert.True(t, inserted, "a pardoned ban does not block a new one")
}

func TestGetRoleBansExpiryFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	target := uuid.New()

	active := &model.RoleBan{
		BanIdentity: model.BanIdentity{UserID: &target},
		Role:        "Job:Captain",
		BannedAt:    time.Now(),
		Severity:    model.SeverityMinor,
	}
	_, err := s.AddRoleBan(ctx, active)
	require.NoError(t, err)

	expired := &model.RoleBan{
		BanIdentity: model.BanIdentity{UserID: &target},
		Role:        "Job:Warden",
		BannedAt:    time.Now().Add(-2 * time.Hour),
		ExpiresAt:   timePtr(time.Now().Add(-time.Hour)),
		Severity:    model.SeverityMinor,
	}
	require.NoError(t, s.db.Create(expired).Error)

	bans, err := s.GetRoleBans(ctx, netip.Addr{}, &target, nil, false)
	require.NoError(t, err)
	require.Len(t, bans, 1)
	assert.Equal(t, "Job:Captain", bans[0].Role)

	bans, err = s.GetRoleBans(ctx, netip.Addr{}, &target, nil, true)
	require.NoError(t, err)
	assert.Len(t, bans, 2)
}

func TestGetRoleBanPreloadsUnban(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	target := uuid.New()
	admin := uuid.New()

	ban := &model.RoleBan{
		BanIdentity: model.BanIdentity{UserID: &target},
		Role:        "Job:Captain",
		BannedAt:    time.Now(),
		Severity:    model.SeverityMinor,
	}
	_, err := s.AddRoleBan(ctx, ban)
	require.NoError(t, err)

	found, err := s.GetRoleBan(ctx, ban.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Nil(t, found.Unban)

	require.NoError(t, s.AddRoleUnban(ctx, &model.RoleUnban{
		BanID: ban.ID, UnbanningAdmin: &admin, UnbanTime: time.Now(),
	}))

	found, err = s.GetRoleBan(ctx, ban.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Unban)
	assert.Equal(t, admin, *found.Unban.UnbanningAdmin)

	missing, err := s.GetRoleBan(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOverallPlaytime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	target := uuid.New()

	got, err := s.OverallPlaytime(ctx, target)
	require.NoError(t, err)
	assert.Zero(t, got, "untracked player has zero playtime")

	require.NoError(t, s.db.Create(&model.PlayTime{
		UserID: target, Tracker: "JobCaptain", TimeSpent: 3 * time.Hour,
	}).Error)
	require.NoError(t, s.db.Create(&model.PlayTime{
		UserID: target, Tracker: model.TrackerOverall, TimeSpent: 10 * time.Hour,
	}).Error)

	got, err = s.OverallPlaytime(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Hour, got)
}

func TestUpsertPlayerRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	target := uuid.New()

	require.NoError(t, s.UpsertPlayerRecord(ctx, &model.PlayerRecord{
		UserID:           target,
		LastSeenUserName: "old-name",
		LastSeenTime:     time.Now().Add(-time.Hour),
	}))
	require.NoError(t, s.UpsertPlayerRecord(ctx, &model.PlayerRecord{
		UserID:           target,
		LastSeenUserName: "new-name",
		LastSeenTime:     time.Now(),
	}))

	record, err := s.GetPlayerRecord(ctx, target)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "new-name", record.LastSeenUserName)

	var count int64
	s.db.Model(&model.PlayerRecord{}).Count(&count)
	assert.EqualValues(t, 1, count)

	missing, err := s.GetPlayerRecord(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestConfigValues(t *testing.T) {
	s := newTestStore(t)

	assert.Empty(t, s.ConfigValue(model.ConfigKeyBanWebhookURL))
	require.NoError(t, s.SetConfigValue(model.ConfigKeyBanWebhookURL, "https://example.com/hook"))
	assert.Equal(t, "https://example.com/hook", s.ConfigValue(model.ConfigKeyBanWebhookURL))

	require.NoError(t, s.SetConfigValue(model.ConfigKeyBanWebhookURL, ""))
	assert.Empty(t, s.ConfigValue(model.ConfigKeyBanWebhookURL))
}
