package ban

import (
	"testing"
	"time"

	"modpulse/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roleBan(id uint, role string, expires *time.Time) model.RoleBan {
	return model.RoleBan{ID: id, Role: role, BannedAt: time.Now(), ExpiresAt: expires}
}

func TestCacheAbsentVersusEmpty(t *testing.T) {
	cache := NewCache()
	connected := uuid.New()
	stranger := uuid.New()

	cache.Set(connected, nil)

	keys, ok := cache.RoleBans(connected)
	require.True(t, ok, "connected user must have an entry")
	assert.Empty(t, keys)

	_, ok = cache.RoleBans(stranger)
	assert.False(t, ok, "never-connected user must read as absent")

	_, ok = cache.JobBans(stranger)
	assert.False(t, ok)
}

func TestCacheAddIsNoOpWithoutEntry(t *testing.T) {
	cache := NewCache()
	userID := uuid.New()

	cache.Add(userID, roleBan(1, "Job:Captain", nil))

	_, ok := cache.RoleBans(userID)
	assert.False(t, ok, "Add must not create entries; population happens on connect")
}

func TestCacheJobBansFilterAndStrip(t *testing.T) {
	cache := NewCache()
	userID := uuid.New()

	cache.Set(userID, []model.RoleBan{
		roleBan(1, "Job:Captain", nil),
		roleBan(2, "Job:Warden", nil),
		roleBan(3, "Antag:Traitor", nil),
	})

	jobs, ok := cache.JobBans(userID)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"Captain", "Warden"}, jobs)

	keys, ok := cache.RoleBans(userID)
	require.True(t, ok)
	assert.Len(t, keys, 3)
}

func TestCacheRemoveBan(t *testing.T) {
	cache := NewCache()
	userID := uuid.New()
	cache.Set(userID, []model.RoleBan{roleBan(7, "Job:Captain", nil)})

	assert.True(t, cache.RemoveBan(userID, 7))
	assert.False(t, cache.RemoveBan(userID, 7), "second removal must report absence")

	keys, ok := cache.RoleBans(userID)
	require.True(t, ok)
	assert.Empty(t, keys)
}

func TestCacheSweep(t *testing.T) {
	cache := NewCache()
	now := time.Now()
	expired := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	connected := uuid.New()
	gone := uuid.New()

	cache.Set(connected, []model.RoleBan{
		roleBan(1, "Job:Captain", &expired),
		roleBan(2, "Job:Warden", &future),
		roleBan(3, "Job:Detective", nil),
	})
	cache.Set(gone, []model.RoleBan{roleBan(4, "Job:Captain", nil)})

	cache.Sweep(func(id uuid.UUID) bool { return id == connected }, now)

	_, ok := cache.RoleBans(gone)
	assert.False(t, ok, "disconnected user must be evicted")

	keys, ok := cache.RoleBans(connected)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"Job:Warden", "Job:Detective"}, keys)
}
