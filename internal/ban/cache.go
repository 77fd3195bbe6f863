package ban

import (
	"sync"
	"time"

	"modpulse/internal/model"

	"github.com/google/uuid"
)

// Cache holds the active role bans of currently connected users, keyed by
// user id and ban id. It is a presence cache: entries exist only while the
// user is connected, eviction happens on the restart sweep rather than by
// size or TTL. The store stays authoritative; the cache only saves a store
// round-trip on role-selection checks.
type Cache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]map[uint]model.RoleBan
}

func NewCache() *Cache {
	return &Cache{entries: make(map[uuid.UUID]map[uint]model.RoleBan)}
}

// Set replaces the user's entry with the given bans, creating it if absent.
// An empty slice still creates the entry: "connected with zero bans" is
// distinct from "not cached".
func (c *Cache) Set(userID uuid.UUID, bans []model.RoleBan) {
	entry := make(map[uint]model.RoleBan, len(bans))
	for _, b := range bans {
		entry[b.ID] = b
	}
	c.mu.Lock()
	c.entries[userID] = entry
	c.mu.Unlock()
}

// Add inserts one ban into the user's entry. A no-op when the user has no
// entry; cache population happens on connect, and the persisted record will
// be loaded then.
func (c *Cache) Add(userID uuid.UUID, ban model.RoleBan) {
	c.mu.Lock()
	if entry, ok := c.entries[userID]; ok {
		entry[ban.ID] = ban
	}
	c.mu.Unlock()
}

// RemoveBan drops one ban id from the user's entry, reporting whether it was
// present.
func (c *Cache) RemoveBan(userID uuid.UUID, banID uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[userID]
	if !ok {
		return false
	}
	if _, ok := entry[banID]; !ok {
		return false
	}
	delete(entry, banID)
	return true
}

// Contains reports whether the user has an entry at all.
func (c *Cache) Contains(userID uuid.UUID) bool {
	c.mu.RLock()
	_, ok := c.entries[userID]
	c.mu.RUnlock()
	return ok
}

// RoleBans returns the user's cached role-ban keys. The second return is
// false when the user has no entry, which callers must not conflate with an
// empty set.
func (c *Cache) RoleBans(userID uuid.UUID) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	keys := make([]string, 0, len(entry))
	seen := make(map[string]struct{}, len(entry))
	for _, b := range entry {
		if _, dup := seen[b.Role]; dup {
			continue
		}
		seen[b.Role] = struct{}{}
		keys = append(keys, b.Role)
	}
	return keys, true
}

// JobBans returns the user's cached job-role ids with the namespace prefix
// stripped. Same absent-versus-empty contract as RoleBans.
func (c *Cache) JobBans(userID uuid.UUID) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	jobs := make([]string, 0, len(entry))
	seen := make(map[string]struct{}, len(entry))
	for _, b := range entry {
		id, isJob := b.JobID()
		if !isJob {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		jobs = append(jobs, id)
	}
	return jobs, true
}

// Sweep evicts entries for users that are no longer connected and drops
// expired bans from the remaining entries. Expiry is lazy: an expired ban
// stays in the cache until the next sweep, the store stays authoritative.
func (c *Cache) Sweep(connected func(uuid.UUID) bool, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for userID, entry := range c.entries {
		if !connected(userID) {
			delete(c.entries, userID)
			continue
		}
		for id, b := range entry {
			if b.ExpiresAt != nil && now.After(*b.ExpiresAt) {
				delete(entry, id)
			}
		}
	}
}
