package model

import (
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBanIdentityValid(t *testing.T) {
	assert.False(t, BanIdentity{}.Valid())

	id := uuid.New()
	assert.True(t, BanIdentity{UserID: &id}.Valid())
	assert.True(t, BanIdentity{Address: "10.0.0.1"}.Valid())
	assert.True(t, BanIdentity{HWID: []byte{0x01}}.Valid())
}

func TestBanIdentityAddressMatching(t *testing.T) {
	ident := BanIdentity{Address: "10.20.0.0", AddressCIDR: 16}

	assert.True(t, ident.MatchesAddress(netip.MustParseAddr("10.20.1.2")))
	assert.False(t, ident.MatchesAddress(netip.MustParseAddr("10.21.1.2")))
	assert.False(t, ident.MatchesAddress(netip.Addr{}))

	// Zero prefix length means a single-address ban.
	single := BanIdentity{Address: "192.0.2.7"}
	assert.True(t, single.MatchesAddress(netip.MustParseAddr("192.0.2.7")))
	assert.False(t, single.MatchesAddress(netip.MustParseAddr("192.0.2.8")))

	assert.False(t, BanIdentity{}.MatchesAddress(netip.MustParseAddr("192.0.2.7")))
}

func TestServerBanActive(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	permanent := &ServerBan{BannedAt: past}
	assert.True(t, permanent.Active(now))

	expired := &ServerBan{BannedAt: past.Add(-time.Hour), ExpiresAt: &past}
	assert.False(t, expired.Active(now))

	running := &ServerBan{BannedAt: past, ExpiresAt: &future}
	assert.True(t, running.Active(now))

	pardoned := &ServerBan{BannedAt: past, Unban: &ServerUnban{UnbanTime: now}}
	assert.False(t, pardoned.Active(now))
}

func TestFormatBanMessage(t *testing.T) {
	permanent := &ServerBan{Reason: "cheating"}
	msg := permanent.FormatBanMessage()
	assert.Contains(t, msg, "cheating")
	assert.Contains(t, msg, "appeal only")

	expires := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	timed := &ServerBan{Reason: "spam", ExpiresAt: &expires}
	msg = timed.FormatBanMessage()
	assert.Contains(t, msg, "spam")
	assert.Contains(t, msg, "2026")
}

func TestRoleBanJobNamespace(t *testing.T) {
	job := &RoleBan{Role: JobPrefix + "Captain"}
	assert.True(t, job.IsJobBan())
	id, ok := job.JobID()
	require.True(t, ok)
	assert.Equal(t, "Captain", id)

	other := &RoleBan{Role: "Antag:Traitor"}
	assert.False(t, other.IsJobBan())
	_, ok = other.JobID()
	assert.False(t, ok)
}

func TestSeverityOrderingAndParse(t *testing.T) {
	assert.Less(t, SeverityNotice, SeverityMinor)
	assert.Less(t, SeverityMinor, SeverityMajor)
	assert.Less(t, SeverityMajor, SeverityIndefinite)

	for _, name := range []string{"notice", "minor", "major", "indefinite"} {
		sev, err := ParseSeverity(name)
		require.NoError(t, err)
		assert.Equal(t, name, sev.String())
	}

	_, err := ParseSeverity("catastrophic")
	assert.Error(t, err)
}
