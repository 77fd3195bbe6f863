package model

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobPrefix namespaces job-role bans inside the shared role_bans table.
const JobPrefix = "Job:"

// Severity orders moderation notes from informational to indefinite.
type Severity int

const (
	SeverityNotice Severity = iota
	SeverityMinor
	SeverityMajor
	SeverityIndefinite
)

func (s Severity) String() string {
	switch s {
	case SeverityNotice:
		return "notice"
	case SeverityMinor:
		return "minor"
	case SeverityMajor:
		return "major"
	case SeverityIndefinite:
		return "indefinite"
	default:
		return "unknown"
	}
}

// ParseSeverity maps the wire/CLI spelling back to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "notice":
		return SeverityNotice, nil
	case "minor":
		return SeverityMinor, nil
	case "major":
		return SeverityMajor, nil
	case "indefinite":
		return SeverityIndefinite, nil
	}
	return SeverityNotice, fmt.Errorf("unknown severity %q", s)
}

// BanIdentity is the subject of a ban. A ban may target a user id, an IP
// range, a hardware id, or any combination; at least one must be set.
type BanIdentity struct {
	UserID      *uuid.UUID `gorm:"type:text;index" json:"user_id,omitempty"`
	Address     string     `gorm:"index" json:"address,omitempty"`
	AddressCIDR int        `gorm:"column:address_cidr" json:"address_cidr,omitempty"`
	HWID        []byte     `gorm:"column:hwid;index" json:"hwid,omitempty"`
}

// Valid reports whether the identity targets anything at all.
func (i BanIdentity) Valid() bool {
	return i.UserID != nil || i.Address != "" || len(i.HWID) > 0
}

// AddressPrefix returns the banned IP range, if one is recorded.
func (i BanIdentity) AddressPrefix() (netip.Prefix, bool) {
	if i.Address == "" {
		return netip.Prefix{}, false
	}
	addr, err := netip.ParseAddr(i.Address)
	if err != nil {
		return netip.Prefix{}, false
	}
	bits := i.AddressCIDR
	if bits <= 0 || bits > addr.BitLen() {
		bits = addr.BitLen()
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return netip.Prefix{}, false
	}
	return prefix, true
}

// MatchesAddress reports whether addr falls inside the banned IP range.
func (i BanIdentity) MatchesAddress(addr netip.Addr) bool {
	prefix, ok := i.AddressPrefix()
	if !ok || !addr.IsValid() {
		return false
	}
	return prefix.Contains(addr.Unmap())
}

// ServerBan is a full-server ban record. Records are append-only: a pardon
// attaches an unban row instead of deleting anything.
type ServerBan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"-"`
	BanIdentity

	BannedAt     time.Time     `json:"banned_at"`
	ExpiresAt    *time.Time    `json:"expires_at"`
	RoundID      *int64        `json:"round_id"`
	Playtime     time.Duration `json:"playtime"`
	Reason       string        `gorm:"type:text" json:"reason"`
	Severity     Severity      `json:"severity"`
	BanningAdmin *uuid.UUID    `gorm:"type:text" json:"banning_admin"`

	Unban *ServerUnban `gorm:"foreignKey:BanID" json:"unban,omitempty"`
}

// Active reports whether the ban is in force at the given instant.
func (b *ServerBan) Active(now time.Time) bool {
	if b.Unban != nil {
		return false
	}
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}

// FormatBanMessage builds the text shown to a player disconnected by this ban.
func (b *ServerBan) FormatBanMessage() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You, or another user of this computer or connection, are banned from playing here.\n")
	fmt.Fprintf(&sb, "The ban reason is: \"%s\"\n", b.Reason)
	if b.ExpiresAt == nil {
		sb.WriteString("This ban is appeal only.")
	} else {
		fmt.Fprintf(&sb, "This ban expires %s.", b.ExpiresAt.UTC().Format(time.RFC1123))
	}
	return sb.String()
}

// RoleBan forbids one role key for its subject. Department bans are issued
// as a group of these sharing BannedAt, admin, reason and severity.
type RoleBan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"-"`
	BanIdentity

	Role         string        `gorm:"index;not null" json:"role"`
	BannedAt     time.Time     `json:"banned_at"`
	ExpiresAt    *time.Time    `json:"expires_at"`
	RoundID      *int64        `json:"round_id"`
	Playtime     time.Duration `json:"playtime"`
	Reason       string        `gorm:"type:text" json:"reason"`
	Severity     Severity      `json:"severity"`
	BanningAdmin *uuid.UUID    `gorm:"type:text" json:"banning_admin"`

	Unban *RoleUnban `gorm:"foreignKey:BanID" json:"unban,omitempty"`
}

// Active reports whether the role ban is in force at the given instant.
func (b *RoleBan) Active(now time.Time) bool {
	if b.Unban != nil {
		return false
	}
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}

// IsJobBan reports whether the role key lives in the job namespace.
func (b *RoleBan) IsJobBan() bool {
	return strings.HasPrefix(b.Role, JobPrefix)
}

// JobID strips the job namespace prefix, returning false for other role bans.
func (b *RoleBan) JobID() (string, bool) {
	if !b.IsJobBan() {
		return "", false
	}
	return b.Role[len(JobPrefix):], true
}

// ServerUnban pardons one server ban. At most one per ban id.
type ServerUnban struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	BanID          uint       `gorm:"uniqueIndex;not null" json:"ban_id"`
	UnbanningAdmin *uuid.UUID `gorm:"type:text" json:"unbanning_admin"`
	UnbanTime      time.Time  `json:"unban_time"`
}

// RoleUnban pardons one role ban. At most one per ban id.
type RoleUnban struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	BanID          uint       `gorm:"uniqueIndex;not null" json:"ban_id"`
	UnbanningAdmin *uuid.UUID `gorm:"type:text" json:"unbanning_admin"`
	UnbanTime      time.Time  `json:"unban_time"`
}
