package ban

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/netip"
	"time"

	"modpulse/internal/model"
	"modpulse/internal/notify"
	"modpulse/internal/roles"
	"modpulse/internal/session"
	"modpulse/internal/store"

	"github.com/google/uuid"
)

var (
	// ErrInvalidIdentity rejects a ban whose identity targets nothing.
	ErrInvalidIdentity = errors.New("ban identity has no identifying field")
	// ErrUnknownRole rejects a role ban whose role the catalog cannot resolve.
	ErrUnknownRole = errors.New("unknown role")
	// ErrAlreadyBanned reports duplicate suppression. A normal outcome, not
	// a failure: the existing ban stays in force and nothing was changed.
	ErrAlreadyBanned = errors.New("an identical ban is already active")
)

// Authority owns ban creation, pardon and query. It keeps the store
// authoritative, the presence cache consistent with it, and isolates
// notification fan-out from the ban transaction: a call returns once the
// record is persisted, webhook delivery runs detached.
type Authority struct {
	store    *store.Store
	cache    *Cache
	registry *session.Registry
	catalog  *roles.Catalog
	fanout   *notify.Fanout
	rounds   RoundSource
	showPII  func() bool
}

func NewAuthority(st *store.Store, cache *Cache, registry *session.Registry, catalog *roles.Catalog, fanout *notify.Fanout, rounds RoundSource, showPII func() bool) *Authority {
	return &Authority{
		store:    st,
		cache:    cache,
		registry: registry,
		catalog:  catalog,
		fanout:   fanout,
		rounds:   rounds,
		showPII:  showPII,
	}
}

// Cache exposes the presence cache for read-side callers.
func (a *Authority) Cache() *Cache {
	return a.cache
}

// GetRoleBans returns the cached role-ban keys for a connected user. The
// second return is false when the user has no cache entry at all.
func (a *Authority) GetRoleBans(userID uuid.UUID) ([]string, bool) {
	return a.cache.RoleBans(userID)
}

// GetJobBans returns the cached job-role ids for a connected user.
func (a *Authority) GetJobBans(userID uuid.UUID) ([]string, bool) {
	return a.cache.JobBans(userID)
}

// CheckServerBan is the connection-time gate: it returns the active server
// ban matching any of the connecting identity's fields, nil when clean.
func (a *Authority) CheckServerBan(ctx context.Context, addr netip.Addr, userID *uuid.UUID, hwid []byte) (*model.ServerBan, error) {
	return a.store.GetServerBan(ctx, addr, userID, hwid)
}

// ServerBanParams carries one CreateServerBan request. Minutes zero means
// permanent.
type ServerBanParams struct {
	Identity   model.BanIdentity
	TargetName string
	Admin      *uuid.UUID
	Minutes    uint
	Severity   model.Severity
	Reason     string
}

// CreateServerBan persists a full-server ban, alerts the admin channel,
// dispatches the webhook and kicks the target's live session if any. It
// returns once the record is persisted; only store errors fail the call.
func (a *Authority) CreateServerBan(ctx context.Context, p ServerBanParams) (*model.ServerBan, error) {
	if !p.Identity.Valid() {
		return nil, ErrInvalidIdentity
	}

	bannedAt := time.Now()
	var expires *time.Time
	if p.Minutes > 0 {
		t := bannedAt.Add(time.Duration(p.Minutes) * time.Minute)
		expires = &t
	}

	roundID := a.currentRound()
	playtime, err := a.targetPlaytime(ctx, p.Identity.UserID)
	if err != nil {
		return nil, err
	}

	ban := &model.ServerBan{
		BanIdentity:  p.Identity,
		BannedAt:     bannedAt,
		ExpiresAt:    expires,
		RoundID:      roundID,
		Playtime:     playtime,
		Reason:       p.Reason,
		Severity:     p.Severity,
		BanningAdmin: p.Admin,
	}
	if err := a.store.AddServerBan(ctx, ban); err != nil {
		return nil, err
	}

	adminName := a.fanout.PlayerName(ctx, p.Admin)
	a.fanout.SendAdminAlert(a.formatServerBanLine(ban, p.TargetName, adminName))

	a.fanout.DispatchServerBan(notify.ServerBanNotice{
		BanID:      ban.ID,
		RoundID:    ban.RoundID,
		TargetName: p.TargetName,
		Mention:    a.fanout.MentionToken(ctx, p.Identity.UserID),
		AdminName:  adminName,
		BannedAt:   ban.BannedAt,
		ExpiresAt:  ban.ExpiresAt,
		Minutes:    p.Minutes,
		Reason:     p.Reason,
	})

	// Only a targeted, connected player gets kicked.
	if p.Identity.UserID == nil {
		return ban, nil
	}
	sess, ok := a.registry.TryGetSession(*p.Identity.UserID)
	if !ok {
		return ban, nil
	}
	// Closing the transport makes the read loop unregister the session.
	sess.Disconnect(ban.FormatBanMessage())

	return ban, nil
}

// RoleBanParams carries one CreateRoleBan request. BannedAt is shared across
// a department expansion so the group is later recognizable as one action;
// zero means now.
type RoleBanParams struct {
	Identity       model.BanIdentity
	TargetName     string
	Admin          *uuid.UUID
	Role           roles.Ref
	Minutes        uint
	Severity       model.Severity
	Reason         string
	BannedAt       time.Time
	SuppressNotice bool
}

// CreateRoleBan persists a role ban, updates the target's cache entry and
// pushes the new set to their client. Duplicate submissions return
// ErrAlreadyBanned after emitting an alert, with no cache or webhook side
// effects.
func (a *Authority) CreateRoleBan(ctx context.Context, p RoleBanParams) (*model.RoleBan, error) {
	if !p.Identity.Valid() {
		return nil, ErrInvalidIdentity
	}

	roleName := p.Role.ID
	if p.Role.Kind == roles.KindJob {
		job, ok := a.catalog.TryIndex(p.Role.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, p.Role.ID)
		}
		roleName = job.Name
	} else if p.Role.ID == "" {
		return nil, fmt.Errorf("%w: empty role key", ErrUnknownRole)
	}

	bannedAt := p.BannedAt
	if bannedAt.IsZero() {
		bannedAt = time.Now()
	}
	var expires *time.Time
	if p.Minutes > 0 {
		t := bannedAt.Add(time.Duration(p.Minutes) * time.Minute)
		expires = &t
	}

	roundID := a.currentRound()
	playtime, err := a.targetPlaytime(ctx, p.Identity.UserID)
	if err != nil {
		return nil, err
	}

	ban := &model.RoleBan{
		BanIdentity:  p.Identity,
		Role:         p.Role.Key(),
		BannedAt:     bannedAt,
		ExpiresAt:    expires,
		RoundID:      roundID,
		Playtime:     playtime,
		Reason:       p.Reason,
		Severity:     p.Severity,
		BanningAdmin: p.Admin,
	}

	inserted, err := a.store.AddRoleBan(ctx, ban)
	if err != nil {
		return nil, err
	}
	if !inserted {
		a.fanout.SendAdminAlert(fmt.Sprintf("%s already has an active ban for %s", p.TargetName, ban.Role))
		return nil, ErrAlreadyBanned
	}

	length := notify.LengthString(expires)
	a.fanout.SendAdminAlert(fmt.Sprintf("Banned %s from %s (expires %s): %s", p.TargetName, ban.Role, length, p.Reason))

	if p.Identity.UserID != nil {
		a.cache.Add(*p.Identity.UserID, *ban)
		a.SendRoleBans(*p.Identity.UserID)
	}

	if !p.SuppressNotice {
		a.fanout.DispatchRoleBan(notify.RoleBanNotice{
			AdminName:  a.fanout.PlayerName(ctx, p.Admin),
			RoleName:   roleName,
			TargetName: p.TargetName,
			BannedAt:   bannedAt,
			Length:     length,
			Reason:     p.Reason,
		})
	}

	return ban, nil
}

// DepartmentBanParams carries one CreateDepartmentBan request.
type DepartmentBanParams struct {
	Identity   model.BanIdentity
	TargetName string
	Admin      *uuid.UUID
	Department string
	Minutes    uint
	Severity   model.Severity
	Reason     string
	BannedAt   time.Time
}

// CreateDepartmentBan expands into one role ban per department role, all
// sharing the issuance timestamp, then sends a single aggregate notification
// keyed by the department name instead of one per role.
func (a *Authority) CreateDepartmentBan(ctx context.Context, p DepartmentBanParams) error {
	dept, ok := a.catalog.Department(p.Department)
	if !ok {
		return fmt.Errorf("%w: department %q", ErrUnknownRole, p.Department)
	}

	bannedAt := p.BannedAt
	if bannedAt.IsZero() {
		bannedAt = time.Now()
	}
	var expires *time.Time
	if p.Minutes > 0 {
		t := bannedAt.Add(time.Duration(p.Minutes) * time.Minute)
		expires = &t
	}

	for _, role := range dept.Roles {
		_, err := a.CreateRoleBan(ctx, RoleBanParams{
			Identity:       p.Identity,
			TargetName:     p.TargetName,
			Admin:          p.Admin,
			Role:           roles.JobRef(role),
			Minutes:        p.Minutes,
			Severity:       p.Severity,
			Reason:         p.Reason,
			BannedAt:       bannedAt,
			SuppressNotice: true,
		})
		if err != nil && !errors.Is(err, ErrAlreadyBanned) {
			return err
		}
	}

	a.fanout.DispatchRoleBan(notify.RoleBanNotice{
		AdminName:  a.fanout.PlayerName(ctx, p.Admin),
		RoleName:   dept.Name,
		TargetName: p.TargetName,
		BannedAt:   bannedAt,
		Length:     notify.LengthString(expires),
		Reason:     p.Reason,
	})
	return nil
}

// PardonRoleBan attaches a pardon to a role ban. Missing and already
// pardoned bans yield a descriptive status, not an error; re-pardoning never
// creates a second pardon record.
func (a *Authority) PardonRoleBan(ctx context.Context, banID uint, admin *uuid.UUID, when time.Time) (string, error) {
	ban, err := a.store.GetRoleBan(ctx, banID)
	if err != nil {
		return "", err
	}
	if ban == nil {
		return fmt.Sprintf("No ban found with id %d", banID), nil
	}
	if ban.Unban != nil {
		status := "This ban has already been pardoned"
		if ban.Unban.UnbanningAdmin != nil {
			status += fmt.Sprintf(" by %s", ban.Unban.UnbanningAdmin)
		}
		return fmt.Sprintf("%s in %s.", status, ban.Unban.UnbanTime.UTC().Format(time.RFC1123)), nil
	}

	unban := &model.RoleUnban{BanID: banID, UnbanningAdmin: admin, UnbanTime: when}
	if err := a.store.AddRoleUnban(ctx, unban); err != nil {
		return "", err
	}

	if ban.UserID != nil && a.cache.RemoveBan(*ban.UserID, ban.ID) {
		a.SendRoleBans(*ban.UserID)
	}

	return fmt.Sprintf("Pardoned ban with id %d", banID), nil
}

// HandleSessionEvent populates the cache and pushes the role-ban set when a
// user connects. Disconnects leave the entry for the next sweep.
func (a *Authority) HandleSessionEvent(ev session.Event) {
	if ev.Status != session.StatusConnected || a.cache.Contains(ev.UserID) {
		return
	}

	bans, err := a.store.GetRoleBans(context.Background(), ev.Session.Addr, &ev.UserID, ev.Session.HWID, false)
	if err != nil {
		// Leave the entry absent so the next connect retries the load.
		log.Printf("failed to load role bans for %s: %v", ev.UserID, err)
		return
	}
	a.cache.Set(ev.UserID, bans)
	a.SendRoleBans(ev.UserID)
}

// SendRoleBans pushes the user's current full role-ban set to their client,
// if connected.
func (a *Authority) SendRoleBans(userID uuid.UUID) {
	sess, ok := a.registry.TryGetSession(userID)
	if !ok {
		return
	}
	keys, ok := a.cache.RoleBans(userID)
	if !ok {
		keys = []string{}
	}
	if err := sess.SendRoleBans(keys); err != nil {
		log.Printf("failed to send role bans to %s: %v", sess.Name, err)
	}
}

// Restart runs the round-restart sweep: evict cache entries of disconnected
// users and drop expired bans from the rest. Triggered by whatever owns the
// round lifecycle.
func (a *Authority) Restart() {
	a.cache.Sweep(a.registry.Connected, time.Now())
}

func (a *Authority) currentRound() *int64 {
	if a.rounds == nil {
		return nil
	}
	id := a.rounds.CurrentRound()
	if id == 0 {
		return nil
	}
	return &id
}

func (a *Authority) targetPlaytime(ctx context.Context, userID *uuid.UUID) (time.Duration, error) {
	if userID == nil {
		return 0, nil
	}
	return a.store.OverallPlaytime(ctx, *userID)
}

// formatServerBanLine builds the operator log / admin alert line. PII (the
// banned IP range and hardware id) is included only when the config flag
// permits.
func (a *Authority) formatServerBanLine(ban *model.ServerBan, targetName, adminName string) string {
	target := "null"
	if ban.UserID != nil {
		target = fmt.Sprintf("%s (%s)", targetName, ban.UserID)
	}
	expires := "never"
	if ban.ExpiresAt != nil {
		expires = ban.ExpiresAt.UTC().Format(time.RFC1123)
	}

	if a.showPII != nil && a.showPII() {
		addr := "null"
		if ban.Address != "" {
			addr = fmt.Sprintf("%s/%d", ban.Address, ban.AddressCIDR)
		}
		hwid := "null"
		if len(ban.HWID) > 0 {
			hwid = hex.EncodeToString(ban.HWID)
		}
		return fmt.Sprintf("%s banned %s (severity %s, expires %s, ip %s, hwid %s) with reason: %s",
			adminName, target, ban.Severity, expires, addr, hwid, ban.Reason)
	}
	return fmt.Sprintf("%s banned %s (severity %s, expires %s) with reason: %s",
		adminName, target, ban.Severity, expires, ban.Reason)
}
