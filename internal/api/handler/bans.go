package handler

import (
	"encoding/hex"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"modpulse/internal/ban"
	"modpulse/internal/model"
	"modpulse/internal/roles"
	"modpulse/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// banIdentityInput is the wire form of a ban subject.
type banIdentityInput struct {
	UserID      string `json:"user_id"`
	Address     string `json:"address"`
	AddressCIDR int    `json:"address_cidr"`
	HWID        string `json:"hwid"` // hex-encoded
}

func (in banIdentityInput) identity() (model.BanIdentity, error) {
	var identity model.BanIdentity
	if in.UserID != "" {
		id, err := uuid.Parse(in.UserID)
		if err != nil {
			return identity, errors.New("invalid user id")
		}
		identity.UserID = &id
	}
	if in.Address != "" {
		if _, err := netip.ParseAddr(in.Address); err != nil {
			return identity, errors.New("invalid address")
		}
		identity.Address = in.Address
		identity.AddressCIDR = in.AddressCIDR
	}
	if in.HWID != "" {
		hwid, err := hex.DecodeString(in.HWID)
		if err != nil {
			return identity, errors.New("invalid hwid")
		}
		identity.HWID = hwid
	}
	return identity, nil
}

func parseAdmin(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, errors.New("invalid admin id")
	}
	return &id, nil
}

// CreateServerBan issues a full-server ban.
func CreateServerBan(a *ban.Authority) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			banIdentityInput
			TargetName string `json:"target_name"`
			AdminID    string `json:"admin_id"`
			Minutes    uint   `json:"minutes"`
			Severity   string `json:"severity"`
			Reason     string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		identity, err := input.identity()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		admin, err := parseAdmin(input.AdminID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		severity, err := model.ParseSeverity(input.Severity)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		created, err := a.CreateServerBan(c.Request.Context(), ban.ServerBanParams{
			Identity:   identity,
			TargetName: input.TargetName,
			Admin:      admin,
			Minutes:    input.Minutes,
			Severity:   severity,
			Reason:     input.Reason,
		})
		if errors.Is(err, ban.ErrInvalidIdentity) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create ban"})
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

// CreateRoleBan issues a single role ban.
func CreateRoleBan(a *ban.Authority) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			banIdentityInput
			TargetName string `json:"target_name"`
			AdminID    string `json:"admin_id"`
			Job        string `json:"job"`
			Role       string `json:"role"`
			Minutes    uint   `json:"minutes"`
			Severity   string `json:"severity"`
			Reason     string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		identity, err := input.identity()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		admin, err := parseAdmin(input.AdminID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		severity, err := model.ParseSeverity(input.Severity)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ref := roles.JobRef(input.Job)
		if input.Job == "" {
			ref = roles.Ref{Kind: roles.KindOther, ID: input.Role}
		}

		created, err := a.CreateRoleBan(c.Request.Context(), ban.RoleBanParams{
			Identity:   identity,
			TargetName: input.TargetName,
			Admin:      admin,
			Role:       ref,
			Minutes:    input.Minutes,
			Severity:   severity,
			Reason:     input.Reason,
		})
		switch {
		case errors.Is(err, ban.ErrInvalidIdentity), errors.Is(err, ban.ErrUnknownRole):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ban.ErrAlreadyBanned):
			c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create ban"})
		default:
			c.JSON(http.StatusCreated, created)
		}
	}
}

// CreateDepartmentBan expands a department into its role bans.
func CreateDepartmentBan(a *ban.Authority) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			banIdentityInput
			TargetName string `json:"target_name"`
			AdminID    string `json:"admin_id"`
			Department string `json:"department"`
			Minutes    uint   `json:"minutes"`
			Severity   string `json:"severity"`
			Reason     string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		identity, err := input.identity()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		admin, err := parseAdmin(input.AdminID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		severity, err := model.ParseSeverity(input.Severity)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		err = a.CreateDepartmentBan(c.Request.Context(), ban.DepartmentBanParams{
			Identity:   identity,
			TargetName: input.TargetName,
			Admin:      admin,
			Department: input.Department,
			Minutes:    input.Minutes,
			Severity:   severity,
			Reason:     input.Reason,
		})
		switch {
		case errors.Is(err, ban.ErrInvalidIdentity), errors.Is(err, ban.ErrUnknownRole):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create department ban"})
		default:
			c.JSON(http.StatusCreated, gin.H{"message": "department ban issued"})
		}
	}
}

// PardonRoleBan attaches a pardon to a role ban and reports the outcome.
func PardonRoleBan(a *ban.Authority) gin.HandlerFunc {
	return func(c *gin.Context) {
		banID, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ban id"})
			return
		}

		var input struct {
			AdminID string `json:"admin_id"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		admin, err := parseAdmin(input.AdminID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		status, err := a.PardonRoleBan(c.Request.Context(), uint(banID), admin, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to pardon ban"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}

// Restart marks a round restart: it advances the round counter and runs the
// cache sweep. This is the external trigger the sweep contract expects.
func Restart(a *ban.Authority, rounds *ban.StoreRounds) gin.HandlerFunc {
	return func(c *gin.Context) {
		round := rounds.Advance()
		a.Restart()
		c.JSON(http.StatusOK, gin.H{"round_id": round})
	}
}

// ListRoleBans returns a player's persisted role bans straight from the
// store, optionally including expired ones.
func ListRoleBans(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.Param("userID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		includeExpired := c.Query("include_expired") == "true"

		bans, err := st.GetRoleBans(c.Request.Context(), netip.Addr{}, &userID, nil, includeExpired)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list role bans"})
			return
		}
		c.JSON(http.StatusOK, bans)
	}
}

// GetCachedRoleBans answers from the presence cache. 404 distinguishes "no
// cache entry" from an empty list for a connected, unbanned user.
func GetCachedRoleBans(a *ban.Authority) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := uuid.Parse(c.Param("userID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}

		keys, ok := a.GetRoleBans(userID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "user is not connected"})
			return
		}
		jobs, _ := a.GetJobBans(userID)
		c.JSON(http.StatusOK, gin.H{"roles": keys, "jobs": jobs})
	}
}
