package main

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"modpulse/internal/api/handler"
	"modpulse/internal/api/middleware"
	apiws "modpulse/internal/api/websocket"
	"modpulse/internal/ban"
	"modpulse/internal/bot"
	"modpulse/internal/config"
	"modpulse/internal/model"
	"modpulse/internal/notify"
	"modpulse/internal/roles"
	"modpulse/internal/session"
	"modpulse/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "modpulse",
		Short: "Moderation and ban authority service",
		Long:  "modpulse records server and role bans, enforces them at connect time and fans state changes out to admin chat and webhooks.",
		RunE:  runServe,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "modpulse.yaml", "path to the service config file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	seedAdminUser(st)

	jwtSecret := loadOrCreateJWTSecret(cfg.JWTSecretFile)

	catalog := defaultCatalog()
	if cfg.RoleCatalogPath != "" {
		catalog, err = roles.LoadCatalog(cfg.RoleCatalogPath)
		if err != nil {
			return err
		}
	}

	registry := session.NewRegistry()
	cache := ban.NewCache()
	rounds := ban.NewStoreRounds(st)

	var alerts notify.AlertSink = notify.LogAlerts{}
	botToken := st.ConfigValue(model.ConfigKeyTelegramBotToken)
	chatID, _ := strconv.ParseInt(st.ConfigValue(model.ConfigKeyTelegramChatID), 10, 64)
	if botToken != "" && chatID != 0 {
		botHandler, err := bot.NewBotHandler(botToken, chatID, st.DB())
		if err != nil {
			return err
		}
		go botHandler.Start()
		alerts = botHandler
		log.Println("Telegram alert bot started.")
	} else {
		log.Println("Telegram Bot Token not configured in DB. Admin alerts go to the log only.")
	}

	webhook := notify.NewWebhook(func() string {
		return st.ConfigValue(model.ConfigKeyBanWebhookURL)
	})
	fanout := notify.NewFanout(st, alerts, webhook)

	authority := ban.NewAuthority(st, cache, registry, catalog, fanout, rounds, func() bool {
		return st.ConfigValue(model.ConfigKeyShowPIIOnBan) == "true"
	})
	registry.Subscribe(authority.HandleSessionEvent)

	startSweeper(authority, cfg.SweepInterval.Std())

	router := setupRouter(st, registry, authority, rounds, jwtSecret)
	log.Printf("Server listening on %s", cfg.ListenAddr)
	return http.ListenAndServe(cfg.ListenAddr, router)
}

func setupRouter(st *store.Store, registry *session.Registry, authority *ban.Authority, rounds *ban.StoreRounds, jwtSecret string) http.Handler {
	router := gin.Default()
	router.Use(middleware.CORSMiddleware())

	public := router.Group("/api/v1")
	{
		public.POST("/login", handler.Login(st.DB(), jwtSecret))
	}

	auth := router.Group("/api/v1")
	auth.Use(middleware.AuthMiddleware(st.DB(), jwtSecret))
	{
		// Ban management
		auth.POST("/bans", handler.CreateServerBan(authority))
		auth.POST("/role-bans", handler.CreateRoleBan(authority))
		auth.POST("/department-bans", handler.CreateDepartmentBan(authority))
		auth.POST("/role-bans/:id/pardon", handler.PardonRoleBan(authority))
		auth.GET("/players/:userID/role-bans", handler.ListRoleBans(st))
		auth.GET("/players/:userID/role-bans/cached", handler.GetCachedRoleBans(authority))

		// Round lifecycle
		auth.POST("/restart", middleware.RoleCheck("admin"), handler.Restart(authority, rounds))

		// User management
		auth.POST("/users", middleware.RoleCheck("admin"), handler.CreateUser(st.DB()))
		auth.PUT("/users/change-password", handler.ChangePassword(st.DB()))

		// Config Management
		auth.GET("/config/moderation", middleware.RoleCheck("admin"), handler.GetModerationConfig(st))
		auth.PUT("/config/moderation", middleware.RoleCheck("admin"), handler.UpdateModerationConfig(st))
		auth.GET("/config/telegram", middleware.RoleCheck("admin"), handler.GetTelegramConfig(st))
		auth.PUT("/config/telegram", middleware.RoleCheck("admin"), handler.UpdateTelegramConfig(st))
	}

	// Player session endpoint. Not behind the admin JWT; the server-ban
	// check is the gate.
	router.GET("/ws/session", func(c *gin.Context) {
		apiws.SessionHandler(c, st, registry, authority)
	})

	return router
}

// startSweeper stands in for the round scheduler: it runs the lazy-expiry
// cache sweep on a fixed interval.
func startSweeper(authority *ban.Authority, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			authority.Restart()
		}
	}()
}

func seedAdminUser(st *store.Store) {
	var count int64
	st.DB().Model(&model.User{}).Count(&count)
	if count == 0 {
		admin := model.User{
			Username: "admin",
			Password: "admin123",
			Role:     "admin",
		}
		st.DB().Create(&admin)
		log.Println("Created initial admin user. Password: 'admin123'")
	}
}

func loadOrCreateJWTSecret(path string) string {
	secretBytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Println("JWT secret file not found, generating a new one...")
			newSecret, err := generateRandomString(32)
			if err != nil {
				log.Fatalf("failed to generate JWT secret: %v", err)
			}
			err = os.WriteFile(path, []byte(newSecret), 0600)
			if err != nil {
				log.Fatalf("failed to write JWT secret to file: %v", err)
			}
			log.Printf("Generated and saved new JWT secret to %s", path)
			return newSecret
		}
		log.Fatalf("failed to read JWT secret file: %v", err)
	}
	log.Printf("Loaded JWT secret from %s", path)
	return string(secretBytes)
}

func generateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// defaultCatalog is the built-in role set used when no catalog file is
// configured.
func defaultCatalog() *roles.Catalog {
	return roles.NewCatalog(
		[]roles.Job{
			{ID: "Captain", Name: "Captain"},
			{ID: "SecurityOfficer", Name: "Security Officer"},
			{ID: "Warden", Name: "Warden"},
			{ID: "Detective", Name: "Detective"},
			{ID: "StationEngineer", Name: "Station Engineer"},
			{ID: "AtmosphericTechnician", Name: "Atmospheric Technician"},
			{ID: "MedicalDoctor", Name: "Medical Doctor"},
			{ID: "Chemist", Name: "Chemist"},
		},
		[]roles.Department{
			{ID: "Security", Name: "Security", Roles: []string{"SecurityOfficer", "Warden", "Detective"}},
			{ID: "Engineering", Name: "Engineering", Roles: []string{"StationEngineer", "AtmosphericTechnician"}},
			{ID: "Medical", Name: "Medical", Roles: []string{"MedicalDoctor", "Chemist"}},
		},
	)
}
