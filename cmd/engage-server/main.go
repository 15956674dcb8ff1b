package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/moonraker/engage/internal/config"
	"github.com/moonraker/engage/internal/domain/conversation"
	"github.com/moonraker/engage/internal/domain/dashboard"
	"github.com/moonraker/engage/internal/domain/patient"
	"github.com/moonraker/engage/internal/domain/practice"
	"github.com/moonraker/engage/internal/domain/therapist"
	"github.com/moonraker/engage/internal/platform/analytics"
	"github.com/moonraker/engage/internal/platform/auth"
	"github.com/moonraker/engage/internal/platform/blobstore"
	"github.com/moonraker/engage/internal/platform/chatbot"
	"github.com/moonraker/engage/internal/platform/db"
	"github.com/moonraker/engage/internal/platform/demo"
	"github.com/moonraker/engage/internal/platform/hipaa"
	"github.com/moonraker/engage/internal/platform/mcp"
	"github.com/moonraker/engage/internal/platform/middleware"
	"github.com/moonraker/engage/internal/platform/notification"
	"github.com/moonraker/engage/internal/platform/reporting"
	"github.com/moonraker/engage/internal/platform/stream"
	"github.com/moonraker/engage/internal/platform/webhook"
	"github.com/moonraker/engage/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "engage-server",
		Short: "Moonraker Engage API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(practiceCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Engage API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Manage practices",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a practice and its owner account",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			email, _ := cmd.Flags().GetString("email")
			ownerEmail, _ := cmd.Flags().GetString("owner-email")
			ownerPassword, _ := cmd.Flags().GetString("owner-password")
			if name == "" || email == "" {
				return fmt.Errorf("--name and --email are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			practiceSvc := practice.NewService(practice.NewRepository(pool))
			p := &practice.Practice{Name: name, Email: email}
			if err := practiceSvc.Create(ctx, p); err != nil {
				return fmt.Errorf("create practice: %w", err)
			}
			fmt.Printf("Practice created: %s\n", p.ID)

			if ownerEmail != "" {
				if ownerPassword == "" {
					return fmt.Errorf("--owner-password is required with --owner-email")
				}
				tokens := auth.NewTokenManager(cfg.SecretKey,
					time.Duration(cfg.AccessTokenExpireMinutes)*time.Minute,
					time.Duration(cfg.RefreshTokenExpireDays)*24*time.Hour)
				therapistSvc := therapist.NewService(therapist.NewRepository(pool), tokens)
				owner := &therapist.Therapist{
					PracticeID: p.ID.String(),
					Email:      ownerEmail,
					Role:       auth.RoleOwner,
				}
				if err := therapistSvc.Register(ctx, owner, ownerPassword); err != nil {
					return fmt.Errorf("create owner account: %w", err)
				}
				fmt.Printf("Owner account created: %s\n", owner.Email)
			}
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Practice name")
	createCmd.Flags().String("email", "", "Practice contact email")
	createCmd.Flags().String("owner-email", "", "Owner login email (optional)")
	createCmd.Flags().String("owner-password", "", "Owner login password")

	cmd.AddCommand(createCmd)
	return cmd
}

// auditRecorderAdapter bridges the audit middleware to the hipaa access log,
// keeping the middleware package decoupled from the database.
type auditRecorderAdapter struct {
	logger *hipaa.AuditLogger
}

func (a *auditRecorderAdapter) RecordAccess(entry middleware.AuditEntry) error {
	return a.logger.LogAccess(context.Background(), accessLogFromEntry(entry))
}

func accessLogFromEntry(entry middleware.AuditEntry) *hipaa.AccessLog {
	return &hipaa.AccessLog{
		PracticeID:   entry.PracticeID,
		UserID:       entry.UserID,
		Role:         entry.Role,
		ResourceType: entry.ResourceType,
		PatientID:    entry.PatientID,
		Action:       entry.Action,
		IPAddress:    entry.IPAddress,
		UserAgent:    entry.UserAgent,
		RequestID:    entry.RequestID,
		StatusCode:   entry.StatusCode,
		OccurredAt:   entry.Timestamp,
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Tokens and PHI encryption
	secret := cfg.SecretKey
	if secret == "" && cfg.IsDev() {
		secret = "dev-secret-do-not-use-in-production"
	}
	tokens := auth.NewTokenManager(secret,
		time.Duration(cfg.AccessTokenExpireMinutes)*time.Minute,
		time.Duration(cfg.RefreshTokenExpireDays)*24*time.Hour)

	encryption, err := hipaa.NewEncryptionService(cfg.PatientDataEncryptionKey, logger,
		cfg.PatientDataEncryptionKeyPrevious...)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PHI encryption")
	}

	// CRM client. Unconfigured clients make the dashboard serve demo data.
	crm := mcp.NewClient(cfg.GHLMCPServerURL, cfg.GHLAPIKey, cfg.GHLLocationID, logger,
		mcp.WithTimeout(time.Duration(cfg.GHLTimeoutSeconds)*time.Second))
	if crm.Configured() {
		logger.Info().Msg("GoHighLevel CRM connected")
	} else {
		logger.Warn().Msg("GoHighLevel CRM not configured, dashboards serve demo data")
	}

	// Event fan-out
	events := stream.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	defer events.Close()
	hooks := webhook.NewManager(webhook.NewInMemoryStore(), logger)
	hub := websocket.NewHub(logger)
	crmSender := notification.NewCRMSender(crm)
	notifier := notification.NewManager(crmSender, crmSender, notification.NewTemplateEngine())
	tracker := analytics.NewTracker(10000)

	// Knowledge base document storage
	var docs blobstore.DocumentStore
	if cfg.S3Bucket != "" {
		s3Store, err := blobstore.NewS3Store(ctx, cfg.S3Bucket)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize S3 document store")
		}
		docs = s3Store
	} else {
		logger.Warn().Msg("S3_BUCKET not set, knowledge documents are kept in memory")
		docs = blobstore.NewInMemoryStore()
	}

	// Domain services
	practiceSvc := practice.NewService(practice.NewRepository(pool))
	convSvc := conversation.NewService(conversation.NewRepository(pool))
	patientSvc := patient.NewService(patient.NewRepository(pool))
	therapistSvc := therapist.NewService(therapist.NewRepository(pool), tokens)
	if encryption.IsEnabled() {
		convSvc.SetEncryptor(encryption.Encryptor())
		patientSvc.SetEncryptor(encryption.Encryptor())
		therapistSvc.SetEncryptor(encryption.Encryptor())
	}

	dashSvc := dashboard.NewService(convSvc, patientSvc, logger)
	dashSvc.SetCRM(crm)
	dashSvc.SetTracker(tracker)
	dashSvc.SetDocumentStore(docs)

	// Chat session stores
	sessionTTL := time.Duration(cfg.SessionTimeoutMinutes) * time.Minute
	salesSessions := chatbot.NewStore(sessionTTL)
	patientSessions := chatbot.NewPatientStore(sessionTTL)

	chatHandler := conversation.NewChatHandler(convSvc, salesSessions, crm, logger)
	chatHandler.SetConfigSource(practiceSvc)
	chatHandler.SetPublisher(events)
	chatHandler.SetWebhooks(hooks)
	chatHandler.SetTracker(tracker)

	supportHandler := patient.NewSupportHandler(patientSvc, convSvc, patientSessions, logger)
	supportHandler.SetNotifier(notifier, cfg.EmergencyContactEmail, "")
	supportHandler.SetHub(hub)
	supportHandler.SetPublisher(events)
	supportHandler.SetWebhooks(hooks)
	supportHandler.SetTracker(tracker)

	therapistHandler := therapist.NewHandler(therapistSvc, patientSvc, convSvc, logger)
	therapistHandler.SetMessenger(crm)

	// Audit trail and retention
	auditLogger := hipaa.NewAuditLogger(pool)
	retention := hipaa.NewRetentionService(hipaa.DefaultRetentionPolicies(), logger)
	go sweepAuditLogs(ctx, retention, auditLogger, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "5M"))
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Practice-ID", "X-Session-ID"},
	}))
	e.Use(analytics.Middleware(tracker))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Authenticated dashboard API
	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(tokens))
	}
	apiV1.Use(db.PracticeScope("default"))
	apiV1.Use(middleware.Audit(logger, &auditRecorderAdapter{logger: auditLogger}))

	practice.NewHandler(practiceSvc).RegisterRoutes(apiV1)
	dashboard.NewHandler(dashSvc).RegisterRoutes(apiV1)
	therapistHandler.RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	conversation.NewHandler(convSvc).RegisterRoutes(apiV1)
	analytics.NewHandler(tracker).RegisterRoutes(apiV1)
	webhook.NewHandler(hooks).RegisterRoutes(apiV1)
	notification.NewHandler(notifier).RegisterRoutes(apiV1)
	websocket.NewHandler(hub).RegisterRoutes(apiV1)
	reporting.NewHandler(pool).RegisterRoutes(apiV1)
	hipaa.RegisterRetentionRoutes(apiV1, retention)

	docsGroup := apiV1.Group("/practice", auth.RequireRole(auth.RoleOwner, auth.RoleTherapist))
	blobstore.NewHandler(docs).RegisterRoutes(docsGroup)

	if cfg.IsDev() {
		demo.NewSeedHandler().RegisterRoutes(apiV1.Group("/demo"))
	}

	// Public widget and patient chat API
	public := e.Group("/api/public/v1")
	publicRateCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.PublicRateLimitRPS,
		BurstSize:         cfg.PublicRateLimitBurst,
	}
	if publicRateCfg.RequestsPerSecond <= 0 {
		publicRateCfg = middleware.RateLimitConfig{RequestsPerSecond: 5, BurstSize: 10}
	}
	public.Use(middleware.RateLimit(publicRateCfg))
	public.Use(db.PracticeScope("default"))
	public.Use(middleware.Audit(logger, &auditRecorderAdapter{logger: auditLogger}))

	therapistHandler.RegisterPublicRoutes(public)
	chatHandler.RegisterPublicRoutes(public)
	supportHandler.RegisterPublicRoutes(public, tokens)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// sweepAuditLogs purges expired audit rows once a day per the retention
// policy.
func sweepAuditLogs(ctx context.Context, retention *hipaa.RetentionService, purger hipaa.AuditPurger, logger zerolog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := retention.SweepAuditLogs(ctx, purger); err != nil {
				logger.Error().Err(err).Msg("audit log sweep failed")
			} else if n > 0 {
				logger.Info().Int64("purged", n).Msg("audit log sweep complete")
			}
		}
	}
}
