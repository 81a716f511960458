package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/fixithostel/fixit/internal/config"
	"github.com/fixithostel/fixit/internal/database"
	"github.com/fixithostel/fixit/internal/handlers"
	"github.com/fixithostel/fixit/internal/jobs"
	"github.com/fixithostel/fixit/internal/middleware"
	"github.com/fixithostel/fixit/internal/notify"
	"github.com/fixithostel/fixit/internal/services"
	slackutil "github.com/fixithostel/fixit/internal/slack"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting FixIt for %s...", cfg.Hostel.Name)

	if cfg.AdminPassword == "" {
		log.Fatalf("ADMIN_PASSWORD is not set")
	}
	passwordHash, err := middleware.HashPassword(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	if err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}
	if err := database.InitializeDefaults(cfg.AdminEmail, passwordHash); err != nil {
		log.Fatalf("Failed to initialize database defaults: %v", err)
	}
	db := database.GetDB()

	jwtAuthMiddleware := middleware.NewJWTAuthMiddleware(&middleware.JWTAuthConfig{
		JWTSecret:      cfg.JWTSecret,
		JWTExpiryHours: cfg.JWTExpiryHours,
		SkipPaths: []string{
			"/health",
			"/auth/login",
			"/auth/register",
		},
	})

	userService := services.NewUserService(db)
	mergeService := services.NewMergeService(db)

	// Browsers get every event over the hub; Slack (or the log) carries the rest
	eventsHub := handlers.NewEventsHub(cfg.AllowedOrigins)
	dispatcher := notify.NewMulti(eventsHub)
	slackCfg := slackutil.Config{
		BotToken:        cfg.SlackBotToken,
		FallbackChannel: cfg.SlackFallbackChannel,
		ProxyURL:        cfg.SlackProxyURL,
	}
	if slackCfg.Enabled() {
		dispatcher.Add(slackutil.NewNotifier(slackCfg, userService))
		log.Printf("Slack notifications are ENABLED (fallback channel: %s)", slackCfg.FallbackChannel)
	} else {
		dispatcher.Add(notify.Log{})
		log.Printf("Slack notifications are DISABLED (set SLACK_BOT_TOKEN to enable)")
	}

	issueService := services.NewIssueService(db, mergeService, dispatcher)
	issueService.SetCategories(cfg.Hostel.Categories)
	analyticsService := services.NewAnalyticsService(db)
	boardService := services.NewBoardService(db)

	auditor := jobs.NewMergeAuditor(db)
	if err := auditor.Start(cfg.Hostel.AuditSchedule); err != nil {
		log.Fatalf("Failed to start merge auditor: %v", err)
	}

	mux := http.NewServeMux()
	handlers.NewHTTPHandler(db).SetupRoutes(mux)
	handlers.NewAuthHandler(jwtAuthMiddleware, userService).SetupRoutes(mux)
	handlers.NewAPIHandler(issueService, mergeService, userService, analyticsService, boardService, auditor).SetupRoutes(mux)
	eventsHub.SetupRoutes(mux)

	// Request IDs wrap everything so the access log and CORS preflights carry them
	corsMiddleware := middleware.NewCORSMiddleware(cfg.AllowedOrigins...)
	handler := middleware.RequestIDMiddleware(
		middleware.AccessLogMiddleware(
			corsMiddleware.Wrap(jwtAuthMiddleware.Wrap(mux)),
		),
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting HTTP server on port %d", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Printf("Health check endpoint: http://localhost:%d/health", cfg.HTTPPort)
	log.Printf("API base URL: http://localhost:%d/api", cfg.HTTPPort)
	log.Printf("Events stream: ws://localhost:%d/ws/events", cfg.HTTPPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Received shutdown signal, cleaning up...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	log.Println("Shutting down HTTP server...")
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	log.Println("Stopping merge auditor...")
	auditor.Stop()

	if err := database.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
	log.Println("Shutdown complete")
}
