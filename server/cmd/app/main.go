package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mymmrac/telego"
	"go.uber.org/zap"

	"tasmil/server/database"
	"tasmil/server/internal/handlers"
	"tasmil/server/internal/services"
	"tasmil/server/internal/verifiers"
	"tasmil/shared/cache"
	"tasmil/shared/config"
	"tasmil/shared/env"
	"tasmil/shared/logger"
	"tasmil/shared/ratelimit"
)

func startHeartbeat(appLogger *logger.Logger) {
	go func() {
		ticker := time.NewTicker(8 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			appLogger.Info("Heartbeat: Program running...")
		}
	}()
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Panicf("FATAL PANIC RECOVERY: %v", r)
		}
	}()

	if err := env.LoadEnv(); err != nil {
		log.Fatalf("FATAL: Failed to load environment variables: %v", err)
	}

	loggerCfg := logger.Config{
		Level:       "info",
		Environment: "production",
	}
	appLogger, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	appLogger.Info("Application logger initialized.")

	dsn := env.DatabaseURL
	if dsn == "" {
		if env.PGHOST == "" || env.PGPORT == "" || env.PGUSER == "" || env.PGDATABASE == "" {
			appLogger.Fatal("Essential database connection variables are missing (DATABASE_URL or PG*)")
		}
		dsn = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			env.PGHOST, env.PGUSER, env.PGPASSWORD, env.PGDATABASE, env.PGPORT)
		appLogger.Info("Constructed database DSN from PG* variables (password hidden)")
	}

	appLogger.Info("Connecting to database...")
	db, errDb := database.ConnectToDatabase(dsn)
	if errDb != nil {
		appLogger.Fatal("Database connection failed", zap.Error(errDb))
	}
	appLogger.Info("Database connection established.")

	appLogger.Info("Running database migrations...")
	if err := database.MigrateDatabase(db, dsn); err != nil {
		appLogger.Fatal("Database migration failed", zap.Error(err))
	}
	appLogger.Info("Database migrations completed.")

	appLogger.Info("Connecting to redis...")
	cacheClient, errCache := cache.New(env.RedisURL)
	if errCache != nil {
		appLogger.Fatal("Redis connection failed", zap.Error(errCache))
	}
	appLogger.Info("Redis connection established.")

	appLogger.Info("Loading application configuration...")
	cfg, errCfg := config.LoadConfig("server/config.yaml")
	if errCfg != nil {
		appLogger.Fatal("Failed to load server/config.yaml", zap.Error(errCfg))
	}
	config.SetGlobalConfig(cfg)
	appLogger.Info("Application configuration loaded.")

	var bot *telego.Bot
	if env.TelegramBotToken != "" {
		bot, err = telego.NewBot(env.TelegramBotToken, telego.WithDiscardLogger())
		if err != nil {
			appLogger.Error("Telegram bot initialization failed, telegram verification disabled", zap.Error(err))
			bot = nil
		} else {
			appLogger.Info("Telegram bot initialized.")
		}
	} else {
		appLogger.Warn("TELEGRAM_BOT_TOKEN not set, telegram verification disabled.")
	}

	registry := verifiers.NewRegistry(
		verifiers.NewTelegramVerifier(bot, appLogger),
		verifiers.NewDiscordVerifier(env.DiscordAPIBaseURL, appLogger),
		verifiers.NewTwitterVerifier(env.TwitterAPIBaseURL, env.TwitterBearerToken, appLogger),
	)

	usersSvc := services.NewUsersService(db, cacheClient, cfg, appLogger)
	claimsSvc := services.NewClaimsService(db, usersSvc, appLogger)
	userTasksSvc := services.NewUserTasksService(db, usersSvc, appLogger)
	campaignsSvc := services.NewCampaignsService(db, cacheClient, cfg, claimsSvc, appLogger)
	verificationSvc := services.NewVerificationService(db, registry, userTasksSvc, appLogger)
	notificationsSvc := services.NewNotificationsService(db, appLogger)
	analyticsSvc := services.NewAnalyticsService(db, cacheClient, cfg, appLogger)
	authSvc := services.NewAuthService(usersSvc, cacheClient, cfg, env.JWTAccessSecret, env.JWTRefreshSecret, appLogger)
	authLimiter := ratelimit.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)

	appLogger.Info("Setting up web server...")
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))
	appLogger.Info("CORS middleware configured.")

	handlers.RegisterRoutes(router, appLogger)
	handlers.RegisterAPIRoutes(router, appLogger, &handlers.Services{
		Auth:          authSvc,
		Users:         usersSvc,
		Campaigns:     campaignsSvc,
		UserTasks:     userTasksSvc,
		Claims:        claimsSvc,
		Verification:  verificationSvc,
		Notifications: notificationsSvc,
		Analytics:     analyticsSvc,
		AuthLimiter:   authLimiter,
		RefreshTTL:    cfg.Auth.RefreshTTLSeconds,
	})
	appLogger.Info("Web server and API routes registered.")

	go func() {
		serverAddr := ":" + env.Port
		appLogger.Info("Starting web server", zap.String("address", serverAddr))
		if err := router.Run(serverAddr); err != nil {
			appLogger.Fatal("Could not start web server.", zap.Error(err))
		}
	}()

	appLogger.Info("Starting heartbeat monitor.")
	startHeartbeat(appLogger)

	appLogger.Info("Application startup complete. Waiting for requests...")
	select {}
}
