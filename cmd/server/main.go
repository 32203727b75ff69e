package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"nexuspay.backend/internal/config"
	"nexuspay.backend/internal/infrastructure/blockchain"
	"nexuspay.backend/internal/infrastructure/email"
	"nexuspay.backend/internal/infrastructure/funding"
	"nexuspay.backend/internal/infrastructure/jobs"
	"nexuspay.backend/internal/infrastructure/keyvault"
	"nexuspay.backend/internal/infrastructure/oracle"
	"nexuspay.backend/internal/infrastructure/repositories"
	"nexuspay.backend/internal/infrastructure/webhook"
	"nexuspay.backend/internal/interfaces/http/handlers"
	"nexuspay.backend/internal/interfaces/http/middleware"
	"nexuspay.backend/internal/usecases"
	"nexuspay.backend/pkg/jwt"
	"nexuspay.backend/pkg/logger"
	"nexuspay.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(dsn string) (*gorm.DB, error) {
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt:    false,
			TranslateError: true,
		})
	}
	runServer = func(r *gin.Engine, port string) error { return r.Run(":" + port) }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	migrate := flag.Bool("migrate", false, "apply schema migrations and exit")
	flag.Parse()

	if err := runMainProcess(*migrate); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess(migrate bool) error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)

	if migrate {
		if err := runMigrations(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Println("Migrations applied")
		return nil
	}

	if err := sqlDB.Ping(); err != nil {
		log.Printf("Database not available: %v (endpoints will return errors)", err)
	} else {
		log.Println("Connected to PostgreSQL via GORM")
	}

	if err := initRedis(cfg.Redis.URL, cfg.Redis.PASSWORD); err != nil {
		logger.Error(context.Background(), "Failed to initialize Redis", zap.Error(err))
		return fmt.Errorf("failed to initialize redis: %w", err)
	}
	logger.Info(context.Background(), "Redis initialized")

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.Expiry)

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	memberRepo := repositories.NewProjectMemberRepository(db)
	apiKeyRepo := repositories.NewAPIKeyRepository(db)
	usageRepo := repositories.NewAPIKeyUsageRepository(db)
	paymasterRepo := repositories.NewPaymasterRepository(db)
	balanceRepo := repositories.NewPaymasterBalanceRepository(db)
	paymentRepo := repositories.NewPaymasterPaymentRepository(db)
	walletRepo := repositories.NewWalletRepository(db)
	txLogRepo := repositories.NewTransactionLogRepository(db)
	activityRepo := repositories.NewUserActivityRepository(db)
	dailyRepo := repositories.NewDailyMetricRepository(db)

	// Infrastructure collaborators
	registry := blockchain.NewRegistry(cfg.Chains)
	priceClient := oracle.NewClient(cfg.Oracle)
	emailSender := email.NewSender(cfg.Email)
	emailValidator := email.NewValidator()
	webhookDispatcher := webhook.NewDispatcher(cfg.Security.WebhookSigningSecret)
	fundingService := funding.NewService(cfg.Stripe)
	vault, err := keyvault.New(cfg.Security.PaymasterKeyEncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize key vault: %w", err)
	}

	// Background jobs
	balanceRefresher := jobs.NewBalanceRefresher(paymasterRepo, balanceRepo, projectRepo, registry, priceClient, webhookDispatcher, cfg.Chains)
	receiptPoller := jobs.NewReceiptPoller(paymentRepo, txLogRepo, walletRepo, activityRepo, projectRepo, registry, priceClient, webhookDispatcher, cfg.Chains)
	usageWriter := jobs.NewUsageWriter(usageRepo)
	analyticsRollup := jobs.NewAnalyticsRollup(txLogRepo, dailyRepo, paymasterRepo)

	// Usecases
	authUsecase := usecases.NewAuthUsecase(userRepo, emailValidator, emailSender, jwtService)
	paymasterUsecase := usecases.NewPaymasterUsecase(paymasterRepo, balanceRepo, paymentRepo, fundingService, balanceRefresher, registry, vault, cfg.Security)
	projectUsecase := usecases.NewProjectUsecase(projectRepo, memberRepo, userRepo, apiKeyRepo, paymasterRepo, paymasterUsecase, emailSender)
	apiKeyUsecase, err := usecases.NewAPIKeyUsecase(apiKeyRepo, projectRepo, projectUsecase, webhookDispatcher, cfg.Security, cfg.Server)
	if err != nil {
		return err
	}
	walletUsecase := usecases.NewWalletUsecase(walletRepo, paymasterRepo, balanceRepo, paymentRepo, txLogRepo, activityRepo, registry, vault, cfg.Security)
	transactionUsecase := usecases.NewTransactionUsecase(txLogRepo)
	analyticsUsecase := usecases.NewAnalyticsUsecase(txLogRepo, activityRepo, dailyRepo)

	// Handlers
	authHandler := handlers.NewAuthHandler(authUsecase)
	projectHandler := handlers.NewProjectHandler(projectUsecase)
	apiKeyHandler := handlers.NewAPIKeyHandler(apiKeyUsecase, usageRepo)
	walletHandler := handlers.NewWalletHandler(walletUsecase)
	paymasterHandler := handlers.NewPaymasterHandler(paymasterUsecase, transactionUsecase)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsUsecase, paymasterUsecase)

	projectAuth := middleware.NewProjectAuth(jwtService, userRepo, projectRepo, apiKeyUsecase, projectUsecase, cfg.Server.IsProduction())

	// Start background jobs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go balanceRefresher.Start(ctx)
	go receiptPoller.Start(ctx)
	go usageWriter.Start(ctx)
	go analyticsRollup.Start(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.SecurityHeadersMiddleware(cfg.RateLimit.MaxBodyBytes))
	r.Use(middleware.CORSMiddleware(corsOrigins()))

	registerHealthRoutes(r)
	registerAPIV1Routes(r, routeDeps{
		authHandler:      authHandler,
		projectHandler:   projectHandler,
		apiKeyHandler:    apiKeyHandler,
		walletHandler:    walletHandler,
		paymasterHandler: paymasterHandler,
		analyticsHandler: analyticsHandler,
		projectAuth:      projectAuth.Handler(),
		sessionAuth:      middleware.SessionAuthMiddleware(jwtService, userRepo),
		rateLimits:       cfg.RateLimit,
		usageWriter:      usageWriter,
	})

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")
		balanceRefresher.Stop()
		receiptPoller.Stop()
		usageWriter.Stop()
		analyticsRollup.Stop()
		cancel()
	}()

	log.Printf("NexusPay backend starting on port %s", cfg.Server.Port)
	if err := runServer(r, cfg.Server.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func corsOrigins() []string {
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		return splitAndTrim(raw)
	}
	return []string{"http://localhost:3000"}
}
