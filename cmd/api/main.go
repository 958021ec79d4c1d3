package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pbujok/budgetbook/internal/infra/postgres"
	infraRedis "github.com/pbujok/budgetbook/internal/infra/redis"
	"github.com/pbujok/budgetbook/internal/ledger"
	"github.com/pbujok/budgetbook/internal/platform/user"
	"github.com/pbujok/budgetbook/internal/transport/httpapi"
	"github.com/pbujok/budgetbook/internal/transport/httpapi/handler"
	"github.com/pbujok/budgetbook/internal/transport/httpapi/middleware"
	"github.com/pbujok/budgetbook/pkg/config"
	"github.com/pbujok/budgetbook/pkg/logger"
)

func main() {
	// Create context that listens for termination signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewDefault(cfg.Env)
	log.Info("Starting Budgetbook API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Apply schema migrations before opening the pool
	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	log.Info("Database migrations applied")

	// Initialize database connection pool
	db, err := postgres.NewPool(ctx, postgres.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("Database connection established")

	// Initialize Redis client for summary caching
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()

	// The summary cache is best-effort; a missing Redis only disables it.
	var summaryCache ledger.SummaryCache
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, summary cache disabled", "error", err)
	} else {
		log.Info("Redis connection established")
		ttl := time.Duration(cfg.SummaryCacheTTL) * time.Second
		summaryCache = infraRedis.NewSummaryCacheWithTTL(redisClient, ttl, log)
	}

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db.Pool)
	accountRepo := postgres.NewAccountRepository(db.Pool)
	txnRepo := postgres.NewTransactionRepository(db.Pool)
	budgetRepo := postgres.NewBudgetRepository(db.Pool)

	// Initialize services
	userSvc := user.NewService(userRepo)
	jwtSvc := middleware.NewJWTService(cfg.JWTSecret)
	manager := ledger.NewManager(budgetRepo)
	ledgerSvc := ledger.NewService(accountRepo, txnRepo, budgetRepo, manager, summaryCache, log)
	log.Info("Ledger service initialized")

	// Initialize HTTP handlers
	authHandler := handler.NewAuthHandler(userSvc, jwtSvc)
	budgetHandler := handler.NewBudgetHandler(ledgerSvc)
	accountHandler := handler.NewAccountHandler(ledgerSvc)
	transactionHandler := handler.NewTransactionHandler(ledgerSvc)
	healthHandler := handler.NewHealthHandler(db)

	// Create JWT middleware
	jwtMiddleware := middleware.JWTMiddleware(jwtSvc)

	// Determine allowed origins for CORS
	allowedOrigins := []string{"http://localhost:5173", "http://localhost:5174"} // Vite ports
	if cfg.IsProduction() {
		if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
			allowedOrigins = []string{origins}
		}
	}

	// Create HTTP router
	r := httpapi.NewRouter(httpapi.Config{
		Logger:             log,
		AllowedOrigins:     allowedOrigins,
		AuthHandler:        authHandler,
		BudgetHandler:      budgetHandler,
		AccountHandler:     accountHandler,
		TransactionHandler: transactionHandler,
		HealthHandler:      healthHandler,
		JWTMiddleware:      jwtMiddleware,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()
	log.Info("Shutdown signal received")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}
