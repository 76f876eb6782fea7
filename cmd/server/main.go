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

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chatllm-backend/internal/config"
	"chatllm-backend/internal/database"
	"chatllm-backend/internal/handlers"
	"chatllm-backend/internal/middleware"
	"chatllm-backend/internal/repository"
	"chatllm-backend/internal/router"
	"chatllm-backend/internal/services"
	"chatllm-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger initialization failed: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting chat llm backend", zap.String("env", cfg.Env), zap.String("storage", cfg.StorageType))

	// ──── Step 2: Open Storage and Run Migrations ────
	userRepo, conversationRepo, closeStorage, err := openStorage(cfg, logger)
	if err != nil {
		logger.Fatal("storage initialization failed", zap.Error(err))
	}
	defer closeStorage()

	var events services.EventPublisher = services.NoopPublisher{}
	var wsHub *websocket.Hub

	// ──── Step 3: Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	hasher := services.NewPasswordHasher(cfg.BcryptCost)
	tokenTTL := time.Duration(cfg.AccessTokenExpireMinutes) * time.Minute
	authService := services.NewAuthService(userRepo, jwtAuth, hasher, tokenTTL, logger)

	// ──── Step 4: Initialize Redis (optional) ────
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
		defer redisClient.Close()

		events = services.NewRedisPublisher(redisClient, logger)
		wsHub = websocket.NewHub(redisClient, authService, logger)
		logger.Info("redis connected, event feed enabled")
	}

	conversationService := services.NewConversationService(conversationRepo, services.DummyInferencer{}, events, logger)

	// ──── Step 5: Initialize Handlers ────
	inferenceTimeout := time.Duration(cfg.InferenceTimeoutSeconds) * time.Second
	authHandler := handlers.NewAuthHandler(authService, logger)
	conversationHandler := handlers.NewConversationHandler(conversationService, inferenceTimeout, logger)

	// ──── Step 6: Start HTTP Server ────
	r := router.New(logger, authService, authHandler, conversationHandler, wsHub, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: inferenceTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("server ready",
		zap.String("api", fmt.Sprintf("http://localhost:%s/api", cfg.Port)),
		zap.Bool("websocket", wsHub != nil))

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
	<-done
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	if cfg.IsDevelopment() {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func openStorage(cfg *config.Config, logger *zap.Logger) (services.UserRepository, services.ConversationRepository, func(), error) {
	switch cfg.StorageType {
	case config.StoragePostgres:
		if err := database.MigratePostgres(cfg.DatabaseURL); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		pool, err := database.NewPostgresPool(cfg.DatabaseURL, database.PoolSize{
			MaxConns: int32(cfg.DBMaxConns),
			MinConns: int32(cfg.DBMinConns),
		})
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("postgres connected, migrations applied")
		return repository.NewUserRepo(pool), repository.NewConversationRepo(pool), pool.Close, nil

	case config.StorageSQLite:
		if err := database.MigrateSQLite(cfg.SQLitePath); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		db, err := database.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("sqlite opened, migrations applied", zap.String("path", cfg.SQLitePath))
		return repository.NewSQLiteUserRepo(db), repository.NewSQLiteConversationRepo(db), func() { db.Close() }, nil

	case config.StorageMemory:
		store := repository.NewMemoryStore()
		logger.Warn("using in-memory storage, data is lost on restart")
		return store.Users, store.Conversations, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage type %q", cfg.StorageType)
	}
}
