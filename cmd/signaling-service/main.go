package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"careconnect-backend/internal/config"
	signalingHandler "careconnect-backend/internal/handler/http/signaling"
	"careconnect-backend/internal/middleware"
	"careconnect-backend/internal/repository/postgres"
	redisRepo "careconnect-backend/internal/repository/redis"
	chatService "careconnect-backend/internal/service/chat"
	meetingService "careconnect-backend/internal/service/meeting"
	participantService "careconnect-backend/internal/service/participant"
	"careconnect-backend/pkg/audit"
	"careconnect-backend/pkg/database"
	"careconnect-backend/pkg/jwt"
	"careconnect-backend/pkg/logger"
	"careconnect-backend/pkg/metrics"
	"careconnect-backend/pkg/token"
)

const serviceName = "signaling-service"

func main() {
	logger.InitDefault()
	defer logger.Sync()

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET environment variable is required")
	}
	if len(cfg.JWTSecret) < 32 {
		logger.Fatal("JWT_SECRET must be at least 32 characters")
	}

	jwtManager := jwt.NewJWTManager(cfg.JWTSecret, 15*time.Minute)

	ctx := context.Background()

	// Postgres with exponential backoff retry
	db, err := connectPostgres(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to Postgres", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to Postgres", zap.String("host", cfg.DBHost))

	// Redis for peer presence and the audit sink
	redisDB, err := database.NewRedisDB(&database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer redisDB.Close()
	logger.Info("connected to Redis", zap.String("host", cfg.RedisHost))

	// Repositories
	meetingRepo := postgres.NewMeetingRepository(db.Pool)
	participantRepo := postgres.NewParticipantRepository(db.Pool)
	chatRepo := postgres.NewChatRepository(db.Pool)
	presenceRepo := redisRepo.NewPresenceRepository(redisDB.Client)

	// Services
	tokens := token.NewGenerator(meetingRepo)
	meetings := meetingService.NewService(meetingRepo, tokens, cfg.PublicBaseURL)
	participants := participantService.NewService(participantRepo, presenceRepo, meetings, cfg.LivenessWindow)
	chat := chatService.NewService(chatRepo, participantRepo, meetings)

	auditLog := audit.NewLogger(redisDB.Client)

	handler := signalingHandler.NewHandler(meetings, participants, chat, auditLog)

	// HTTP server
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpMetrics := metrics.NewMetrics(serviceName)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.NewPrometheusMiddleware(httpMetrics).Handler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
	})
	router.GET("/metrics", middleware.MetricsHandler())

	handler.RegisterRoutes(router.Group("/v1"), middleware.AuthMiddleware(jwtManager))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("signaling service listening", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-shutdownCtx.Done()
	logger.Info("shutting down")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(timeoutCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// connectPostgres retries the initial connection with exponential backoff so
// the service survives the database coming up after it in orchestration.
func connectPostgres(ctx context.Context, cfg *config.Config) (*database.PostgresDB, error) {
	dbConfig := &database.PostgresConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}

	const maxRetries = 5
	baseDelay := 1 * time.Second
	maxDelay := 30 * time.Second

	var db *database.PostgresDB
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = database.NewPostgresDB(ctx, dbConfig)
		if err == nil {
			return db, nil
		}

		if attempt == maxRetries {
			break
		}

		delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
		if delay > maxDelay {
			delay = maxDelay
		}
		logger.Warn("Postgres connection failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}

	return nil, err
}
