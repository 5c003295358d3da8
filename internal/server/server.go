package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"pos-register/internal/config"
	custommiddleware "pos-register/internal/middleware"
	"pos-register/internal/realtime"
	"pos-register/internal/repository"
	"pos-register/internal/service"
	"pos-register/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client
}

// HealthChecker reports component health for the /health endpoint
type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB, health HealthChecker) *Server {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(health.Health(r.Context()))
	})

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Realtime hub shared by payments and notifications
	hub := realtime.NewHub(redisClient, logger)

	// Initialize services
	userService := service.NewUserService(userRepo, refreshTokenRepo, cfg.JWT.Secret)
	gateway := service.NewStripeGateway(cfg.Gateway.SecretKey, cfg.Gateway.WebhookSecret)
	notificationService := service.NewNotificationService(notificationRepo, hub, logger)
	paymentService := service.NewPaymentService(orderRepo, notificationService, gateway, hub, logger)

	// Initialize handlers
	userHandler := transport.NewUserHandler(userService, logger)
	productHandler := transport.NewProductHandler(productRepo, categoryRepo, logger)
	paymentHandler := transport.NewPaymentHandler(paymentService, gateway, logger)
	realtimeHandler := transport.NewRealtimeHandler(hub, logger)
	notificationHandler := transport.NewNotificationHandler(notificationService, logger)

	// Create middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	loginLimiter := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: 10,
		Window:            time.Minute,
		KeyPrefix:         "login",
	}, logger)

	// Register routes
	userHandler.RegisterRoutes(router, authMiddleware, loginLimiter)
	productHandler.RegisterRoutes(router, authMiddleware)
	paymentHandler.RegisterRoutes(router, authMiddleware)
	realtimeHandler.RegisterRoutes(router, authMiddleware)
	notificationHandler.RegisterRoutes(router, authMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			// WriteTimeout stays unset so /api/realtime event streams can
			// outlive a fixed deadline
			WriteTimeout: 0,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
