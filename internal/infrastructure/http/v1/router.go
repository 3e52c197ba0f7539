// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parkwise/internal/domain/auth"
	"parkwise/internal/domain/garage"
	"parkwise/internal/domain/session"
	"parkwise/internal/domain/spot"
	"parkwise/internal/infrastructure/http/v1/handlers"
	"parkwise/internal/infrastructure/http/v1/middleware"
	"parkwise/internal/infrastructure/storage/postgres"
	"parkwise/internal/infrastructure/storage/postgres/parking_repo"
	"parkwise/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks).
	Pool *postgres.Pool

	// TxManager runs every unit of work.
	TxManager *postgres.Manager

	// AuditService records entity changes.
	AuditService *postgres.AuditService

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// AuthService for authentication endpoints
	AuthService *auth.Service

	// MetricsRegistry serves /metrics. Nil disables the endpoint.
	MetricsRegistry *prometheus.Registry
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// Prometheus metrics endpoint
	if cfg.MetricsRegistry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.MetricsRegistry, promhttp.HandlerOpts{})))
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		registerAuthRoutes(v1, cfg)

		// Protected endpoints
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		registerParkingRoutes(protected, cfg)
		registerObservabilityRoutes(protected, cfg)
	}

	return router
}

// registerAuthRoutes registers authentication endpoints.
func registerAuthRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.AuthService == nil {
		return
	}

	baseHandler := handlers.NewBaseHandler()
	authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)

	publicAuth := rg.Group("/auth")

	protectedAuth := rg.Group("/auth")
	protectedAuth.Use(middleware.Auth(cfg.JWTValidator))

	authHandler.RegisterRoutes(publicAuth, protectedAuth)
}

// registerParkingRoutes registers garage, spot and session endpoints.
func registerParkingRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()

	garageRepo := parking_repo.NewGarageRepo(cfg.TxManager)
	spotRepo := parking_repo.NewSpotRepo(cfg.TxManager)
	sessionRepo := parking_repo.NewSessionRepo(cfg.TxManager)
	auditor := parking_repo.NewSessionAuditor(cfg.AuditService)

	garageService := garage.NewService(garageRepo, cfg.TxManager)
	spotService := spot.NewService(spotRepo, cfg.TxManager)
	sessionService := session.NewService(sessionRepo, spotRepo, cfg.TxManager, auditor)

	garageHandler := handlers.NewGarageHandler(baseHandler, garageService)
	spotHandler := handlers.NewSpotHandler(baseHandler, spotService)
	sessionHandler := handlers.NewSessionHandler(baseHandler, sessionService)

	garages := rg.Group("/garages")
	spots := rg.Group("/spots")
	sessions := rg.Group("/sessions")

	// Garage mutations are privileged; check-in/check-out are daily operator work.
	garageHandler.RegisterRoutes(garages, middleware.RequireRole("admin"))
	spotHandler.RegisterRoutes(garages, spots)
	sessionHandler.RegisterRoutes(garages, sessions)
}

// registerObservabilityRoutes registers transaction and audit endpoints.
func registerObservabilityRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()

	txHandler := handlers.NewTransactionsHandler(baseHandler, cfg.TxManager)
	txHandler.RegisterRoutes(rg.Group("/transactions", middleware.RequireRole("admin", "supervisor")))

	auditHandler := handlers.NewAuditHandler(baseHandler, cfg.AuditService)
	auditHandler.RegisterRoutes(rg.Group("/audit", middleware.RequireRole("admin", "supervisor")))
}
