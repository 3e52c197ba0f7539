// Package main is the entry point for the Parkwise API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"parkwise/internal/domain/auth"
	v1 "parkwise/internal/infrastructure/http/v1"
	"parkwise/internal/infrastructure/storage/postgres"
	"parkwise/pkg/logger"
)

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting parkwise server")

	// --- Database connection ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if maxConns := getEnvInt("DB_MAX_CONNS", 0); maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}
	if minConns := getEnvInt("DB_MIN_CONNS", 0); minConns > 0 {
		poolCfg.MinConns = int32(minConns)
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	// --- Metrics registry ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// --- Transaction manager ---
	classifier := postgres.NewClassifier()
	if err := registerClassifyRules(classifier); err != nil {
		log.Fatalw("failed to compile classification rules", "error", err)
	}

	txManager := postgres.NewManager(pool, postgres.Config{
		MaxSavepointDepth: getEnvInt("TX_MAX_SAVEPOINT_DEPTH", 0),
		Classifier:        classifier,
		MetricsRegisterer: registry,
	})

	// --- Audit service ---
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- JWT and auth services ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	credentials, err := loadCredentials()
	if err != nil {
		log.Fatalw("failed to load operator credentials", "error", err)
	}
	authService := auth.NewService(jwtService, credentials)

	// --- Metrics housekeeping ---
	retention := getEnvDuration("TX_METRICS_RETENTION", 24*time.Hour)
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go metricsJanitor(janitorCtx, txManager, retention, log)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:            pool,
		TxManager:       txManager,
		AuditService:    auditService,
		Logger:          log,
		JWTValidator:    jwtService,
		AuthService:     authService,
		MetricsRegistry: registry,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// registerClassifyRules adds operator-supplied CEL rules to the classifier.
// TX_TIMEOUT_RULES and TX_DEADLOCK_RULES each hold expressions separated by
// ";", e.g. TX_TIMEOUT_RULES='code == "55P03";message.contains("lock timeout")'.
func registerClassifyRules(c *postgres.Classifier) error {
	for _, spec := range []struct {
		env  string
		kind postgres.Kind
	}{
		{"TX_TIMEOUT_RULES", postgres.KindTimeout},
		{"TX_DEADLOCK_RULES", postgres.KindDeadlock},
	} {
		for _, expr := range strings.Split(os.Getenv(spec.env), ";") {
			expr = strings.TrimSpace(expr)
			if expr == "" {
				continue
			}
			rule, err := postgres.RuleFromExpression(expr, spec.kind)
			if err != nil {
				return fmt.Errorf("%s: %w", spec.env, err)
			}
			c.Register(rule)
		}
	}
	return nil
}

// loadCredentials reads operator credentials from the environment.
// OPERATORS holds semicolon-separated "id:name:bcrypt-hash[:role,...]" entries;
// ADMIN_OPERATOR_ID + ADMIN_PASSWORD provision a built-in admin for
// bootstrap and development.
func loadCredentials() ([]auth.Credential, error) {
	var creds []auth.Credential

	if adminID := os.Getenv("ADMIN_OPERATOR_ID"); adminID != "" {
		hash, err := auth.HashPassword(mustEnv("ADMIN_PASSWORD"))
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		creds = append(creds, auth.Credential{
			OperatorID:   adminID,
			Name:         "Administrator",
			PasswordHash: hash,
			IsAdmin:      true,
		})
	}

	for _, entry := range strings.Split(os.Getenv("OPERATORS"), ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 3 {
			return nil, fmt.Errorf("malformed OPERATORS entry %q", entry)
		}
		cred := auth.Credential{
			OperatorID:   parts[0],
			Name:         parts[1],
			PasswordHash: []byte(parts[2]),
		}
		if len(parts) > 3 {
			cred.Roles = strings.Split(parts[3], ",")
		}
		creds = append(creds, cred)
	}

	return creds, nil
}

// metricsJanitor prunes old transaction metrics periodically.
func metricsJanitor(ctx context.Context, txm *postgres.Manager, retention time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := txm.ClearOldMetrics(retention); removed > 0 {
				log.Infow("pruned transaction metrics", "removed", removed, "retention", retention)
			}
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
