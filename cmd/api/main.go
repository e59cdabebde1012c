package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/config"
	"github.com/BradenHooton/gatekeeper/internal/database"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	middlewareCustom "github.com/BradenHooton/gatekeeper/internal/middleware"
	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/repositories"
	"github.com/BradenHooton/gatekeeper/internal/routes"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkgauth "github.com/BradenHooton/gatekeeper/pkg/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// attemptStore is what every backend provides
type attemptStore interface {
	services.AttemptRepository
	handlers.HealthChecker
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store", cfg.Store.Backend),
		slog.Bool("guard_enabled", cfg.Guard.Enabled))

	// Initialize attempt store
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, eventRepo, closeStore, err := openStore(startupCtx, cfg, logger)
	startupCancel()
	if err != nil {
		logger.Error("failed to open attempt store", slog.String("store", cfg.Store.Backend), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	// Initialize services
	securityEvents := services.NewSecurityEventService(eventRepo, logger)
	lockoutService := services.NewLockoutService(store, securityEvents, lockoutConfig(cfg.Guard), logger, cfg.Server.Env)

	// Credential verifier
	users, err := loadUsers(cfg.Auth.UsersFile, logger)
	if err != nil {
		logger.Error("failed to load users", slog.Any("error", err))
		os.Exit(1)
	}
	verifier, err := auth.NewStaticVerifier(users)
	if err != nil {
		logger.Error("failed to initialize credential verifier", slog.Any("error", err))
		os.Exit(1)
	}

	// Timing delay for failed and blocked logins
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(lockoutService, verifier, timingDelay, logger, cfg.Server.Env)
	healthHandler := handlers.NewHealthHandler(store, cfg.Store.Backend, logger)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger, lockoutService.ResolveIdentity))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	// Register routes
	routes.RegisterRoutes(router, authHandler, healthHandler, routes.Options{
		RateLimit:      middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Server.RequestsPerMin},
		Identity:       lockoutService.ResolveIdentity,
		MetricsEnabled: cfg.Server.MetricsEnabled,
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func lockoutConfig(g config.GuardConfig) services.LockoutConfig {
	return services.LockoutConfig{
		Enabled:                g.Enabled,
		MaxAttemptsPerIP:       g.MaxAttemptsPerIP,
		LockoutDuration:        time.Duration(g.LockoutDurationMinutes) * time.Minute,
		MaxAttemptsPerUsername: g.MaxAttemptsPerUsername,
		TrustedProxies:         g.TrustedProxies,
	}
}

// openStore connects the configured backend. Only postgres also persists
// security events; the other backends log them.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (attemptStore, services.SecurityEventRepository, func(), error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return repositories.NewLoginAttemptRepository(db), repositories.NewSecurityEventRepository(db), db.Close, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		repo := repositories.NewRedisLoginAttemptRepository(client, cfg.Redis.KeyPrefix, services.RetentionHorizon)
		if err := repo.HealthCheck(ctx); err != nil {
			client.Close()
			return nil, nil, nil, err
		}
		logger.Info("redis attempt store ready", slog.String("addr", cfg.Redis.Addr))
		return repo, nil, func() { client.Close() }, nil

	case config.StoreSQLite:
		repo, err := repositories.NewSQLiteLoginAttemptRepository(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("sqlite attempt store ready", slog.String("path", cfg.Store.SQLitePath))
		return repo, nil, func() { repo.Close() }, nil
	}

	return nil, nil, nil, fmt.Errorf("%w: %q", models.ErrUnknownStore, cfg.Store.Backend)
}

// loadUsers reads the users file and adds the bootstrap account from
// ADMIN_USERNAME and ADMIN_PASSWORD if both are set
func loadUsers(path string, logger *slog.Logger) (map[string]string, error) {
	users := make(map[string]string)
	if path != "" {
		loaded, err := auth.LoadUsersFile(path)
		if err != nil {
			return nil, err
		}
		users = loaded
	}

	adminUsername := os.Getenv("ADMIN_USERNAME")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminUsername == "" || adminPassword == "" {
		logger.Info("no ADMIN_USERNAME or ADMIN_PASSWORD set, skipping bootstrap account")
	} else if _, exists := users[adminUsername]; exists {
		logger.Info("bootstrap account already present in users file")
	} else {
		hashed, err := pkgauth.HashPassword(adminPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
		users[adminUsername] = hashed
	}

	if len(users) == 0 {
		return nil, errors.New("no users configured: set GUARD_USERS_FILE or ADMIN_USERNAME/ADMIN_PASSWORD")
	}

	logger.Info("users loaded", slog.Int("count", len(users)))
	return users, nil
}
