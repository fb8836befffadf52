package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/BradenHooton/chefguard/internal/auth"
	"github.com/BradenHooton/chefguard/internal/authprovider"
	"github.com/BradenHooton/chefguard/internal/background"
	"github.com/BradenHooton/chefguard/internal/config"
	"github.com/BradenHooton/chefguard/internal/database"
	"github.com/BradenHooton/chefguard/internal/handlers"
	"github.com/BradenHooton/chefguard/internal/metrics"
	middlewareCustom "github.com/BradenHooton/chefguard/internal/middleware"
	"github.com/BradenHooton/chefguard/internal/models"
	"github.com/BradenHooton/chefguard/internal/repositories"
	"github.com/BradenHooton/chefguard/internal/routes"
	"github.com/BradenHooton/chefguard/internal/services"
	"github.com/BradenHooton/chefguard/internal/throttle"
	pkghttp "github.com/BradenHooton/chefguard/pkg/http"
	pkglogger "github.com/BradenHooton/chefguard/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("throttle_backend", cfg.Throttle.Backend),
	)

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.Migrate(ctx, cfg.Database.DSN(), logger)
		cancel()
		if err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	attemptRepo := repositories.NewAttemptRepository(db)

	m := metrics.New()
	securityLogger := pkglogger.NewSecurityLogger(logger)

	// Throttle state: in-process by default, shared through Redis when scaled out
	var (
		store       throttle.Store
		memoryStore *throttle.MemoryStore
		redisClient *redis.Client
	)
	switch cfg.Throttle.Backend {
	case "redis":
		opts, err := redis.ParseURL(cfg.Throttle.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", slog.Any("error", err))
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		redisStore := throttle.NewRedisStore(redisClient, "chefguard:")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = redisStore.Ping(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		store = redisStore
	default:
		memoryStore = throttle.NewMemoryStore()
		store = memoryStore
	}

	// Email delivery is optional; endpoints that need it report it as not configured
	var emailService services.EmailService
	if cfg.Email.Configured() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		sesService, err := services.NewAWSSESEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, m, logger)
		cancel()
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		emailService = sesService
	} else {
		logger.Warn("email provider is not configured")
	}

	var linkGenerator services.RecoveryLinkGenerator
	if cfg.AuthProvider.Configured() {
		linkGenerator = authprovider.NewClient(authprovider.Config{
			URL:        cfg.AuthProvider.URL,
			ServiceKey: cfg.AuthProvider.ServiceKey,
			Timeout:    cfg.AuthProvider.RequestTimeout,
		}, m, logger)
	} else {
		logger.Warn("auth provider is not configured, password reset is disabled")
	}

	// Initialize services
	lockoutService := services.NewLockoutNotificationService(emailService, logger)
	dispatcher := background.NewLockoutDispatcher(lockoutService, cfg.Background.NotificationBufferSize, m, logger)

	policies := models.DefaultRateLimitPolicies()
	rateLimitService := services.NewRateLimitService(attemptRepo, policies, logger, &services.RateLimitOptions{
		Publisher:      dispatcher,
		NoticeStore:    store,
		Metrics:        m,
		SecurityLogger: securityLogger,
	})

	passwordResetService := services.NewPasswordResetService(
		linkGenerator,
		emailService,
		services.PasswordResetConfig{
			AllowedRedirectHosts: cfg.Reset.AllowedRedirectHosts,
			Timing: auth.NewTimingDelay(auth.TimingConfig{
				Floor:  cfg.Reset.MinResponseTime,
				Jitter: cfg.Reset.MinResponseTime / 4,
			}),
		},
		securityLogger,
		logger,
	)

	// Initialize cleanup manager
	var sweepers []background.Sweeper
	if memoryStore != nil {
		sweepers = append(sweepers, memoryStore)
	}
	cleanupManager := background.NewCleanupManager(attemptRepo, policies.MaxWindow(), cfg.Background.CleanupInterval, m, logger, sweepers...)

	var tokenVerifier *auth.FunctionTokenVerifier
	if cfg.AuthProvider.JWTSecret != "" {
		tokenVerifier = auth.NewFunctionTokenVerifier(cfg.AuthProvider.JWTSecret)
	}

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	newThrottle := func(scope string, limit config.EndpointLimit) *throttle.Throttle {
		return throttle.New(scope, store, throttle.Config{
			MaxRequests: limit.MaxRequests,
			Window:      limit.Window,
		}, logger, nil)
	}

	// Setup router. chi's RealIP is not used: client IPs are only taken from
	// forwarding headers set by TRUSTED_PROXIES.
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig()))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middlewareCustom.GlobalRateLimit(middlewareCustom.RateLimitConfig{
		RequestsPerMinute: cfg.Server.GlobalRequestsPerMinute,
	}, ipConfig))

	// Register routes
	routes.RegisterRoutes(router,
		routes.Handlers{
			RateLimit:     handlers.NewRateLimitHandler(rateLimitService),
			Lockout:       handlers.NewLockoutHandler(lockoutService),
			PasswordReset: handlers.NewPasswordResetHandler(passwordResetService),
		},
		routes.Throttles{
			RateLimit:     newThrottle(routes.ScopeCheckRateLimit, cfg.Throttle.RateLimitCheck),
			Lockout:       newThrottle(routes.ScopeLockout, cfg.Throttle.LockoutNotifier),
			PasswordReset: newThrottle(routes.ScopePasswordReset, cfg.Throttle.PasswordReset),
		},
		routes.Dependencies{
			IPConfig:       ipConfig,
			TokenVerifier:  tokenVerifier,
			Metrics:        m,
			SecurityLogger: securityLogger,
			Logger:         logger,
		},
	)

	router.Get("/health", handlers.Health(db))
	router.Handle("/metrics", m.Handler())

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

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
	}

	cleanupCancel()
	cleanupManager.Stop()

	// Flush queued emails before the process exits
	passwordResetService.Wait()
	dispatcher.Close()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("failed to close redis client", slog.Any("error", err))
		}
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
