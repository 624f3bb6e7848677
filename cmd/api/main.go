package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/tidewatch/accesscore/internal/background"
	"github.com/tidewatch/accesscore/internal/config"
	"github.com/tidewatch/accesscore/internal/database"
	"github.com/tidewatch/accesscore/internal/handlers"
	middlewareCustom "github.com/tidewatch/accesscore/internal/middleware"
	"github.com/tidewatch/accesscore/internal/repositories"
	"github.com/tidewatch/accesscore/internal/routes"
	"github.com/tidewatch/accesscore/internal/services"
	"github.com/tidewatch/accesscore/internal/store"
	pkghttp "github.com/tidewatch/accesscore/pkg/http"
	pkglogger "github.com/tidewatch/accesscore/pkg/logger"
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

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.Bool("postgres", cfg.UsePostgres()),
		slog.Bool("redis", cfg.UseRedis()))

	// Persistence selection is explicit here; nothing below this block
	// knows which backend it runs on.
	var db *database.DB
	var sessionRepo repositories.SessionRepository
	var mfaRepo repositories.MFAFailureRepository

	if cfg.UsePostgres() {
		db, err = database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		sessionRepo = repositories.NewPostgresSessionRepository(db)
		mfaRepo = repositories.NewPostgresMFAFailureRepository(db)
	} else {
		sessionRepo = repositories.NewMemorySessionRepository()
		mfaRepo = repositories.NewMemoryMFAFailureRepository()
	}

	var rateLimitStore store.RateLimitStore
	var memoryStore *store.MemoryStore

	if cfg.UseRedis() {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		redisStore, err := store.NewRedisStore(redisClient)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		rateLimitStore = redisStore

		// Redis also gives MFA failures a shared, self-expiring home
		mfaRepo = repositories.NewRedisMFAFailureRepository(redisClient, cfg.MFA.Window)
	} else {
		memoryStore = store.NewMemoryStore()
		rateLimitStore = memoryStore
	}

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Rate limiting service
	limiter, err := services.NewGlobalRateLimiter(rateLimitStore, services.RateLimiterConfig{
		Window:      cfg.RateLimit.Window,
		MaxRequests: cfg.RateLimit.MaxRequests,
	}, logger, services.WithViolationHandler(services.AuditViolationHandler(auditLogger)))
	if err != nil {
		logger.Error("failed to initialize rate limiter", slog.Any("error", err))
		os.Exit(1)
	}

	// Session manager
	sessionManager, err := services.NewSessionManager(sessionRepo, services.SessionManagerConfig{
		MaxConcurrentSessions: cfg.Session.MaxConcurrentSessions,
		SessionTimeout:        cfg.Session.Timeout,
	}, logger, auditLogger, cfg.Server.Env)
	if err != nil {
		logger.Error("failed to initialize session manager", slog.Any("error", err))
		os.Exit(1)
	}

	// MFA throttle
	mfaThrottle, err := services.NewMFAThrottle(mfaRepo, services.MFAThrottleConfig{
		Window:      cfg.MFA.Window,
		MaxFailures: cfg.MFA.MaxFailures,
	}, logger, auditLogger)
	if err != nil {
		logger.Error("failed to initialize MFA throttle", slog.Any("error", err))
		os.Exit(1)
	}

	// Background maintenance
	sweepTasks := []background.Task{
		background.TaskFunc{TaskName: "expired_sessions", Fn: func(ctx context.Context) (int64, error) {
			return sessionRepo.DeactivateExpired(ctx, time.Now())
		}},
		background.TaskFunc{TaskName: "stale_mfa_failures", Fn: func(ctx context.Context) (int64, error) {
			return mfaRepo.DeleteOlderThan(ctx, time.Now().Add(-cfg.MFA.Window))
		}},
	}
	if memoryStore != nil {
		// Redis counters expire on their own; memory needs the sweep
		sweepTasks = append(sweepTasks, background.TaskFunc{
			TaskName: "rate_limit_counters",
			Fn:       memoryStore.Sweep,
		})
	}
	sweeper := background.NewSweeper(logger, cfg.SweepInterval, sweepTasks...)

	// IP extraction config
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(sessionManager, ipConfig)
	mfaHandler := handlers.NewMFAHandler(mfaThrottle, ipConfig)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.Env)
	if len(cfg.Server.AllowedOrigins) > 0 {
		corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Health check; includes the database when one is configured
	healthCheck := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := db.HealthCheck(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}

	// Register routes
	routes.RegisterRoutes(router, sessionHandler, mfaHandler, limiter, ipConfig, healthCheck)

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start background maintenance
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go sweeper.Start(sweepCtx)

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

	sweepCancel()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
