package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/prospector/internal/auth"
	"github.com/BradenHooton/prospector/internal/background"
	"github.com/BradenHooton/prospector/internal/config"
	"github.com/BradenHooton/prospector/internal/database"
	"github.com/BradenHooton/prospector/internal/handlers"
	"github.com/BradenHooton/prospector/internal/llm"
	middlewareCustom "github.com/BradenHooton/prospector/internal/middleware"
	"github.com/BradenHooton/prospector/internal/provider"
	"github.com/BradenHooton/prospector/internal/repositories"
	"github.com/BradenHooton/prospector/internal/routes"
	"github.com/BradenHooton/prospector/internal/scraper"
	"github.com/BradenHooton/prospector/internal/services"
	pkghttp "github.com/BradenHooton/prospector/pkg/http"
	pkglogger "github.com/BradenHooton/prospector/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// quotaStore is what both the ledger and the janitor need from a quota backend
type quotaStore interface {
	services.QuotaRepository
	background.QuotaPurger
}

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	level.Set(parseLevel(cfg.Server.LogLevel))

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("quota_store", cfg.Quota.Store),
		slog.Bool("provider_enabled", cfg.Provider.Enabled))

	ctx := context.Background()

	// Quota storage
	var (
		db     *database.DB
		quotas quotaStore
	)
	if cfg.Quota.Store == "memory" {
		quotas = repositories.NewMemoryQuotaRepository()
	} else {
		db, err = database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				logger.Error("failed to run migrations", slog.Any("error", err))
				os.Exit(1)
			}
		}
		quotas = repositories.NewQuotaRepository(db)
	}

	// Rate windows: Redis when configured so limits hold across replicas
	var (
		windowStore services.WindowStore
		pruner      background.WindowPruner
		rdb         *redis.Client
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Error("invalid REDIS_URL", slog.Any("error", err))
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		windowStore = repositories.NewRedisWindowStore(rdb)
	} else {
		memoryWindows := repositories.NewMemoryWindowStore()
		windowStore = memoryWindows
		pruner = memoryWindows
	}

	auditLogger := pkglogger.NewAuditLogger(logger)
	ledger := services.NewQuotaLedger(quotas, cfg.Quota.Limits, logger, services.WithAuditLogger(auditLogger))

	apiLimiter := services.NewRateLimiter(windowStore, services.APIRateLimit(cfg.RateLimit.APIPerMinute), logger)
	generationLimiter := services.NewRateLimiter(windowStore, services.GenerationRateLimit(cfg.RateLimit.GenerationPerMinute), logger)

	// Paid provider
	var prospects services.ProspectFinder
	if cfg.Provider.Enabled {
		prospects = newOrchestrator(cfg, logger)
	}

	// Public website scanner
	finder := scraper.New(&http.Client{Timeout: cfg.Scraper.PageTimeout}, scraper.Config{
		UserAgent:    cfg.Scraper.UserAgent,
		PageTimeout:  cfg.Scraper.PageTimeout,
		PageBudget:   cfg.Scraper.PageBudget,
		PageInterval: cfg.Scraper.PageInterval,
		MaxBodyBytes: cfg.Scraper.MaxBodyBytes,
	}, logger)

	// Quota-exhausted notices
	var notifier services.QuotaNotifier
	if cfg.Email.Enabled {
		emailService, err := services.NewAWSSESEmailService(ctx, cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.UpgradeURL, logger)
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = emailService
	}

	// Outreach generation
	var generator services.Generator
	if gen, err := llm.NewGenerator(cfg.LLM); err != nil {
		if !errors.Is(err, llm.ErrNotConfigured) {
			logger.Error("failed to initialize llm", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Warn("outreach generation disabled", slog.Any("reason", err))
	} else {
		generator = gen
	}

	// Initialize services
	searchService := services.NewSearchService(ledger, prospects, finder, notifier, services.SearchServiceConfig{
		ProviderEnabled: cfg.Provider.Enabled,
		MaxPerCall:      cfg.Search.MaxPerCall,
		Deadline:        cfg.Search.Deadline,
	}, logger)
	outreachService := services.NewOutreachService(ledger, generator, generationLimiter, logger)

	// Initialize handlers
	searchHandler := handlers.NewSearchHandler(searchService, logger)
	outreachHandler := handlers.NewOutreachHandler(outreachService, logger)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	trusted := pkghttp.ParseTrustedProxies(cfg.Server.TrustedProxies)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(cfg.Server.Env))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.CORSOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, trusted))
	router.Use(middleware.Recoverer)

	routes.RegisterRoutes(router, routes.Deps{
		SearchHandler:   searchHandler,
		OutreachHandler: outreachHandler,
		TokenManager:    tokenManager,
		IPLimit: middlewareCustom.IPRateLimitConfig{
			RequestsPerMinute: cfg.RateLimit.IPPerMinute,
			TrustedProxies:    trusted,
		},
		APILimiter: apiLimiter,
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "healthy"}
		healthy := true
		if db != nil {
			status["database"] = "up"
			if err := db.HealthCheck(ctx); err != nil {
				status["database"] = "down"
				healthy = false
			}
		}
		if rdb != nil {
			status["redis"] = "up"
			if err := rdb.Ping(ctx).Err(); err != nil {
				status["redis"] = "down"
				healthy = false
			}
		}

		if !healthy {
			status["status"] = "unhealthy"
			pkghttp.WriteSuccess(w, http.StatusServiceUnavailable, status)
			return
		}
		pkghttp.WriteSuccess(w, http.StatusOK, status)
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(pruner, quotas, background.CleanupConfig{
		Interval:        cfg.Server.CleanupInterval,
		RetentionMonths: cfg.Quota.RetentionMonths,
	}, logger)

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

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// newOrchestrator wires the provider client, credential manager and task
// orchestrator from configuration
func newOrchestrator(cfg *config.Config, logger *slog.Logger) *provider.TaskOrchestrator {
	httpClient := &http.Client{Timeout: cfg.Provider.RequestTimeout}

	tokens := provider.NewTokenManager(provider.TokenConfig{
		APIKey:       cfg.Provider.APIKey,
		ClientID:     cfg.Provider.ClientID,
		ClientSecret: cfg.Provider.ClientSecret,
		Strategies:   provider.StrategiesFor(cfg.Provider.TokenURLs),
	}, httpClient, logger)

	client := provider.NewClient(cfg.Provider.BaseURL, httpClient, tokens, cfg.Provider.UserAgent, logger)
	resolver := provider.NewDomainResolver(client, provider.DomainResolvePolicy, nil, logger)

	orchestratorConfig := provider.DefaultOrchestratorConfig()
	orchestratorConfig.EmailPreference = cfg.Provider.EmailPreference
	orchestratorConfig.EnrichConcurrency = cfg.Search.EnrichConcurrency
	orchestratorConfig.MaxCandidateDomains = cfg.Search.MaxCandidateDomains

	return provider.NewTaskOrchestrator(client, resolver, orchestratorConfig, logger)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
