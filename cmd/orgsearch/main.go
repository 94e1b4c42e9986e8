package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/dealsourcer/orgsearch/pkg/api"
	"github.com/dealsourcer/orgsearch/pkg/auth"
	"github.com/dealsourcer/orgsearch/pkg/config"
	"github.com/dealsourcer/orgsearch/pkg/middleware"
	"github.com/dealsourcer/orgsearch/pkg/observability"
	"github.com/dealsourcer/orgsearch/pkg/orgs"
	"github.com/dealsourcer/orgsearch/pkg/search"
	"github.com/dealsourcer/orgsearch/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting orgsearch API")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Config file changes adjust the log level without a restart.
	if path := os.Getenv("ORGSEARCH_CONFIG_FILE"); path != "" {
		err := config.WatchConfigFile(ctx, path, logger, func(updated *config.Config) {
			logger.SetLevel(updated.Observability.LogLevel)
		})
		if err != nil {
			logger.WithError(err).Warn("Config file watching disabled")
		}
	}

	// OpenTelemetry
	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize OpenTelemetry, continuing without tracing")
	}

	// Database
	connMgr, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: postgres.ParseReplicaURLs(cfg.Database.ReplicaURLs),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to connect to PostgreSQL")
		os.Exit(1)
	}
	defer connMgr.Close()
	connMgr.StartHealthCheckRoutine(ctx, 30*time.Second)

	if err := postgres.RunMigrations(ctx, connMgr.Primary()); err != nil {
		logger.WithError(err).Error("Failed to run migrations")
		os.Exit(1)
	}

	// Redis and cache (optional)
	var redisClient *postgres.RedisClient
	var cache *postgres.Cache
	var rateLimiter func(http.Handler) http.Handler

	if cfg.Redis.URL != "" {
		redisClient, err = postgres.NewRedisClient(postgres.RedisConfig{
			URL:        cfg.Redis.URL,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			MaxRetries: cfg.Redis.MaxRetries,
			PoolSize:   cfg.Redis.PoolSize,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to connect to Redis, continuing without it")
			redisClient = nil
		} else {
			defer redisClient.Close()
			rateLimiter = middleware.NewDistributedRateLimitMiddleware(redisClient.GetClient()).Handler
		}
	}
	if rateLimiter == nil {
		inMemoryLimiter := middleware.NewRateLimitMiddleware()
		inMemoryLimiter.StartCleanup(ctx)
		rateLimiter = inMemoryLimiter.Handler
	}

	if cfg.Cache.Enabled {
		cache, err = postgres.NewCache(cfg.Cache.LocalSize, redisClient)
		if err != nil {
			logger.WithError(err).Error("Failed to initialize cache, continuing without it")
			cache = nil
		}
	}

	// Metrics
	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	// Mailer: SMTP when configured, log-only otherwise
	authLogger := logrus.New()
	authLogger.SetFormatter(&logrus.JSONFormatter{})
	var mailer auth.Mailer
	if cfg.SMTP.Host != "" {
		mailer = auth.NewSMTPMailer(auth.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		logger.Warn("SMTP not configured, access codes will be logged")
		mailer = auth.NewLogMailer(authLogger)
	}

	// Services
	authService := auth.NewService(connMgr.Primary(), mailer, authLogger)
	orgStore := orgs.NewStore(connMgr.Primary(), connMgr.Replica(), cache)
	searchService := search.NewService(connMgr.Replica())

	if metrics != nil {
		authService.SetMetrics(metrics)
		searchService.SetMetrics(metrics)
		if cache != nil {
			cache.SetMetrics(metrics)
		}
		go publishGauges(ctx, metrics, connMgr, orgStore, authService)
	}

	server := api.NewServer(api.Dependencies{
		SearchService:  searchService,
		OrgStore:       orgStore,
		AuthService:    authService,
		Logger:         logger,
		AuthLogger:     authLogger,
		Metrics:        metrics,
		RateLimiter:    rateLimiter,
		TracingEnabled: cfg.Observability.OTelEnabled && providers != nil,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health/metrics server on its own port
	var healthRedis *redis.Client
	if redisClient != nil {
		healthRedis = redisClient.GetClient()
	}
	healthMux := api.NewHealthServer(observability.NewHealthChecker(connMgr.Primary(), healthRedis), registry)
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	go func() {
		logger.Infof("Health server listening on :%s", cfg.Server.HealthPort)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	go func() {
		logger.Infof("API server listening on :%s", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			cancel()
		}
	}()

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}

// publishGauges refreshes the pool and business gauges until ctx ends. The
// organization count comes from the cached stats aggregate.
func publishGauges(ctx context.Context, metrics *observability.Metrics, connMgr *postgres.ConnectionManager, orgStore *orgs.Store, authService *auth.Service) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.SetDBPoolStats(connMgr.Stats().Primary)
			if stats, err := orgStore.Stats(ctx); err == nil {
				metrics.SetOrganizationsTotal(stats.TotalOrganizations)
			}
			if n, err := authService.CountUsers(ctx); err == nil {
				metrics.SetUsersTotal(n)
			}
		case <-ctx.Done():
			return
		}
	}
}
