package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wbuist/mgu-api-integration/internal/config"
	"github.com/wbuist/mgu-api-integration/internal/event"
	handler "github.com/wbuist/mgu-api-integration/internal/handler/http"
	"github.com/wbuist/mgu-api-integration/internal/mgu"
	auditpg "github.com/wbuist/mgu-api-integration/internal/repository/postgres"
	"github.com/wbuist/mgu-api-integration/internal/repository/postgres/migrations"
	redisstore "github.com/wbuist/mgu-api-integration/internal/repository/redis"
	"github.com/wbuist/mgu-api-integration/internal/service"
	"github.com/wbuist/mgu-api-integration/pkg/database"
	"github.com/wbuist/mgu-api-integration/pkg/health"
	"github.com/wbuist/mgu-api-integration/pkg/httpclient"
	pkgkafka "github.com/wbuist/mgu-api-integration/pkg/kafka"
	"github.com/wbuist/mgu-api-integration/pkg/middleware"
	"github.com/wbuist/mgu-api-integration/pkg/tracing"
)

// App wires together all dependencies and runs the quote flow service.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	pool            *pgxpool.Pool
	redisClient     *redis.Client
	producer        *pkgkafka.Producer
	httpServer      *http.Server
	tracingShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Tracing (no-op unless enabled).
	tracingShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:  "quoteflow",
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		SampleRate:   cfg.OTELSampleRate,
		Enabled:      cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// PostgreSQL connection pool for the workflow audit trail.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RunMigrations(ctx, pool, migrations.Files, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	// Redis for the token cache, pending payments, and sessions.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr()))

	// Kafka producer for workflow events.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Outbound MGU gateway: pooled client, circuit breaker, OAuth tokens.
	endpoints := cfg.MGUEndpoints()
	baseClient := httpclient.New(httpclient.Config{
		Timeout:         time.Duration(cfg.MGUTimeoutSeconds) * time.Second,
		MaxConnsPerHost: cfg.MGUMaxConnsPerHost,
	})
	breaker := httpclient.NewCircuitBreakerClient(baseClient, httpclient.CircuitBreakerConfig{
		Name:         "mgu",
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}, logger)

	tokenCache := redisstore.NewTokenCache(redisClient)
	tokens := mgu.NewTokenManager(breaker, endpoints.AuthURL, cfg.MGUClientID, cfg.MGUClientSecret, tokenCache, logger)
	gateway := mgu.NewClient(breaker, tokens, endpoints.APIBaseURL, logger)
	logger.Info("MGU gateway configured",
		slog.String("environment", cfg.MGUEnvironment),
		slog.String("api_base_url", endpoints.APIBaseURL),
	)

	// Repositories and event producer.
	payments := redisstore.NewPendingPaymentRepository(redisClient, time.Duration(cfg.PendingPaymentTTL)*time.Second)
	sessions := redisstore.NewSessionRepository(redisClient, time.Duration(cfg.SessionTTL)*time.Second)
	audit := auditpg.NewAuditRepository(pool)
	eventProducer := event.NewProducer(producer, logger)

	flowService := service.NewFlowService(gateway, payments, audit, eventProducer, logger)

	// Health checks. Kafka is non-critical: the quote flow still works when
	// the broker is down, events are just lost.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	router := handler.NewRouter(flowService, sessions, healthHandler, logger, handler.RouterConfig{
		CORS:       corsCfg,
		PprofCIDRs: cfg.PprofAllowedCIDRs,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		pool:            pool,
		redisClient:     redisClient,
		producer:        producer,
		httpServer:      httpServer,
		tracingShutdown: tracingShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	a.pool.Close()

	if err := a.tracingShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
