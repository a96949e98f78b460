package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/jashezan/HomifyHub/internal/auth"
	"github.com/jashezan/HomifyHub/internal/config"
	"github.com/jashezan/HomifyHub/internal/event"
	handler "github.com/jashezan/HomifyHub/internal/handler/http"
	"github.com/jashezan/HomifyHub/internal/migrations"
	"github.com/jashezan/HomifyHub/internal/repository/postgres"
	redisrepo "github.com/jashezan/HomifyHub/internal/repository/redis"
	"github.com/jashezan/HomifyHub/internal/service"
	"github.com/jashezan/HomifyHub/pkg/database"
	"github.com/jashezan/HomifyHub/pkg/health"
	pkgkafka "github.com/jashezan/HomifyHub/pkg/kafka"
	"github.com/jashezan/HomifyHub/pkg/middleware"
	"github.com/jashezan/HomifyHub/pkg/tracing"
)

// App wires together all dependencies and runs the storefront server.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	rdb            *redis.Client
	pool           *pgxpool.Pool
	producer       *pkgkafka.Producer
	limiter        *middleware.RateLimiter
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.Setup(ctx, cfg.Tracing(handler.ServiceName))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	database.LogSlowQueries(200*time.Millisecond, logger)

	// Initialize Redis client.
	rdb, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), logger)
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if cfg.AutoMigrate {
		if _, err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			pool.Close()
			rdb.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, handler.ServiceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Initialize Kafka producer. Without brokers events are dropped.
	var producer *pkgkafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = pkgkafka.NewProducer(cfg.KafkaBrokers, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		logger.Warn("KAFKA_BROKERS not set, storefront events are disabled")
	}

	// Build the dependency graph.
	cartTTL := cfg.CartTTLDuration()
	products := postgres.NewProductRepository(pool)
	bundles := postgres.NewBundleRepository(pool)
	eventProducer := event.NewProducer(producer, logger)
	services := handler.Services{
		Catalog:  service.NewCatalogService(products, bundles),
		Cart:     service.NewCartService(redisrepo.NewCartRepository(rdb, cartTTL), products, bundles, eventProducer, logger, cartTTL),
		Wishlist: service.NewWishlistService(postgres.NewWishlistRepository(pool), products, eventProducer, logger),
	}
	jwt := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenExpiry)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if producer != nil {
		healthHandler.RegisterNonCritical("kafka", producer.Ping)
	}

	// HTTP router.
	router := handler.NewRouter(services, healthHandler, logger, handler.RouterConfig{
		ValidateToken: jwt.Validator(),
		Session: middleware.SessionConfig{
			MaxAge: cfg.SessionMaxAge,
			Secure: cfg.SecureCookies,
		},
		RateLimiter:    limiter,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		StaticMaxAge:   cfg.StaticMaxAge,
		ProductsOnPage: cfg.ProductsOnPage,
		BundlesOnPage:  cfg.BundlesOnPage,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		rdb:            rdb,
		pool:           pool,
		producer:       producer,
		limiter:        limiter,
		tracerShutdown: tracerShutdown,
		httpServer:     httpServer,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
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

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	a.limiter.Close()

	// Close Kafka producer.
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	// Close Redis client.
	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
	}

	// Close PostgreSQL pool.
	a.pool.Close()

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
