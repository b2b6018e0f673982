package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/commissions/internal/adapter/http"
	"github.com/iho/commissions/internal/adapter/http/handler"
	"github.com/iho/commissions/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/commissions/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/commissions/internal/adapter/repository/redis"
	"github.com/iho/commissions/internal/aggregation"
	"github.com/iho/commissions/internal/allocation"
	"github.com/iho/commissions/internal/disputes"
	"github.com/iho/commissions/internal/infrastructure/config"
	"github.com/iho/commissions/internal/infrastructure/logger"
	"github.com/iho/commissions/internal/infrastructure/metrics"
	"github.com/iho/commissions/internal/infrastructure/postgres"
	"github.com/iho/commissions/internal/infrastructure/redis"
	"github.com/iho/commissions/internal/usecase"
)

const limiterIdleTimeout = 10 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "commissions"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	table, err := loadRuleTable(cfg.RuleTablePath)
	if err != nil {
		return err
	}
	threshold, err := cfg.ChangedRateThresholdCents()
	if err != nil {
		return err
	}

	if cfg.AutoMigrate {
		if err := postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, log).Up(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// Connect to PostgreSQL
	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	// Connect to Redis
	redisClient, err := redis.NewClient(ctx, redis.ClientConfig{URL: cfg.RedisURL})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	m := metrics.New(prometheus.DefaultRegisterer)

	// Initialize repositories
	txManager := postgresRepo.NewTxManager(pool)
	masterRepo := postgresRepo.NewMasterRecordRepository(pool)
	statementRepo := postgresRepo.NewStatementRepository(pool)
	matchRepo := postgresRepo.NewMatchRepository(pool)
	sellerRepo := postgresRepo.NewSellerStatementRepository(pool)
	disputeRepo := postgresRepo.NewDisputeRepository(pool)
	idGen := postgresRepo.NewULIDGenerator()
	retrier := postgresRepo.NewRetrier(log)

	cache := redisRepo.NewCache(redisClient)
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	locker := redisRepo.NewPeriodLocker(redisClient, cfg.PeriodLockTTL, cfg.PeriodLockWait)

	writer := usecase.NewChunkWriter(cfg.WriteBatchSize, cfg.WriteBatchPacing, retrier, m)
	allocator := allocation.New(table)
	aggregator := aggregation.New(aggregation.DefaultRoleGroups())

	// Initialize use cases
	registryUC := usecase.NewRegistryUseCase(masterRepo, writer, table, log.With().Str("component", "registry").Logger())
	reconciliationUC := usecase.NewReconciliationUseCase(usecase.ReconciliationDeps{
		TxManager:             txManager,
		MasterRepo:            masterRepo,
		StatementRepo:         statementRepo,
		MatchRepo:             matchRepo,
		SellerRepo:            sellerRepo,
		Locker:                locker,
		Idempotency:           idempotencyStore,
		Cache:                 cache,
		IDGen:                 idGen,
		Writer:                writer,
		Allocator:             allocator,
		Aggregator:            aggregator,
		Logger:                log.With().Str("component", "reconciliation").Logger(),
		Metrics:               m,
		IdempotencyTTL:        cfg.IdempotencyTTL,
		RegenerateConcurrency: cfg.RegenerateConcurrency,
	})
	sellerUC := usecase.NewSellerStatementUseCase(sellerRepo, aggregator, cache, cfg.SellerStatementCacheTTL,
		log.With().Str("component", "seller_statements").Logger())
	disputeUC := usecase.NewDisputeUseCase(masterRepo, matchRepo, disputeRepo, disputes.NewDetector(disputes.WithThreshold(threshold)),
		idGen, writer, log.With().Str("component", "disputes").Logger(), m)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(pool, handler.PingerFunc(func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}))

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
	go cleanupLimiters(ctx, rateLimiter)

	// Create router
	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		RegistryHandler:        handler.NewRegistryHandler(registryUC),
		StatementHandler:       handler.NewStatementHandler(reconciliationUC),
		SellerStatementHandler: handler.NewSellerStatementHandler(sellerUC),
		DisputeHandler:         handler.NewDisputeHandler(disputeUC),
		HealthHandler:          healthHandler,
		IdempotencyStore:       idempotencyStore,
		IdempotencyTTL:         cfg.IdempotencyTTL,
		RateLimiter:            rateLimiter,
		MetricsHandler:         promhttp.Handler(),
		Logger:                 log,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// loadRuleTable reads the allocation rule table from path, or returns the built-in table when path is empty.
func loadRuleTable(path string) (*allocation.RuleTable, error) {
	if path == "" {
		return allocation.DefaultRuleTable(), nil
	}
	table, err := allocation.LoadRuleTable(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule table %s: %w", path, err)
	}
	return table, nil
}

func cleanupLimiters(ctx context.Context, rl *middleware.RateLimiter) {
	ticker := time.NewTicker(limiterIdleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.CleanupLimiters(limiterIdleTimeout)
		}
	}
}
