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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/iho/chequer/internal/adapter/http"
	"github.com/iho/chequer/internal/adapter/http/handler"
	"github.com/iho/chequer/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/chequer/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/chequer/internal/adapter/repository/redis"
	"github.com/iho/chequer/internal/infrastructure/auth"
	"github.com/iho/chequer/internal/infrastructure/config"
	"github.com/iho/chequer/internal/infrastructure/logger"
	"github.com/iho/chequer/internal/infrastructure/metrics"
	"github.com/iho/chequer/internal/infrastructure/postgres"
	"github.com/iho/chequer/internal/infrastructure/redis"
	"github.com/iho/chequer/internal/infrastructure/tracing"
	"github.com/iho/chequer/internal/infrastructure/vision"
	"github.com/iho/chequer/internal/queue"
	"github.com/iho/chequer/internal/usecase"
	"github.com/iho/chequer/internal/worker"
)

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = appLogger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}

	appLogger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.OTELServiceName,
		Insecure:    true,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL:    cfg.DatabaseURL,
		MaxConns:       cfg.DatabaseMaxConns,
		MinConns:       cfg.DatabaseMinConns,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to postgres")

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()
		logger.Info().Msg("connected to redis")
	} else {
		logger.Warn().Msg("REDIS_URL not set: idempotency, embedding cache and worker locks disabled")
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	baseExtractor, err := newExtractor(ctx, cfg, blobs)
	if err != nil {
		return err
	}
	extractor := newBreaker(baseExtractor, cfg, m, logger)

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	var (
		cache            usecase.Cache
		idempotencyStore usecase.IdempotencyStore
		workerOpts       = []worker.Option{worker.WithMetrics(m), worker.WithLogger(logger)}
	)
	if redisClient != nil {
		cache = redisRepo.NewCache(redisClient)
		idempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
		workerOpts = append(workerOpts, worker.WithLocker(redisRepo.NewLocker(redisClient, cfg.WorkerLockTTL)))
	}
	verifier := vision.NewVerifier(blobs, embedder, cache, cfg.EmbeddingCacheTTL, logger)

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	clearanceRepo := postgresRepo.NewClearanceRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	retrier := postgresRepo.NewRetrier(logger)
	idGen := postgresRepo.NewULIDGenerator()

	// Use cases
	intake := queue.New()
	accountUC := usecase.NewAccountUseCase(txManager, accountRepo, outboxRepo, blobs, idGen).WithMetrics(m)
	clearanceUC := usecase.NewClearanceUseCase(txManager, clearanceRepo, outboxRepo, blobs, intake, idGen).WithMetrics(m)
	ledgerUC := usecase.NewLedgerUseCase(txManager, accountRepo, retrier)
	resolver := usecase.NewResolver(txManager, accountRepo, clearanceRepo, outboxRepo, ledgerUC, verifier, idGen, cfg.SignatureThreshold)

	clearanceWorker := worker.New(worker.Config{
		IdleWait:       cfg.WorkerIdleWait,
		MaxAttempts:    cfg.WorkerMaxAttempts,
		InitialBackoff: cfg.WorkerInitialBackoff,
		MaxBackoff:     cfg.WorkerMaxBackoff,
	}, intake, clearanceRepo, extractor, resolver, blobs, workerOpts...)

	publisher, closePublisher := newEventPublisher(cfg, outboxRepo, m, logger)
	defer func() {
		if err := closePublisher(); err != nil {
			logger.Warn().Err(err).Msg("failed to close event sink")
		}
	}()

	// HTTP
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)

	var redisPinger handler.Pinger
	if redisClient != nil {
		redisPinger = handler.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	routerCfg := httpAdapter.RouterConfig{
		AccountHandler:   handler.NewAccountHandler(accountUC, cfg.MaxUploadBytes),
		ClearanceHandler: handler.NewClearanceHandler(clearanceUC, cfg.MaxUploadBytes),
		TransferHandler:  handler.NewTransferHandler(ledgerUC),
		HealthHandler:    handler.NewHealthHandler(pool, redisPinger),
		Logger:           logger,
		Metrics:          m,
		Gatherer:         reg,
		RateLimiter:      rateLimiter,
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
	}
	if cfg.AuthEnabled {
		routerCfg.TokenVerifier = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := clearanceWorker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("clearance worker: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := publisher.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("event publisher: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := rateLimiter.CleanupLimiters(10 * time.Minute); n > 0 {
					logger.Debug().Int("removed", n).Msg("cleaned up idle rate limiters")
				}
			}
		}
	})

	g.Go(func() error {
		logger.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
