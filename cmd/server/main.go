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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/actuallystonmai/dineright-service/internal/cache"
	"github.com/actuallystonmai/dineright-service/internal/config"
	"github.com/actuallystonmai/dineright-service/internal/handler"
	"github.com/actuallystonmai/dineright-service/internal/logger"
	"github.com/actuallystonmai/dineright-service/internal/model"
	"github.com/actuallystonmai/dineright-service/internal/preference"
	"github.com/actuallystonmai/dineright-service/internal/repository"
	"github.com/actuallystonmai/dineright-service/internal/resolver"
	"github.com/actuallystonmai/dineright-service/internal/router"
	"github.com/actuallystonmai/dineright-service/internal/service"
	"github.com/actuallystonmai/dineright-service/seeds"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ------------ PostgreSQL ---------------
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBPoolSize)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := waitForDB(ctx, pool, log); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	log.Info("connected to PostgreSQL")

	// ------------ Run Migrations ---------------
	// for migrate-down using CLI command
	if len(os.Args) > 1 && os.Args[1] == "migrate-down" {
		if err := migrate(ctx, pool, "migrations/create_tables.down.sql"); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		log.Info("migrations dropped")
		return nil
	}

	if err := migrate(ctx, pool, "migrations/create_tables.up.sql"); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	log.Info("migrations applied")

	// ------------ Setup Seed Data ---------------
	if err := checkSeed(ctx, pool, log); err != nil {
		return fmt.Errorf("check seed: %w", err)
	}

	// ------------ Redis ---------------
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	recCache := cache.NewCache(rdb, cfg.CacheTTL)
	if err := recCache.Ping(ctx); err != nil {
		// Cache errors are tolerated per request; keep serving without it.
		log.Warn("redis unavailable, continuing without cache", zap.Error(err))
	}

	// ------------ Recommendation worker ---------------
	bridge := model.NewBridge(model.Config{
		InterpreterPath: cfg.Model.EnvPath,
		ScriptPath:      cfg.Model.InfFilePath,
		WorkDir:         cfg.Model.WorkDir,
		ResultLimit:     cfg.Model.ResultsLimit,
		ResultsKey:      cfg.Model.ResultsKey,
		Timeout:         cfg.Model.Timeout,
		WaitDelay:       cfg.Model.WaitDelay,
		MaxOutputBytes:  cfg.Model.MaxOutputBytes,
		Prewarm:         cfg.Model.Prewarm,
	}, log, model.WithMetricsCollector(model.NewPrometheusMetrics("dineright", prometheus.DefaultRegisterer)))
	defer func() { _ = bridge.Close() }()

	if cfg.Model.Prewarm {
		if err := bridge.Start(ctx); err != nil {
			log.Warn("initial recommendation worker spawn failed", zap.Error(err))
		}
	}

	// ------------ Service ---------------
	policy, err := resolver.ParseMissingPolicy(cfg.Resolver.MissingPolicy)
	if err != nil {
		return err
	}

	repo := repository.NewRepository(pool)
	svc := service.NewService(service.Dependencies{
		Users:       repo,
		Cache:       recCache,
		Aggregator:  preference.NewAggregator(repo, cfg.Model.ResultsLimit, log),
		Recommender: bridge,
		Resolver:    resolver.New(repo, policy, log),
	}, service.Options{
		BreakerFailureThreshold: cfg.Breaker.FailureThreshold,
		BreakerOpenTimeout:      cfg.Breaker.OpenTimeout,
		BatchConcurrency:        cfg.BatchConcurrency,
	}, log)

	// ---------------- Server --------------------
	h := handler.NewHandler(svc, bridge, log)
	// Requests queue behind the worker, so allow a full cycle plus slack.
	requestTimeout := cfg.Model.Timeout + 10*time.Second

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(h, log, promhttp.Handler(), requestTimeout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func waitForDB(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) error {
	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			return nil
		}
		log.Info("waiting for database", zap.Int("attempt", i+1), zap.Int("max_attempts", 30))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("database connection timeout after 30s")
}

func migrate(ctx context.Context, pool *pgxpool.Pool, path string) error {
	sql, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	return nil
}

func checkSeed(ctx context.Context, pool *pgxpool.Pool, log *zap.Logger) error {
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("check users count: %w", err)
	}
	if count > 0 {
		log.Info("database already seeded, skipping", zap.Int("users", count))
		return nil
	}
	return seeds.Setup(ctx, pool, log)
}
