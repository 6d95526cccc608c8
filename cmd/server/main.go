package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/clearsight/adscope/internal/alerting"
	"github.com/clearsight/adscope/internal/api"
	"github.com/clearsight/adscope/internal/cache"
	"github.com/clearsight/adscope/internal/config"
	"github.com/clearsight/adscope/internal/divergence"
	"github.com/clearsight/adscope/internal/pkg/distlock"
	"github.com/clearsight/adscope/internal/pkg/logger"
	"github.com/clearsight/adscope/internal/repository/postgres"
	"github.com/clearsight/adscope/internal/snapshots"
	"github.com/clearsight/adscope/internal/suspicion"
	"github.com/clearsight/adscope/internal/worker"
)

const runLockKey = "adscope:worker:run"

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Error("config load failed", "error", err.Error())
		os.Exit(1)
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		logger.Error("database connect failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	scoreCache := cache.New(redisClient, 5*time.Minute)
	defer scoreCache.Close()

	adRepo := postgres.NewAdRepo(db)
	alertRepo := postgres.NewAlertRepo(db)
	snapRepo := postgres.NewSnapshotRepo(db)
	rollupRepo := postgres.NewRollupRepo(db)

	var source snapshots.Source = snapshots.NewClient(
		cfg.Crawler.BaseURL, cfg.Crawler.APIKey, cfg.Crawler.Timeout(), cfg.Crawler.MaxRetries)

	var archive *snapshots.Archive
	if cfg.Archive.S3Bucket != "" {
		archive, err = snapshots.NewArchive(context.Background(),
			cfg.Archive.S3Bucket, cfg.Archive.AWSRegion, cfg.Archive.GetAWSProfile())
		if err != nil {
			logger.Error("snapshot archive init failed", "error", err.Error())
			os.Exit(1)
		}
		source = snapshots.NewArchivingSource(source, archive)
	}

	engine := divergence.NewEngine(source, cfg.Scoring.Normalization)
	scorer := suspicion.NewScorer(cfg.Scoring.Weights)
	alertSvc := alerting.NewService(alertRepo, redisClient, cfg.Alerting.DedupWindow())

	runner := worker.NewRunner(adRepo, rollupRepo, engine, scorer, worker.Options{
		TenantID:    cfg.Alerting.TenantID,
		Concurrency: cfg.Worker.Concurrency,
		RunBudget:   cfg.Worker.RunBudget(),
		AdTimeout:   cfg.Worker.AdTimeout(),
		Lock:        distlock.New(redisClient, db, runLockKey, cfg.Worker.RunBudget()),
		Cache:       scoreCache,
		Snapshots:   snapRepo,
		Alerts:      alertSvc,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Another instance's post-run publish drops our local dashboard cache.
	scoreCache.Subscribe(ctx, cache.TopicScores, func(string) {
		scoreCache.Invalidate(context.Background(), cache.KeyDashboardStats)
	})

	var bodyArchive api.BodyArchive
	if archive != nil {
		bodyArchive = archive
	}
	handlers := api.NewHandlers(adRepo, alertRepo, snapRepo, rollupRepo,
		engine, scorer, runner, scoreCache, bodyArchive)
	health := api.NewHealthChecker(db, redisClient)
	server := api.NewServer(cfg.Server, handlers, health)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "host", cfg.Server.Host, "port", cfg.Server.Port)
		errCh <- server.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info("shutting down", "signal", s.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err.Error())
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", "error", err.Error())
	}
}

func openDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
