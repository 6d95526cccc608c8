package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/clearsight/adscope/internal/alerting"
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

// One scheduled run per invocation; cron or an ECS scheduled task owns the
// cadence. The distributed lock keeps overlapping invocations from racing.
func main() {
	task := flag.String("task", string(worker.TaskDivergenceTest), "divergence_test or status_check")
	schedule := flag.String("schedule", string(worker.ScheduleDaily), "daily or intraday")
	flag.Parse()

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Error("config load failed", "error", err.Error())
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("database open failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("database ping failed", "error", err.Error())
		os.Exit(1)
	}

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
	if cfg.Archive.S3Bucket != "" {
		archive, err := snapshots.NewArchive(context.Background(),
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

	result, err := runner.Run(context.Background(), worker.RunRequest{
		TaskType:     worker.TaskType(*task),
		ScheduleType: worker.ScheduleType(*schedule),
	})
	if err != nil {
		logger.Error("run failed", "error", err.Error())
		os.Exit(1)
	}

	out, _ := json.Marshal(result)
	os.Stdout.Write(append(out, '\n'))
	if !result.Success {
		os.Exit(2)
	}
}
