package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/clearsight/adscope/internal/divergence"
	"github.com/clearsight/adscope/internal/suspicion"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Crawler  CrawlerConfig  `yaml:"crawler"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Worker   WorkerConfig   `yaml:"worker"`
	Alerting AlertingConfig `yaml:"alerting"`
	Archive  ArchiveConfig  `yaml:"archive"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds the optional Redis settings. An empty Addr disables the
// cache, the alert-dedup fast path, and Redis-backed run locking.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CrawlerConfig points at the snapshot crawler collaborator.
type CrawlerConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Timeout returns the per-fetch timeout as a duration.
func (c CrawlerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ScoringConfig is the configuration surface for the suspicion scorer and
// the divergence normalization policy.
type ScoringConfig struct {
	Weights       suspicion.Weights          `yaml:"weights"`
	Normalization divergence.NormalizeConfig `yaml:"normalization"`
}

// WorkerConfig bounds the scheduled batch runs.
type WorkerConfig struct {
	Concurrency      int `yaml:"concurrency"`
	RunBudgetMinutes int `yaml:"run_budget_minutes"`
	AdTimeoutSeconds int `yaml:"ad_timeout_seconds"`
}

// RunBudget is the hard wall-clock budget for one scheduled run.
func (c WorkerConfig) RunBudget() time.Duration {
	return time.Duration(c.RunBudgetMinutes) * time.Minute
}

// AdTimeout bounds the I/O for a single ad's check.
func (c WorkerConfig) AdTimeout() time.Duration {
	return time.Duration(c.AdTimeoutSeconds) * time.Second
}

// AlertingConfig holds alert emission settings.
type AlertingConfig struct {
	TenantID         string `yaml:"tenant_id"`
	DedupWindowHours int    `yaml:"dedup_window_hours"`
}

// DedupWindow is the rolling idempotence window for (ad, type) pairs.
func (c AlertingConfig) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowHours) * time.Hour
}

// ArchiveConfig holds the S3 snapshot-body archive settings. An empty
// bucket disables archiving; hashes and previews still land in Postgres.
type ArchiveConfig struct {
	S3Bucket   string `yaml:"s3_bucket"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // empty uses the default credential chain (IAM role)
}

// GetAWSProfile returns the AWS profile, with environment override. On
// ECS/Lambda the profile is dropped so the task role is used instead.
func (c ArchiveConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 5
	}
	if cfg.Crawler.TimeoutSeconds == 0 {
		cfg.Crawler.TimeoutSeconds = 30
	}
	if cfg.Crawler.MaxRetries == 0 {
		cfg.Crawler.MaxRetries = 3
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 8
	}
	if cfg.Worker.RunBudgetMinutes == 0 {
		cfg.Worker.RunBudgetMinutes = 30
	}
	if cfg.Worker.AdTimeoutSeconds == 0 {
		cfg.Worker.AdTimeoutSeconds = 45
	}
	if cfg.Alerting.DedupWindowHours == 0 {
		cfg.Alerting.DedupWindowHours = 24
	}
	if cfg.Alerting.TenantID == "" {
		cfg.Alerting.TenantID = "default"
	}
	zero := divergence.NormalizeConfig{}
	if cfg.Scoring.Normalization == zero {
		cfg.Scoring.Normalization = divergence.DefaultNormalize
	}
}

func (c *Config) validate() error {
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1")
	}
	if c.Alerting.DedupWindowHours < 1 {
		return fmt.Errorf("config: alerting.dedup_window_hours must be >= 1")
	}
	return nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if base := os.Getenv("CRAWLER_BASE_URL"); base != "" {
		cfg.Crawler.BaseURL = base
	}
	if key := os.Getenv("CRAWLER_API_KEY"); key != "" {
		cfg.Crawler.APIKey = key
	}
	if bucket := os.Getenv("ARCHIVE_S3_BUCKET"); bucket != "" {
		cfg.Archive.S3Bucket = bucket
	}
	if region := os.Getenv("ARCHIVE_S3_REGION"); region != "" {
		cfg.Archive.AWSRegion = region
	}
	if tenant := os.Getenv("ALERT_TENANT_ID"); tenant != "" {
		cfg.Alerting.TenantID = tenant
	}

	return cfg, nil
}
