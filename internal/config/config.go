// Package config loads and validates the runtime configuration at startup.
// Fail-fast: a missing required variable or an invalid value is an error.
//
// Connection settings come from the environment. Pipeline tuning comes from
// built-in defaults, optionally overlaid by the YAML file named in ETL_CONFIG.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"jobmate/etl-service/internal/secrets"
)

// Config holds all runtime configuration for the etl service.
type Config struct {
	Port          string
	GRPCPort      string
	DatabaseURL   string
	RedisURL      string // empty disables the page cache and events
	AdzunaAppID   string
	AdzunaAppKey  string
	AdzunaCountry string // e.g. "us", "gb", "fr"
	Schedule      string // cron spec, e.g. "@daily"
	RunOnStart    bool
	ConfigPath    string
	LockFile      string
	LogLevel      string
	Pipeline      Pipeline

	// Warnings are non-fatal findings from Validate, for the caller to log.
	Warnings []string
}

// Pipeline is the YAML-tunable part of the configuration.
type Pipeline struct {
	Roles                 []string `yaml:"roles"`
	Where                 string   `yaml:"where"`
	MaxDaysOld            int      `yaml:"max_days_old"`
	MaxPages              int      `yaml:"max_pages"`
	MaxRetries            int      `yaml:"max_retries"`
	RetryDelaySeconds     int      `yaml:"retry_delay_seconds"`
	RatePerSec            float64  `yaml:"rate_per_sec"`
	CacheTTLMinutes       int      `yaml:"cache_ttl_minutes"`
	BatchSize             int      `yaml:"batch_size"`
	Concurrency           int      `yaml:"concurrency"`
	TaskRetries           int      `yaml:"task_retries"`
	TaskRetryDelaySeconds int      `yaml:"task_retry_delay_seconds"`
	ExcludeTerms          []string `yaml:"exclude_terms"`
	Skills                []string `yaml:"skills"`
}

// RetryDelay is the wait between API attempts.
func (p Pipeline) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelaySeconds) * time.Second
}

// TaskRetryDelay is the wait between task attempts.
func (p Pipeline) TaskRetryDelay() time.Duration {
	return time.Duration(p.TaskRetryDelaySeconds) * time.Second
}

// CacheTTL is how long a fetched page stays in Redis.
func (p Pipeline) CacheTTL() time.Duration {
	return time.Duration(p.CacheTTLMinutes) * time.Minute
}

// DefaultPipeline mirrors the daily ingestion job: three roles in the US,
// one page of 50 results each, 3 API retries 30s apart, 3 task retries 5m apart.
func DefaultPipeline() Pipeline {
	return Pipeline{
		Roles:                 []string{"Software Engineer", "Data Scientist", "Web Developer"},
		Where:                 "us",
		MaxDaysOld:            30,
		MaxPages:              1,
		MaxRetries:            3,
		RetryDelaySeconds:     30,
		RatePerSec:            1,
		CacheTTLMinutes:       60,
		BatchSize:             50,
		Concurrency:           3,
		TaskRetries:           3,
		TaskRetryDelaySeconds: 300,
	}
}

// Load reads environment variables and the optional YAML overlay and returns
// a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	runOnStart := true
	if s := os.Getenv("ETL_RUN_ON_START"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("ETL_RUN_ON_START must be a boolean, got %q", s)
		}
		runOnStart = v
	}

	cfg := &Config{
		Port:          envOr("ETL_PORT", "8083"),
		GRPCPort:      envOr("GRPC_PORT", "9083"),
		DatabaseURL:   dbURL,
		RedisURL:      os.Getenv("REDIS_URL"),
		AdzunaAppID:   os.Getenv("ADZUNA_APP_ID"),
		AdzunaAppKey:  os.Getenv("ADZUNA_APP_KEY"),
		AdzunaCountry: envOr("ADZUNA_COUNTRY", "us"),
		Schedule:      envOr("ETL_SCHEDULE", "@daily"),
		RunOnStart:    runOnStart,
		ConfigPath:    os.Getenv("ETL_CONFIG"),
		LockFile:      envOr("ETL_LOCK_FILE", "/tmp/jobmate-etl.lock"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		Pipeline:      DefaultPipeline(),
	}

	if cfg.ConfigPath != "" {
		if err := Overlay(&cfg.Pipeline, cfg.ConfigPath); err != nil {
			return nil, err
		}
	}

	if cfg.AdzunaAppKey == "" && cfg.AdzunaAppID != "" {
		if key, err := secrets.AdzunaAppKey(cfg.AdzunaAppID); err == nil {
			cfg.AdzunaAppKey = key
		}
	}

	v := Validate(cfg)
	if !v.OK() {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(v.Errors, "; "))
	}
	cfg.Warnings = v.Warnings
	return cfg, nil
}

// Overlay replaces the fields of p that are set in the YAML file at path.
// Fields absent from the file keep their current value.
func Overlay(p *Pipeline, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, p); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ErrMissingCredentials is reported as a warning only: the fetcher skips
// extraction without them.
var ErrMissingCredentials = errors.New("ADZUNA_APP_ID / ADZUNA_APP_KEY not set: runs will load nothing")
