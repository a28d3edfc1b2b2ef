package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"

	"jobmate/etl-service/internal/secrets"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	keyring.MockInit()
	for _, k := range []string{
		"REDIS_URL", "ADZUNA_APP_ID", "ADZUNA_APP_KEY", "ADZUNA_COUNTRY", "ETL_PORT", "GRPC_PORT",
		"ETL_SCHEDULE", "ETL_RUN_ON_START", "ETL_CONFIG", "ETL_LOCK_FILE", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("DATABASE_URL", "sqlite://:memory:")
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "etl.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// ── Environment ───────────────────────────────────────────────────────────

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error = %v, want DATABASE_URL is required", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setBaseEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8083" || cfg.GRPCPort != "9083" || cfg.AdzunaCountry != "us" || cfg.Schedule != "@daily" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if !cfg.RunOnStart {
		t.Error("RunOnStart should default to true")
	}
	p := cfg.Pipeline
	if len(p.Roles) != 3 || p.BatchSize != 50 || p.MaxRetries != 3 || p.RetryDelaySeconds != 30 {
		t.Errorf("unexpected pipeline defaults: %+v", p)
	}
	if p.TaskRetries != 3 || p.TaskRetryDelay().Minutes() != 5 {
		t.Errorf("task retries = %d every %s, want 3 every 5m", p.TaskRetries, p.TaskRetryDelay())
	}
	if len(cfg.Warnings) == 0 {
		t.Error("missing credentials should produce a warning")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ETL_PORT", "9000")
	t.Setenv("ADZUNA_COUNTRY", "gb")
	t.Setenv("ETL_SCHEDULE", "@every 6h")
	t.Setenv("ETL_RUN_ON_START", "false")
	t.Setenv("ADZUNA_APP_ID", "id")
	t.Setenv("ADZUNA_APP_KEY", "key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" || cfg.AdzunaCountry != "gb" || cfg.Schedule != "@every 6h" || cfg.RunOnStart {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	for _, w := range cfg.Warnings {
		if strings.Contains(w, "ADZUNA_APP_ID") {
			t.Errorf("unexpected credentials warning: %s", w)
		}
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ETL_RUN_ON_START", "maybe")
	if _, err := Load(); err == nil {
		t.Error("expected error for ETL_RUN_ON_START=maybe")
	}

	t.Setenv("ETL_RUN_ON_START", "")
	t.Setenv("ETL_SCHEDULE", "not a cron spec")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "ETL_SCHEDULE") {
		t.Errorf("error = %v, want ETL_SCHEDULE error", err)
	}
}

func TestLoad_AppKeyFromKeyring(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ADZUNA_APP_ID", "app-7")
	if err := secrets.SetAdzunaAppKey("app-7", "from-keychain"); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AdzunaAppKey != "from-keychain" {
		t.Errorf("AdzunaAppKey = %q, want keychain value", cfg.AdzunaAppKey)
	}
}

// ── YAML overlay ──────────────────────────────────────────────────────────

func TestLoad_YAMLOverlay(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ETL_CONFIG", writeYAML(t, `
roles: ["Go Developer", " go developer ", "SRE", ""]
batch_size: 10
exclude_terms: [unpaid]
skills: [Go, Rust]
`))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := cfg.Pipeline
	if len(p.Roles) != 2 || p.Roles[0] != "Go Developer" || p.Roles[1] != "SRE" {
		t.Errorf("roles = %q, want [Go Developer SRE]", p.Roles)
	}
	if p.BatchSize != 10 {
		t.Errorf("batch_size = %d, want 10", p.BatchSize)
	}
	if p.MaxRetries != 3 {
		t.Errorf("max_retries = %d, want default 3 kept", p.MaxRetries)
	}
	if len(p.ExcludeTerms) != 1 || len(p.Skills) != 2 {
		t.Errorf("lists not overlaid: %+v", p)
	}
}

func TestLoad_YAMLErrors(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("ETL_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing overlay file")
	}

	t.Setenv("ETL_CONFIG", writeYAML(t, "batch_size: [oops"))
	if _, err := Load(); err == nil {
		t.Error("expected parse error")
	}

	t.Setenv("ETL_CONFIG", writeYAML(t, "batch_size: 0\nroles: []\n"))
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "batch_size") || !strings.Contains(err.Error(), "roles") {
		t.Errorf("error = %v, want batch_size and roles errors", err)
	}
}

// ── Validate ──────────────────────────────────────────────────────────────

func TestValidate_Warnings(t *testing.T) {
	cfg := &Config{Schedule: "@daily", RedisURL: "redis://x", AdzunaAppID: "a", AdzunaAppKey: "b", Pipeline: DefaultPipeline()}
	cfg.Pipeline.MaxPages = 50
	cfg.Pipeline.RatePerSec = 0
	cfg.Pipeline.CacheTTLMinutes = 0

	v := Validate(cfg)
	if !v.OK() {
		t.Fatalf("unexpected errors: %v", v.Errors)
	}
	if len(v.Warnings) != 3 {
		t.Errorf("warnings = %q, want 3", v.Warnings)
	}
}
