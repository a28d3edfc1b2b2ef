package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validation collects hard errors and soft warnings about a Config.
type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Validate normalizes the list fields of cfg in place (trimmed, blanks and
// case-insensitive duplicates removed) and checks the remaining values.
func Validate(cfg *Config) Validation {
	var res Validation
	p := &cfg.Pipeline

	p.Roles = trimList(p.Roles)
	p.ExcludeTerms = trimList(p.ExcludeTerms)
	p.Skills = trimList(p.Skills)

	if len(p.Roles) == 0 {
		res.addErr("roles must list at least one search")
	}
	if p.MaxPages <= 0 {
		res.addErr("max_pages must be > 0")
	} else if p.MaxPages > 20 {
		res.addWarn("max_pages is %d; each role issues that many API calls per run", p.MaxPages)
	}
	if p.MaxDaysOld <= 0 {
		res.addErr("max_days_old must be > 0")
	}
	if p.MaxRetries < 0 {
		res.addErr("max_retries must be >= 0")
	}
	if p.RetryDelaySeconds < 0 {
		res.addErr("retry_delay_seconds must be >= 0")
	}
	if p.BatchSize <= 0 {
		res.addErr("batch_size must be > 0")
	}
	if p.Concurrency <= 0 {
		res.addErr("concurrency must be > 0")
	}
	if p.TaskRetries < 0 {
		res.addErr("task_retries must be >= 0")
	}
	if p.TaskRetryDelaySeconds < 0 {
		res.addErr("task_retry_delay_seconds must be >= 0")
	}
	if p.RatePerSec < 0 {
		res.addErr("rate_per_sec must be >= 0")
	} else if p.RatePerSec == 0 {
		res.addWarn("rate_per_sec is 0; API calls are not rate limited")
	}
	if p.CacheTTLMinutes <= 0 && cfg.RedisURL != "" {
		res.addWarn("cache_ttl_minutes is not positive; the page cache is disabled")
	}

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		res.addErr("ETL_SCHEDULE %q: %v", cfg.Schedule, err)
	}
	if cfg.AdzunaAppID == "" || cfg.AdzunaAppKey == "" {
		res.addWarn("%v", ErrMissingCredentials)
	}
	return res
}

func trimList(xs []string) []string {
	seen := map[string]bool{}
	var ys []string
	for _, x := range xs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		key := strings.ToLower(x)
		if seen[key] {
			continue
		}
		seen[key] = true
		ys = append(ys, x)
	}
	return ys
}
