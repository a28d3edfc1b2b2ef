package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"jobmate/etl-service/internal/logger"
	"jobmate/etl-service/internal/model"
)

const (
	DefaultBaseURL    = "https://api.adzuna.com/v1/api/jobs"
	defaultPageSize   = 50
	defaultMaxPages   = 1
	defaultMaxDaysOld = 30
	httpTimeout       = 15 * time.Second
)

// Options configures a Fetcher. Zero values fall back to the defaults above.
type Options struct {
	BaseURL    string
	AppID      string
	AppKey     string
	Country    string // "us", "gb", "fr", …
	PageSize   int
	MaxPages   int
	MaxDaysOld int
	MaxRetries int           // extra attempts per page after the first
	RetryDelay time.Duration // wait between attempts
	RatePerSec float64       // 0 disables the limiter
	Cache      PageCache     // optional
}

// Query is one search against the API.
type Query struct {
	What  string // role, e.g. "Software Engineer"
	Where string // location, e.g. "us"
}

// Fetcher fetches job listings from the Adzuna public API.
// If AppID or AppKey is empty, Fetch returns (nil, nil) and logs a warning.
type Fetcher struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewFetcher constructs a fetcher with a shared HTTP client.
func NewFetcher(opts Options) *Fetcher {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Country == "" {
		opts.Country = "us"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = defaultMaxPages
	}
	if opts.MaxDaysOld <= 0 {
		opts.MaxDaysOld = defaultMaxDaysOld
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	f := &Fetcher{
		opts:   opts,
		client: &http.Client{Timeout: httpTimeout},
		log:    logger.Component("fetcher"),
	}
	if opts.RatePerSec > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	}
	return f
}

// adzunaResponse mirrors the top-level Adzuna JSON response.
type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

// adzunaResult mirrors a single Adzuna job listing.
type adzunaResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Company      adzunaCompany  `json:"company"`
	Location     adzunaLocation `json:"location"`
	Category     adzunaCategory `json:"category"`
	SalaryMin    float64        `json:"salary_min"`
	SalaryMax    float64        `json:"salary_max"`
	RedirectURL  string         `json:"redirect_url"`
	Created      string         `json:"created"`
	ContractTime string         `json:"contract_time"`
	ContractType string         `json:"contract_type"`
}

type adzunaCompany struct {
	DisplayName string `json:"display_name"`
}

type adzunaLocation struct {
	DisplayName string `json:"display_name"`
}

type adzunaCategory struct {
	Label string `json:"label"`
}

// StatusError is a non-200 answer from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("adzuna returned %d: %s", e.Code, e.Body)
}

// retryable reports whether another attempt may succeed.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	var de *decodeError
	return !errors.As(err, &de)
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "json unmarshal: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// Fetch retrieves the listings for q, iterating through pages until a short
// or empty page or MaxPages is reached.
func (f *Fetcher) Fetch(ctx context.Context, q Query) ([]model.RawListing, error) {
	if f.opts.AppID == "" || f.opts.AppKey == "" {
		f.log.Warn().Msg("ADZUNA_APP_ID / ADZUNA_APP_KEY not set, skipping fetch")
		return nil, nil
	}

	var results []model.RawListing
	for page := 1; page <= f.opts.MaxPages; page++ {
		batch, err := f.page(ctx, q, page)
		if err != nil {
			return results, fmt.Errorf("page %d: %w", page, err)
		}
		results = append(results, batch...)
		if len(batch) < f.opts.PageSize {
			break
		}
	}
	return results, nil
}

// page serves one page from the cache when possible, otherwise fetches it
// with retries and stores it.
func (f *Fetcher) page(ctx context.Context, q Query, page int) ([]model.RawListing, error) {
	key := PageKey{Country: f.opts.Country, What: q.What, Where: q.Where, Page: page}
	if f.opts.Cache != nil {
		if cached, ok := f.opts.Cache.Get(ctx, key); ok {
			f.log.Debug().Str("what", q.What).Int("page", page).Msg("page served from cache")
			return cached, nil
		}
	}

	var (
		batch []model.RawListing
		err   error
	)
	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			f.log.Warn().Err(err).Str("what", q.What).Int("page", page).
				Msgf("retrying in %s (attempt %d/%d)", f.opts.RetryDelay, attempt, f.opts.MaxRetries)
			select {
			case <-time.After(f.opts.RetryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		batch, err = f.fetchPage(ctx, q, page)
		if err == nil || !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	if f.opts.Cache != nil {
		if cerr := f.opts.Cache.Set(ctx, key, batch); cerr != nil {
			f.log.Warn().Err(cerr).Msg("page cache set failed")
		}
	}
	return batch, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, q Query, page int) ([]model.RawListing, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	endpoint := fmt.Sprintf("%s/%s/search/%d", f.opts.BaseURL, f.opts.Country, page)

	params := url.Values{}
	params.Set("app_id", f.opts.AppID)
	params.Set("app_key", f.opts.AppKey)
	params.Set("results_per_page", strconv.Itoa(f.opts.PageSize))
	params.Set("what", q.What)
	if q.Where != "" {
		params.Set("where", q.Where)
	}
	params.Set("max_days_old", strconv.Itoa(f.opts.MaxDaysOld))
	params.Set("content-type", "application/json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var apiResp adzunaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &decodeError{err: err}
	}

	results := make([]model.RawListing, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		results = append(results, toListing(r))
	}
	return results, nil
}

func toListing(r adzunaResult) model.RawListing {
	var created time.Time
	if r.Created != "" {
		if t, err := time.Parse(time.RFC3339, r.Created); err == nil {
			created = t.UTC()
		}
	}
	return model.RawListing{
		ID:           r.ID,
		Title:        r.Title,
		Company:      r.Company.DisplayName,
		Location:     r.Location.DisplayName,
		Description:  r.Description,
		Created:      created,
		RedirectURL:  r.RedirectURL,
		SalaryMin:    r.SalaryMin,
		SalaryMax:    r.SalaryMax,
		ContractType: r.ContractType,
		ContractTime: r.ContractTime,
		Category:     r.Category.Label,
	}
}
