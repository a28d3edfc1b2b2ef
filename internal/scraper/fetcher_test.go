package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jobmate/etl-service/internal/model"
)

func adzunaPage(n int, offset int) adzunaResponse {
	resp := adzunaResponse{Count: 1000}
	for i := 0; i < n; i++ {
		resp.Results = append(resp.Results, adzunaResult{
			ID:          fmt.Sprintf("%d", offset+i),
			Title:       "Software Engineer",
			Description: "3-5 years of Python",
			Company:     adzunaCompany{DisplayName: "Acme"},
			Location:    adzunaLocation{DisplayName: "Austin, TX"},
			Category:    adzunaCategory{Label: "IT Jobs"},
			Created:     "2024-03-01T09:30:00Z",
			RedirectURL: "https://example.test/ad",
		})
	}
	return resp
}

func testFetcher(srvURL string, opts Options) *Fetcher {
	opts.BaseURL = srvURL
	if opts.AppID == "" {
		opts.AppID = "id"
	}
	if opts.AppKey == "" {
		opts.AppKey = "key"
	}
	return NewFetcher(opts)
}

// ── Request shape & mapping ───────────────────────────────────────────────

func TestFetch_RequestParamsAndMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/us/search/1" {
			t.Errorf("path = %s, want /us/search/1", r.URL.Path)
		}
		q := r.URL.Query()
		for k, want := range map[string]string{
			"app_id": "id", "app_key": "key", "what": "Data Scientist", "where": "us",
			"results_per_page": "50", "max_days_old": "30",
		} {
			if got := q.Get(k); got != want {
				t.Errorf("query %s = %q, want %q", k, got, want)
			}
		}
		json.NewEncoder(w).Encode(adzunaPage(2, 0))
	}))
	defer server.Close()

	f := testFetcher(server.URL, Options{})
	jobs, err := f.Fetch(context.Background(), Query{What: "Data Scientist", Where: "us"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d listings, want 2", len(jobs))
	}
	got := jobs[0]
	if got.ID != "0" || got.Company != "Acme" || got.Location != "Austin, TX" || got.Category != "IT Jobs" {
		t.Errorf("unexpected mapping: %+v", got)
	}
	if want := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC); !got.Created.Equal(want) {
		t.Errorf("Created = %v, want %v", got.Created, want)
	}
}

func TestFetch_UnparseableCreatedIsZero(t *testing.T) {
	l := toListing(adzunaResult{ID: "1", Created: "yesterday"})
	if !l.Created.IsZero() {
		t.Errorf("Created = %v, want zero", l.Created)
	}
}

// ── Pagination ────────────────────────────────────────────────────────────

func TestFetch_StopsOnShortPage(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		size := 2
		if n == 2 {
			size = 1
		}
		json.NewEncoder(w).Encode(adzunaPage(size, int(n)*10))
	}))
	defer server.Close()

	f := testFetcher(server.URL, Options{PageSize: 2, MaxPages: 5})
	jobs, err := f.Fetch(context.Background(), Query{What: "x"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2", atomic.LoadInt32(&calls))
	}
	if len(jobs) != 3 {
		t.Errorf("got %d listings, want 3", len(jobs))
	}
}

func TestFetch_RespectsMaxPages(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(adzunaPage(2, 0))
	}))
	defer server.Close()

	f := testFetcher(server.URL, Options{PageSize: 2, MaxPages: 3})
	if _, err := f.Fetch(context.Background(), Query{What: "x"}); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", atomic.LoadInt32(&calls))
	}
}

// ── Credentials ───────────────────────────────────────────────────────────

func TestFetch_MissingCredentialsSkips(t *testing.T) {
	f := NewFetcher(Options{BaseURL: "http://127.0.0.1:0"})
	jobs, err := f.Fetch(context.Background(), Query{What: "x"})
	if err != nil || jobs != nil {
		t.Errorf("Fetch without credentials = (%v, %v), want (nil, nil)", jobs, err)
	}
}

// ── Retries ───────────────────────────────────────────────────────────────

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(adzunaPage(1, 0))
	}))
	defer server.Close()

	f := testFetcher(server.URL, Options{MaxRetries: 3, RetryDelay: time.Millisecond})
	jobs, err := f.Fetch(context.Background(), Query{What: "x"})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 || len(jobs) != 1 {
		t.Errorf("calls = %d listings = %d, want 3 and 1", atomic.LoadInt32(&calls), len(jobs))
	}
}

func TestFetch_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	f := testFetcher(server.URL, Options{MaxRetries: 2, RetryDelay: time.Millisecond})
	_, err := f.Fetch(context.Background(), Query{What: "x"})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests {
		t.Fatalf("error = %v, want StatusError 429", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", atomic.LoadInt32(&calls))
	}
}

func TestFetch_ClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"exception":"AUTH_FAIL"}`))
	}))
	defer server.Close()

	f := testFetcher(server.URL, Options{MaxRetries: 3, RetryDelay: time.Millisecond})
	_, err := f.Fetch(context.Background(), Query{What: "x"})
	if err == nil || !strings.Contains(err.Error(), "AUTH_FAIL") {
		t.Errorf("error = %v, want AUTH_FAIL body", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1", atomic.LoadInt32(&calls))
	}
}

func TestFetch_BadJSONIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"results": [`))
	}))
	defer server.Close()

	f := testFetcher(server.URL, Options{MaxRetries: 3, RetryDelay: time.Millisecond})
	if _, err := f.Fetch(context.Background(), Query{What: "x"}); err == nil {
		t.Error("expected decode error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1", atomic.LoadInt32(&calls))
	}
}

// ── Cache ─────────────────────────────────────────────────────────────────

type memCache struct {
	mu   sync.Mutex
	data map[PageKey][]model.RawListing
	sets int
}

func (m *memCache) Get(_ context.Context, k PageKey) ([]model.RawListing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[k]
	return v, ok
}

func (m *memCache) Set(_ context.Context, k PageKey, v []model.RawListing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[PageKey][]model.RawListing{}
	}
	m.data[k] = v
	m.sets++
	return nil
}

func TestFetch_UsesPageCache(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(adzunaPage(1, 0))
	}))
	defer server.Close()

	cache := &memCache{}
	f := testFetcher(server.URL, Options{Cache: cache})
	q := Query{What: "Web Developer", Where: "us"}

	first, err := f.Fetch(context.Background(), q)
	if err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	second, err := f.Fetch(context.Background(), q)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("HTTP calls = %d, want 1", atomic.LoadInt32(&calls))
	}
	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}
	if len(first) != 1 || len(second) != 1 || first[0].ID != second[0].ID {
		t.Errorf("cached page differs: %v vs %v", first, second)
	}
}

func TestPageKey_RedisKeyIsCaseInsensitive(t *testing.T) {
	a := PageKey{Country: "us", What: "Web Developer", Page: 1}.redisKey()
	b := PageKey{Country: "US", What: "web developer", Page: 1}.redisKey()
	c := PageKey{Country: "us", What: "web developer", Page: 2}.redisKey()
	if a != b {
		t.Errorf("keys differ by case: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different pages share a key")
	}
}

// ── Filters ───────────────────────────────────────────────────────────────

func TestContainsExcludedTerm(t *testing.T) {
	l := model.RawListing{Title: "Sales Engineer", Company: "Acme Staffing", Description: "Commission only"}
	if !ContainsExcludedTerm(l, []string{"commission ONLY"}) {
		t.Error("expected description match")
	}
	if !ContainsExcludedTerm(l, []string{"", "staffing"}) {
		t.Error("expected company match")
	}
	if ContainsExcludedTerm(l, nil) || ContainsExcludedTerm(l, []string{"  "}) {
		t.Error("empty terms must not match")
	}
}

func TestDedup_KeepsFirstOccurrence(t *testing.T) {
	in := []model.RawListing{{ID: "1", Title: "a"}, {ID: "2"}, {ID: "1", Title: "b"}, {}, {}}
	out := Dedup(in)
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4", len(out))
	}
	if out[0].Title != "a" {
		t.Errorf("first occurrence not kept: %+v", out[0])
	}
}
