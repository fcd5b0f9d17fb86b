package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/propscrape/cache"
	"github.com/use-agent/propscrape/config"
	"github.com/use-agent/propscrape/extractor"
	"github.com/use-agent/propscrape/models"
	"github.com/use-agent/propscrape/scraper"
	"github.com/use-agent/propscrape/webhook"
)

type stubRunner struct {
	mu     sync.Mutex
	calls  int
	last   models.SearchRequest
	err    error
	recs   []models.PropertyRecord
	queued int
}

func (s *stubRunner) Run(_ context.Context, req *models.SearchRequest, _ scraper.RecordFunc) (*scraper.RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = *req
	if s.err != nil {
		return nil, s.err
	}
	recs := s.recs
	if n := req.Limit(); n > 0 && len(recs) > n {
		recs = recs[:n]
	}
	return &scraper.RunResult{Location: req.Location, Records: recs}, nil
}

func (s *stubRunner) Stats() models.RunStats {
	return models.RunStats{Total: int64(s.calls), Queued: s.queued}
}

func (s *stubRunner) DefaultMaxListings() int { return 1 }

func record(link string) models.PropertyRecord {
	return models.NewPropertyRecord(
		models.ListingSummary{Address: "1 High St", Title: "3 bed house", Link: link},
		models.UnknownDetail(),
	)
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		Auth:      config.AuthConfig{Enabled: true, APIKeys: []string{"k1"}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	}
}

func do(t *testing.T, r http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, models.ListingsResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp models.ListingsResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") && path != "/api/v1/health" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

var auth = map[string]string{"X-API-Key": "k1"}

func TestListings_Success(t *testing.T) {
	run := &stubRunner{recs: []models.PropertyRecord{record("https://example.test/1"), record("https://example.test/2")}}
	r := NewRouter(run, testConfig(), nil, nil, time.Now())

	w, resp := do(t, r, http.MethodPost, "/api/v1/listings", `{"location":"Oxford","max_listings":0}`, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Oxford", resp.Location)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "https://example.test/1", resp.Records[0].Link)
	assert.Empty(t, resp.CacheStatus)
	assert.Equal(t, 0, run.last.Limit())
}

func TestListings_DefaultMaxListings(t *testing.T) {
	run := &stubRunner{recs: []models.PropertyRecord{record("https://example.test/1"), record("https://example.test/2")}}
	r := NewRouter(run, testConfig(), nil, nil, time.Now())

	_, resp := do(t, r, http.MethodPost, "/api/v1/listings", `{"location":"Oxford"}`, auth)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 1, run.last.Limit())
}

func TestListings_RecordShape(t *testing.T) {
	run := &stubRunner{recs: []models.PropertyRecord{record("https://example.test/1")}}
	r := NewRouter(run, testConfig(), nil, nil, time.Now())

	w, _ := do(t, r, http.MethodPost, "/api/v1/listings", `{"location":"Oxford"}`, auth)
	var raw struct {
		Records []map[string]any `json:"records"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	require.Len(t, raw.Records, 1)
	rec := raw.Records[0]
	for _, k := range []string{"address", "title", "link", "tenure", "price", "bedrooms", "bathrooms", "reception", "pictures"} {
		assert.Contains(t, rec, k)
	}
	assert.NotContains(t, rec, "floor_plan")
	assert.Equal(t, []any{}, rec["pictures"])
}

func TestListings_BadRequest(t *testing.T) {
	run := &stubRunner{}
	r := NewRouter(run, testConfig(), nil, nil, time.Now())

	for _, body := range []string{`{}`, `{"location":"Oxford","max_listings":-1}`, `not json`} {
		w, resp := do(t, r, http.MethodPost, "/api/v1/listings", body, auth)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, models.ErrCodeInvalidInput, resp.Error.Code, body)
	}
	assert.Zero(t, run.calls)
}

func TestListings_ErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{models.NewScrapeError(models.ErrCodeSearchInputTimeout, "x", nil), http.StatusGatewayTimeout},
		{models.NewScrapeError(models.ErrCodeLoadTimeout, "x", nil), http.StatusGatewayTimeout},
		{models.NewScrapeError(models.ErrCodeTimeout, "x", nil), http.StatusGatewayTimeout},
		{models.NewScrapeError(models.ErrCodeMissingElement, "x", nil), http.StatusBadGateway},
		{models.NewScrapeError(models.ErrCodeNavigation, "x", nil), http.StatusBadGateway},
		{&extractor.CardError{Index: 2, Missing: "address"}, http.StatusBadGateway},
		{models.NewScrapeError(models.ErrCodeBrowserCrash, "x", nil), http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		run := &stubRunner{err: tc.err}
		r := NewRouter(run, testConfig(), nil, nil, time.Now())

		w, resp := do(t, r, http.MethodPost, "/api/v1/listings", `{"location":"Oxford"}`, auth)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())
		assert.False(t, resp.Success)
		assert.Equal(t, models.CodeOf(tc.err), resp.Error.Code)
	}
}

func TestListings_CardErrorKeepsContext(t *testing.T) {
	run := &stubRunner{err: &extractor.CardError{Index: 2, Missing: "address"}}
	r := NewRouter(run, testConfig(), nil, nil, time.Now())

	_, resp := do(t, r, http.MethodPost, "/api/v1/listings", `{"location":"Oxford"}`, auth)
	assert.Equal(t, models.ErrCodeMalformedCard, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "card 2")
}

func TestListings_CacheHit(t *testing.T) {
	run := &stubRunner{recs: []models.PropertyRecord{record("https://example.test/1")}}
	cc := cache.New(10)
	t.Cleanup(cc.Close)
	r := NewRouter(run, testConfig(), cc, nil, time.Now())

	body := `{"location":"Oxford","max_age":60000}`
	_, first := do(t, r, http.MethodPost, "/api/v1/listings", body, auth)
	assert.Equal(t, "miss", first.CacheStatus)

	_, second := do(t, r, http.MethodPost, "/api/v1/listings", `{"location":" oxford ","max_age":60000}`, auth)
	assert.Equal(t, "hit", second.CacheStatus)
	assert.Equal(t, 1, second.Count)
	assert.Equal(t, 1, run.calls)

	// Without max_age the cache is bypassed.
	_, third := do(t, r, http.MethodPost, "/api/v1/listings", `{"location":"Oxford"}`, auth)
	assert.Empty(t, third.CacheStatus)
	assert.Equal(t, 2, run.calls)
}

func TestListings_Webhook(t *testing.T) {
	got := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Webhook.Secret = "s3cret"
	sender := &webhook.Sender{Client: srv.Client(), Delays: []time.Duration{0}}
	run := &stubRunner{recs: []models.PropertyRecord{record("https://example.test/1")}}
	r := NewRouter(run, cfg, nil, sender, time.Now())

	w, _ := do(t, r, http.MethodPost, "/api/v1/listings", `{"location":"Oxford","webhook_url":"`+srv.URL+`"}`, auth)
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case req := <-got:
		assert.True(t, strings.HasPrefix(req.Header.Get(webhook.SignatureHeader), "sha256="))
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestAuth(t *testing.T) {
	run := &stubRunner{recs: []models.PropertyRecord{}}
	r := NewRouter(run, testConfig(), nil, nil, time.Now())

	w, resp := do(t, r, http.MethodPost, "/api/v1/listings", `{"location":"Oxford"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrCodeUnauthorized, resp.Error.Code)

	w, _ = do(t, r, http.MethodPost, "/api/v1/listings", `{"location":"Oxford"}`, map[string]string{"X-API-Key": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/v1/listings", `{"location":"Oxford"}`, map[string]string{"Authorization": "Bearer k1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	run := &stubRunner{recs: []models.PropertyRecord{}}
	r := NewRouter(run, cfg, nil, nil, time.Now())

	w, _ := do(t, r, http.MethodPost, "/api/v1/listings", `{"location":"Oxford"}`, auth)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp := do(t, r, http.MethodPost, "/api/v1/listings", `{"location":"Oxford"}`, auth)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, models.ErrCodeRateLimited, resp.Error.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestHealth_NoAuth(t *testing.T) {
	r := NewRouter(&stubRunner{}, testConfig(), nil, nil, time.Now())

	w, _ := do(t, r, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var h models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, "healthy", h.Status)
	assert.NotEmpty(t, h.Version)
}

func TestHealth_BusyWhileRunsQueue(t *testing.T) {
	r := NewRouter(&stubRunner{queued: 2}, testConfig(), nil, nil, time.Now())

	w, _ := do(t, r, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var h models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, "busy", h.Status)
	assert.Equal(t, 2, h.Runs.Queued)
}
