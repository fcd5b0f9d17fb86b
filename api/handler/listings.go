package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/propscrape/cache"
	"github.com/use-agent/propscrape/config"
	"github.com/use-agent/propscrape/models"
	"github.com/use-agent/propscrape/scraper"
	"github.com/use-agent/propscrape/webhook"
)

// Runner executes pipeline runs. *scraper.Scraper satisfies it.
type Runner interface {
	Run(ctx context.Context, req *models.SearchRequest, emit scraper.RecordFunc) (*scraper.RunResult, error)
	Stats() models.RunStats
	DefaultMaxListings() int
}

// Listings returns a handler for POST /api/v1/listings.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup when max_age is set.
//  3. Runner.Run → records (search_ms, detail_ms).
//  4. Cache store, webhook, respond 200.
func Listings(run Runner, cc *cache.Cache, hook config.WebhookConfig, sender *webhook.Sender) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ListingsResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults(run.DefaultMaxListings())
		cacheKey := cache.Key(req.Location, req.Limit())

		// ── 2. Cache lookup ─────────────────────────────────────────
		if cc != nil && req.MaxAge > 0 {
			if cached, hit := cc.Get(cacheKey, req.MaxAge); hit {
				resp := *cached
				resp.CacheStatus = "hit"
				resp.Timing = models.TimingInfo{TotalMs: time.Since(totalStart).Milliseconds()}
				c.JSON(http.StatusOK, resp)
				return
			}
		}

		// ── 3. Run ──────────────────────────────────────────────────
		result, err := run.Run(c.Request.Context(), &req, nil)
		if err != nil {
			slog.Error("listings run failed",
				"location", req.Location,
				"code", models.CodeOf(err),
				"error", err,
			)
			respondError(c, req.Location, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		resp := &models.ListingsResponse{
			Success:      true,
			RunID:        result.RunID,
			Location:     result.Location,
			Count:        len(result.Records),
			Records:      result.Records,
			SkippedCards: result.SkippedCards,
			Timing: models.TimingInfo{
				TotalMs:  time.Since(totalStart).Milliseconds(),
				SearchMs: result.Timing.SearchMs,
				DetailMs: result.Timing.DetailMs,
			},
		}

		// ── 4. Cache store ──────────────────────────────────────────
		if cc != nil && req.MaxAge > 0 {
			cc.Set(cacheKey, resp)
			resp = withCacheStatus(resp, "miss")
		}

		// ── 5. Webhook ──────────────────────────────────────────────
		if url := firstNonEmpty(req.WebhookURL, hook.URL); url != "" && sender != nil {
			sender.DeliverAsync(url, hook.Secret, webhook.ListingsEvent(resp))
		}

		c.JSON(http.StatusOK, resp)
	}
}

// withCacheStatus returns a copy so the cached value stays unannotated.
func withCacheStatus(resp *models.ListingsResponse, status string) *models.ListingsResponse {
	cp := *resp
	cp.CacheStatus = status
	return &cp
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, location string, err error, timing models.TimingInfo) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}
	detail := scrapeErr.ToDetail()
	if err != error(scrapeErr) {
		// Wrapped, e.g. a card error: keep the outer context.
		detail.Message = err.Error()
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.ListingsResponse{
		Success:  false,
		Location: location,
		Records:  []models.PropertyRecord{},
		Error:    detail,
		Timing:   timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout, models.ErrCodeSearchInputTimeout, models.ErrCodeLoadTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeMissingElement, models.ErrCodeMalformedCard:
		return http.StatusBadGateway // 502
	case models.ErrCodeBrowserCrash:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
