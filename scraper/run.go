package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/propscrape/models"
	"github.com/use-agent/propscrape/navigator"
)

// RecordFunc receives each record as soon as it is assembled.
type RecordFunc func(rec models.PropertyRecord)

// RunResult is the output of one pipeline run.
type RunResult struct {
	RunID        string
	Location     string
	Records      []models.PropertyRecord
	SkippedCards int
	Timing       models.TimingInfo
}

// Run executes one pipeline run for req.
//
// Lifecycle:
//
//  1. Validate         - location required, max listings ≥ 0
//  2. Timeout guard    - hard deadline on the entire run
//  3. Serialise        - one browser session at a time, queue honours ctx
//  4. Acquire session  - navigator.Open
//  5. DEFER: release   - Close runs on every exit path
//  6. Search           - home page → fill → Enter → load
//  7. Enumerate        - results fragment → first MaxListings summaries
//  8. Detail loop      - those summaries, in page order
//
// emit may be nil. req is not modified.
func (s *Scraper) Run(ctx context.Context, req *models.SearchRequest, emit RecordFunc) (result *RunResult, err error) {
	// ── 1. Validate ─────────────────────────────────────────────────
	if req.Location == "" {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "location is required", nil)
	}
	r := *req
	r.Defaults(s.pipeCfg.MaxListings)
	limit := r.Limit()
	if limit < 0 {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "max_listings must not be negative", nil)
	}

	// ── 2. Timeout guard ────────────────────────────────────────────
	if s.pipeCfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.pipeCfg.RunTimeout)
		defer cancel()
	}

	// ── 3. Serialise ────────────────────────────────────────────────
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	s.active.Add(1)
	defer s.active.Add(-1)
	s.total.Add(1)
	defer func() {
		if err != nil {
			s.failed.Add(1)
		}
	}()

	// ── 4. Acquire session ──────────────────────────────────────────
	nav, err := navigator.Open(ctx, s.dial, s.site, s.navCfg)
	if err != nil {
		return nil, err
	}

	// ── 5. DEFER: release the session whatever happens below ────────
	defer func() {
		if closeErr := nav.Close(); closeErr != nil {
			slog.Warn("failed to close browser session", "error", closeErr)
		}
	}()

	result = &RunResult{RunID: uuid.NewString(), Location: r.Location, Records: []models.PropertyRecord{}}
	log := slog.With("run", result.RunID)

	// ── 6. Search ───────────────────────────────────────────────────
	searchStart := time.Now()
	if err := nav.OpenSearch(ctx, r.Location); err != nil {
		return nil, err
	}
	resultsHTML, err := nav.FetchResultsFragment(ctx)
	if err != nil {
		return nil, err
	}

	// ── 7. Enumerate ────────────────────────────────────────────────
	// Only cards met before the limit is reached are judged.
	summaries, cardErrs := s.extractor.SummariesUpTo(resultsHTML, limit)
	if len(cardErrs) > 0 {
		if !s.pipeCfg.SkipMalformedCards {
			return nil, cardErrs[0]
		}
		for _, ce := range cardErrs {
			log.Warn("skipping malformed result card", "error", ce)
		}
		result.SkippedCards = len(cardErrs)
	}
	result.Timing.SearchMs = time.Since(searchStart).Milliseconds()
	log.Info("search results extracted",
		"location", r.Location,
		"cards", len(summaries),
		"skipped", result.SkippedCards,
	)

	// ── 8. Detail loop ──────────────────────────────────────────────
	detailStart := time.Now()
	for _, summary := range summaries {
		detailHTML, err := nav.OpenDetail(ctx, summary.Link)
		if err != nil {
			return nil, err
		}
		rec := models.NewPropertyRecord(summary, s.extractor.Detail(detailHTML))
		result.Records = append(result.Records, rec)
		s.processed.Add(1)

		log.Debug("listing extracted", "link", rec.Link, "pictures", len(rec.Pictures))
		if emit != nil {
			emit(rec)
		}
		if s.pub != nil {
			if err := s.pub.Publish(ctx, r.Location, rec); err != nil {
				log.Warn("failed to publish record", "link", rec.Link, "error", err)
			}
		}
	}
	result.Timing.DetailMs = time.Since(detailStart).Milliseconds()
	result.Timing.TotalMs = result.Timing.SearchMs + result.Timing.DetailMs

	return result, nil
}

// IsStructural reports whether err means the site markup did not have a
// required element, as opposed to a transport or timing failure.
func IsStructural(err error) bool {
	switch models.CodeOf(err) {
	case models.ErrCodeMissingElement, models.ErrCodeMalformedCard:
		return true
	}
	return errors.Is(err, navigator.ErrElementNotFound)
}

// acquire waits for the browser session slot. A caller that gives up while
// queued leaves with SCRAPE_TIMEOUT and never touches the browser.
func (s *Scraper) acquire(ctx context.Context) error {
	s.queued.Add(1)
	defer s.queued.Add(-1)
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return models.NewScrapeError(models.ErrCodeTimeout, "run abandoned while waiting for the browser session", ctx.Err())
	}
}

func (s *Scraper) release() { <-s.sem }
