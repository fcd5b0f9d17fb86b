package scraper

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/use-agent/propscrape/config"
	"github.com/use-agent/propscrape/extractor"
	"github.com/use-agent/propscrape/models"
	"github.com/use-agent/propscrape/navigator"
	"github.com/use-agent/propscrape/publisher"
)

// Scraper runs the search → results → detail pipeline. Runs are serialised:
// each one owns a single browser session from start to finish.
// It is safe for concurrent use.
type Scraper struct {
	dial      navigator.Dialer
	extractor *extractor.Extractor
	site      config.SiteConfig
	navCfg    config.NavigatorConfig
	pipeCfg   config.PipelineConfig
	pub       publisher.Publisher // optional

	sem       chan struct{} // capacity 1: the single browser session
	queued    atomic.Int32
	active    atomic.Int32
	total     atomic.Int64
	failed    atomic.Int64
	processed atomic.Int64
	startTime time.Time
}

// NewScraper wires the pipeline. dial acquires one browser session per run.
func NewScraper(cfg *config.Config, dial navigator.Dialer, rules extractor.Rules) (*Scraper, error) {
	ex, err := extractor.New(cfg.Site.BaseURL, rules)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid extractor configuration", err)
	}
	slog.Info("scraper ready",
		"baseURL", cfg.Site.BaseURL,
		"maxListings", cfg.Pipeline.MaxListings,
		"remoteBrowser", cfg.Browser.CDPURL != "",
	)
	return &Scraper{
		dial:      dial,
		extractor: ex,
		site:      cfg.Site,
		navCfg:    cfg.Navigator,
		pipeCfg:   cfg.Pipeline,
		sem:       make(chan struct{}, 1),
		startTime: time.Now(),
	}, nil
}

// Stats returns a snapshot of run activity.
func (s *Scraper) Stats() models.RunStats {
	return models.RunStats{
		Active:    int(s.active.Load()),
		Queued:    int(s.queued.Load()),
		Total:     s.total.Load(),
		Failed:    s.failed.Load(),
		Processed: s.processed.Load(),
	}
}

// DefaultMaxListings is the configured limiter applied to requests that
// do not set one.
func (s *Scraper) DefaultMaxListings() int {
	return s.pipeCfg.MaxListings
}

// SetPublisher streams every extracted record to pub. A publish failure is
// logged and never fails the run.
func (s *Scraper) SetPublisher(pub publisher.Publisher) {
	s.pub = pub
}
