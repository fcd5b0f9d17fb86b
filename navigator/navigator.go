// Package navigator drives one browser page through the listing site:
// home page, location search, results, then each listing's detail page.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod/lib/input"
	"github.com/use-agent/propscrape/config"
	"github.com/use-agent/propscrape/models"
)

// Browser is an acquired browser session.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is the set of blocking page operations the navigator needs.
// Timeouts bound a single call; ctx bounds the whole run.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, text string, timeout time.Duration) error
	Press(ctx context.Context, key input.Key) error
	WaitLoad(ctx context.Context, timeout time.Duration) error
	InnerHTML(ctx context.Context, selector string, timeout time.Duration) (string, error)
	Close() error
}

// Dialer acquires a new browser session.
type Dialer func(ctx context.Context) (Browser, error)

// State is the navigator's position in the search → detail sequence.
type State int

const (
	StateIdle State = iota
	StateSearchSubmitted
	StateResultsLoaded
	StateDetailLoaded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSearchSubmitted:
		return "search_submitted"
	case StateResultsLoaded:
		return "results_loaded"
	case StateDetailLoaded:
		return "detail_loaded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Navigator owns one browser session and one page. Calls must be sequential.
type Navigator struct {
	browser Browser
	page    Page
	baseURL string
	cfg     config.NavigatorConfig
	state   State
	closed  bool
}

// Open acquires a browser session through dial and opens its single page.
func Open(ctx context.Context, dial Dialer, site config.SiteConfig, cfg config.NavigatorConfig) (*Navigator, error) {
	if cfg.FillAttempts < 1 {
		cfg.FillAttempts = 1
	}

	b, err := dial(ctx)
	if err != nil {
		return nil, categorizeError(err, "failed to acquire browser session", models.ErrCodeBrowserCrash)
	}
	page, err := b.NewPage(ctx)
	if err != nil {
		if closeErr := b.Close(); closeErr != nil {
			slog.Warn("navigator: failed to close browser after page error", "error", closeErr)
		}
		return nil, categorizeError(err, "failed to open page", models.ErrCodeBrowserCrash)
	}

	return &Navigator{
		browser: b,
		page:    page,
		baseURL: site.BaseURL,
		cfg:     cfg,
		state:   StateIdle,
	}, nil
}

// State reports the current state.
func (n *Navigator) State() State { return n.state }

// OpenSearch loads the home page, types location into the autocomplete
// input, submits with Enter and waits for the results page to load.
//
// A fill that keeps timing out is retried up to FillAttempts times and then
// fails the run with SEARCH_INPUT_TIMEOUT.
func (n *Navigator) OpenSearch(ctx context.Context, location string) error {
	if n.closed {
		return models.NewScrapeError(models.ErrCodeInvalidState, "navigator is closed", nil)
	}
	if location == "" {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "search location is empty", nil)
	}
	n.state = StateIdle

	slog.Info("navigator: opening home page", "url", n.baseURL)
	if err := n.page.Navigate(ctx, n.baseURL); err != nil {
		return categorizeError(err, "navigation to home page failed", models.ErrCodeNavigation)
	}

	if err := n.fillSearch(ctx, location); err != nil {
		return err
	}
	if err := n.page.Press(ctx, input.Enter); err != nil {
		return categorizeError(err, "failed to submit search", models.ErrCodeNavigation)
	}
	n.state = StateSearchSubmitted

	slog.Info("navigator: waiting for search results", "location", location)
	if err := n.waitLoad(ctx, "search results"); err != nil {
		return err
	}
	n.state = StateResultsLoaded
	return nil
}

// FetchResultsFragment returns the inner HTML of the results container.
func (n *Navigator) FetchResultsFragment(ctx context.Context) (string, error) {
	if err := n.require("fetch results", StateResultsLoaded); err != nil {
		return "", err
	}
	return n.innerHTML(ctx, n.cfg.ResultsSelector)
}

// OpenDetail navigates to a listing page and returns the inner HTML of its
// detail container.
func (n *Navigator) OpenDetail(ctx context.Context, link string) (string, error) {
	if err := n.require("open detail", StateResultsLoaded, StateDetailLoaded); err != nil {
		return "", err
	}

	slog.Info("navigator: opening listing page", "url", link)
	if err := n.page.Navigate(ctx, link); err != nil {
		return "", categorizeError(err, "navigation to listing page failed", models.ErrCodeNavigation)
	}
	if err := n.waitLoad(ctx, "listing page"); err != nil {
		return "", err
	}
	n.state = StateDetailLoaded
	return n.innerHTML(ctx, n.cfg.DetailSelector)
}

// Close releases the page and the browser session. It is safe to call twice.
func (n *Navigator) Close() error {
	if n.closed {
		return nil
	}
	n.closed = true
	n.state = StateIdle

	pageErr := n.page.Close()
	browserErr := n.browser.Close()
	return errors.Join(pageErr, browserErr)
}

func (n *Navigator) fillSearch(ctx context.Context, location string) error {
	var err error
	for attempt := 1; attempt <= n.cfg.FillAttempts; attempt++ {
		err = n.page.Fill(ctx, n.cfg.SearchInputSelector, location, n.cfg.FillTimeout)
		if err == nil {
			return nil
		}
		if !timedOut(ctx, err) {
			return categorizeError(err, "failed to fill search input", models.ErrCodeNavigation)
		}
		slog.Warn("navigator: search input not ready",
			"selector", n.cfg.SearchInputSelector,
			"attempt", attempt,
			"attempts", n.cfg.FillAttempts,
			"timeout", n.cfg.FillTimeout,
		)
	}
	return models.NewScrapeError(
		models.ErrCodeSearchInputTimeout,
		fmt.Sprintf("search input %q not fillable after %d attempts", n.cfg.SearchInputSelector, n.cfg.FillAttempts),
		err,
	)
}

func (n *Navigator) waitLoad(ctx context.Context, what string) error {
	err := n.page.WaitLoad(ctx, n.cfg.LoadTimeout)
	if err == nil {
		return nil
	}
	if timedOut(ctx, err) {
		return models.NewScrapeError(
			models.ErrCodeLoadTimeout,
			fmt.Sprintf("%s did not finish loading within %s", what, n.cfg.LoadTimeout),
			err,
		)
	}
	return categorizeError(err, what+" failed to load", models.ErrCodeNavigation)
}

func (n *Navigator) innerHTML(ctx context.Context, selector string) (string, error) {
	content, err := n.page.InnerHTML(ctx, selector, n.cfg.ElementTimeout)
	if err == nil {
		return content, nil
	}
	if timedOut(ctx, err) || errors.Is(err, ErrElementNotFound) {
		return "", models.NewScrapeError(
			models.ErrCodeMissingElement,
			fmt.Sprintf("container %q not found", selector),
			err,
		)
	}
	return "", categorizeError(err, "failed to read "+selector, models.ErrCodeNavigation)
}

func (n *Navigator) require(op string, allowed ...State) error {
	if n.closed {
		return models.NewScrapeError(models.ErrCodeInvalidState, op+": navigator is closed", nil)
	}
	for _, s := range allowed {
		if n.state == s {
			return nil
		}
	}
	return models.NewScrapeError(
		models.ErrCodeInvalidState,
		fmt.Sprintf("%s: not allowed in state %s", op, n.state),
		nil,
	)
}

// ErrElementNotFound is returned by Page implementations that can tell an
// absent element apart from a slow one.
var ErrElementNotFound = errors.New("element not found")

// timedOut reports whether err is a per-call deadline while the run's own
// context is still live.
func timedOut(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
}

// categorizeError wraps raw errors into typed ScrapeErrors. Cancellation and
// run deadlines win over the fallback code.
func categorizeError(err error, msg, fallback string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "run canceled", err)
	default:
		return models.NewScrapeError(fallback, msg, err)
	}
}
