package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/use-agent/propscrape/api"
	"github.com/use-agent/propscrape/cache"
	"github.com/use-agent/propscrape/config"
	"github.com/use-agent/propscrape/extractor"
	"github.com/use-agent/propscrape/models"
	"github.com/use-agent/propscrape/navigator"
	"github.com/use-agent/propscrape/publisher"
	"github.com/use-agent/propscrape/scraper"
	"github.com/use-agent/propscrape/webhook"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// ── 1. Load configuration ───────────────────────────────────────
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()
	cfg := config.Load()

	fs := flag.NewFlagSet("propscrape", flag.ContinueOnError)
	fs.SetOutput(stderr)
	location := fs.String("location", cfg.Site.Location, "search location")
	maxListings := fs.Int("max", cfg.Pipeline.MaxListings, "listings to fetch details for (0 = all on the first page)")
	serve := fs.Bool("serve", false, "run the HTTP API instead of a single search")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log, stderr)
	slog.Info("propscrape starting",
		"baseURL", cfg.Site.BaseURL,
		"serve", *serve,
		"remoteBrowser", cfg.Browser.CDPURL != "",
	)

	// ── 3. Initialise scraper ───────────────────────────────────────
	dial := navigator.NewRodDialer(cfg.Browser, cfg.Navigator)
	sc, err := scraper.NewScraper(cfg, dial, extractor.DefaultRules)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		return 1
	}

	// ── 3b. Optional record stream ──────────────────────────────────
	if cfg.Publisher.RedisAddr != "" {
		pub, err := publisher.NewRedisPublisher(context.Background(), cfg.Publisher)
		if err != nil {
			slog.Error("failed to initialise publisher", "error", err)
			return 1
		}
		defer pub.Close()
		sc.SetPublisher(pub)
		slog.Info("publishing records to redis stream",
			"addr", cfg.Publisher.RedisAddr,
			"stream", cfg.Publisher.Stream,
		)
	}

	if *serve {
		return serveHTTP(cfg, sc)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return searchOnce(ctx, sc, &models.SearchRequest{Location: *location, MaxListings: maxListings}, stdout)
}

// exitMarkup is the exit status when the site's markup lacks an element the
// selectors require, so a retry will not help.
const exitMarkup = 3

// searchOnce runs a single search and prints each record as indented JSON.
func searchOnce(ctx context.Context, sc *scraper.Scraper, req *models.SearchRequest, stdout io.Writer) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	var writeErr error
	result, err := sc.Run(ctx, req, func(rec models.PropertyRecord) {
		if writeErr == nil {
			writeErr = enc.Encode(rec)
		}
	})
	if err != nil {
		slog.Error("search failed",
			"location", req.Location,
			"code", models.CodeOf(err),
			"error", err,
		)
		if scraper.IsStructural(err) {
			slog.Error("site markup did not match the configured selectors")
			return exitMarkup
		}
		return 1
	}
	if writeErr != nil {
		slog.Error("failed to write records", "error", writeErr)
		return 1
	}

	slog.Info("search complete",
		"run", result.RunID,
		"location", result.Location,
		"records", len(result.Records),
		"skipped", result.SkippedCards,
		"totalMs", result.Timing.TotalMs,
	)
	return 0
}

// serveHTTP runs the API until SIGINT/SIGTERM.
func serveHTTP(cfg *config.Config, sc *scraper.Scraper) int {
	cc := cache.New(cfg.Cache.MaxEntries).WithMemcache(cfg.Cache.MemcacheAddrs...)
	defer cc.Close()

	startTime := time.Now()
	router := api.NewRouter(sc, cfg, cc, webhook.DefaultSender, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// ── Graceful shutdown ───────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		slog.Error("HTTP server error", "error", err)
		return 1
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	}

	// A run in flight owns a browser; give it time to release the session.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("propscrape stopped")
	return 0
}

// initLogger configures slog based on the LogConfig. Logs go to w so stdout
// stays reserved for records.
func initLogger(cfg config.LogConfig, w io.Writer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
