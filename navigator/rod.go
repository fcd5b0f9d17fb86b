package navigator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/propscrape/config"
	"github.com/ysmood/gson"
)

// NewRodDialer returns a Dialer that connects to browserCfg.CDPURL, or
// launches a local Chromium when no endpoint is configured. Every page it
// opens blocks navCfg.BlockedResourceTypes and sends navCfg.AcceptLanguage.
func NewRodDialer(browserCfg config.BrowserConfig, navCfg config.NavigatorConfig) Dialer {
	return func(ctx context.Context) (Browser, error) {
		controlURL := browserCfg.CDPURL
		var l *launcher.Launcher

		if controlURL == "" {
			l = launcher.New().
				Context(ctx).
				Headless(browserCfg.Headless).
				NoSandbox(browserCfg.NoSandbox)
			if browserCfg.BrowserBin != "" {
				l = l.Bin(browserCfg.BrowserBin)
			}
			if browserCfg.Proxy != "" {
				l = l.Proxy(browserCfg.Proxy)
			}
			l.Set(flags.Flag("disable-dev-shm-usage"))
			l.Set(flags.Flag("disable-extensions"))
			l.Set(flags.Flag("no-first-run"))

			u, err := l.Launch()
			if err != nil {
				return nil, fmt.Errorf("launch browser: %w", err)
			}
			controlURL = u
			slog.Info("browser launched", "controlURL", controlURL)
		} else {
			slog.Info("connecting to remote browser")
		}

		browser := rod.New().ControlURL(controlURL)
		if err := browser.Connect(); err != nil {
			if l != nil {
				l.Kill()
			}
			return nil, fmt.Errorf("connect to browser: %w", err)
		}

		return &rodBrowser{
			browser:        browser,
			launcher:       l,
			blockedTypes:   navCfg.BlockedResourceTypes,
			acceptLanguage: navCfg.AcceptLanguage,
		}, nil
	}
}

// rodBrowser adapts *rod.Browser to Browser.
type rodBrowser struct {
	browser        *rod.Browser
	launcher       *launcher.Launcher // nil for remote sessions
	blockedTypes   []string
	acceptLanguage string
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	// Detach the page from the dial context; each call binds its own.
	page = page.Context(context.Background())

	if b.acceptLanguage != "" {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{"Accept-Language": b.acceptLanguage}),
		}).Call(page); err != nil {
			slog.Warn("failed to set extra headers", "error", err)
		}
	}

	return &rodPage{
		page:   page,
		router: setupHijack(page, b.blockedTypes),
	}, nil
}

// Close ends the browser session. A locally launched process is also killed
// and its user-data dir removed.
func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
	return err
}

// rodPage adapts *rod.Page to Page.
type rodPage struct {
	page   *rod.Page
	router *rod.HijackRouter
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	return p.page.Context(ctx).Navigate(url)
}

// Fill waits for selector to become visible, replaces its value with text.
func (p *rodPage) Fill(ctx context.Context, selector, text string, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := p.page.Context(tctx).Element(selector)
	if err != nil {
		return err
	}
	if err := el.WaitVisible(); err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(text)
}

func (p *rodPage) Press(ctx context.Context, key input.Key) error {
	return p.page.Context(ctx).KeyActions().Type(key).Do()
}

// WaitLoad blocks until the window load event, bounded by timeout.
func (p *rodPage) WaitLoad(ctx context.Context, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.page.Context(tctx).WaitLoad()
}

// InnerHTML waits up to timeout for selector and returns its innerHTML.
func (p *rodPage) InnerHTML(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := p.page.Context(tctx).Element(selector)
	if err != nil {
		return "", err
	}
	v, err := el.Property("innerHTML")
	if err != nil {
		return "", err
	}
	return v.Str(), nil
}

func (p *rodPage) Close() error {
	if p.router != nil {
		_ = p.router.Stop()
	}
	return p.page.Close()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
