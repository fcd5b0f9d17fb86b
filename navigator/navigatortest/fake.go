// Package navigatortest provides an in-memory Browser and Page for tests.
package navigatortest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod/lib/input"
	"github.com/use-agent/propscrape/navigator"
)

// Page serves canned inner HTML per URL and selector.
//
// Navigate moves to a URL; pressing Enter moves to ResultsURL. A selector
// without content behaves like rod waiting on an absent element: the call
// ends with context.DeadlineExceeded.
type Page struct {
	mu sync.Mutex

	// Content maps url -> selector -> innerHTML.
	Content map[string]map[string]string

	// ResultsURL is where the page lands after Enter.
	ResultsURL string

	// FillErrs are returned by successive Fill calls; later calls succeed.
	FillErrs []error

	// LoadErrs maps a url to the error WaitLoad returns while on it.
	LoadErrs map[string]error

	// NavigateErrs maps a url to the error Navigate returns for it.
	NavigateErrs map[string]error

	current string
	filled  string
	calls   []string
	closed  bool
}

// NewPage returns an empty fake page.
func NewPage(resultsURL string) *Page {
	return &Page{
		Content:      make(map[string]map[string]string),
		ResultsURL:   resultsURL,
		LoadErrs:     make(map[string]error),
		NavigateErrs: make(map[string]error),
	}
}

// Set registers content for selector on url.
func (p *Page) Set(url, selector, html string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Content[url] == nil {
		p.Content[url] = make(map[string]string)
	}
	p.Content[url][selector] = html
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "navigate "+url)
	if err := p.NavigateErrs[url]; err != nil {
		return err
	}
	p.current = url
	return nil
}

func (p *Page) Fill(_ context.Context, selector, text string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, fmt.Sprintf("fill %s=%s", selector, text))
	if len(p.FillErrs) > 0 {
		err := p.FillErrs[0]
		p.FillErrs = p.FillErrs[1:]
		if err != nil {
			return err
		}
	}
	p.filled = text
	return nil
}

func (p *Page) Press(_ context.Context, key input.Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "press")
	if key == input.Enter {
		p.current = p.ResultsURL
	}
	return nil
}

func (p *Page) WaitLoad(_ context.Context, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "wait "+p.current)
	return p.LoadErrs[p.current]
}

func (p *Page) InnerHTML(_ context.Context, selector string, _ time.Duration) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "read "+selector)
	html, ok := p.Content[p.current][selector]
	if !ok {
		return "", context.DeadlineExceeded
	}
	return html, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Calls returns the recorded operations in order.
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Filled returns the last text successfully filled.
func (p *Page) Filled() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filled
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Browser hands out one Page and counts sessions.
type Browser struct {
	mu sync.Mutex

	Page       *Page
	DialErr    error
	NewPageErr error

	dials  int
	closes int
}

// Dial is a navigator.Dialer.
func (b *Browser) Dial(_ context.Context) (navigator.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.DialErr != nil {
		return nil, b.DialErr
	}
	b.dials++
	return b, nil
}

func (b *Browser) NewPage(_ context.Context) (navigator.Page, error) {
	if b.NewPageErr != nil {
		return nil, b.NewPageErr
	}
	return b.Page, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	return nil
}

// Sessions returns how many sessions were opened and closed.
func (b *Browser) Sessions() (opened, closed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials, b.closes
}
