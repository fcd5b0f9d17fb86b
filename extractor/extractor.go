// Package extractor turns rendered listing HTML into structured fields.
//
// Every function is pure: the same fragment always yields the same result,
// and nothing here touches the network or the browser.
package extractor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/propscrape/models"
	"golang.org/x/net/html"
)

// Extractor applies a compiled rule set. It is safe for concurrent use.
type Extractor struct {
	base  *url.URL
	rules *compiledRules
}

// New compiles rules and binds relative links to baseURL.
func New(baseURL string, rules Rules) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("extractor: base url %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("extractor: base url %q is not absolute", baseURL)
	}
	compiled, err := rules.compile()
	if err != nil {
		return nil, err
	}
	return &Extractor{base: base, rules: compiled}, nil
}

// Detail extracts the full ListingDetail (scalars, gallery, floor plan)
// from a listing-detail container fragment with a single parse.
func (e *Extractor) Detail(detailHTML string) models.ListingDetail {
	doc, err := parse(detailHTML)
	if err != nil {
		return models.UnknownDetail()
	}
	d := e.details(doc.Selection)
	d.Pictures = e.gallery(doc.Selection)
	if src, ok := e.floorPlan(doc.Selection); ok {
		d.FloorPlan = &src
	}
	return d
}

// parse builds a queryable document from a markup fragment.
func parse(fragment string) (*goquery.Document, error) {
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(root), nil
}

// cleanText returns the element text with runs of whitespace collapsed.
func cleanText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// firstSrcsetURL returns the first URL of a srcset value: the part before
// the first comma, then before the first whitespace.
func firstSrcsetURL(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
