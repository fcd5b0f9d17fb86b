package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/propscrape/models"
)

// countRule maps a label keyword to the pattern that captures its count.
type countRule struct {
	keyword string
	pattern *regexp.Regexp
	field   func(d *models.ListingDetail) *string
}

// countRules is ordered: a label is assigned to the first keyword it contains.
var countRules = []countRule{
	{"bed", regexp.MustCompile(`(\d+)\s+beds?\b`), func(d *models.ListingDetail) *string { return &d.Bedrooms }},
	{"bath", regexp.MustCompile(`(\d+)\s+baths?\b`), func(d *models.ListingDetail) *string { return &d.Bathrooms }},
	{"reception", regexp.MustCompile(`(\d+)\s+receptions?\b`), func(d *models.ListingDetail) *string { return &d.Reception }},
}

// currencySymbols are stripped from the front of a price.
var currencySymbols = []string{"£", "€", "$"}

// Details extracts tenure, price and room counts from a detail fragment.
// Pictures is empty and FloorPlan nil; use Detail for the full record.
func (e *Extractor) Details(fragment string) models.ListingDetail {
	doc, err := parse(fragment)
	if err != nil {
		return models.UnknownDetail()
	}
	return e.details(doc.Selection)
}

func (e *Extractor) details(root *goquery.Selection) models.ListingDetail {
	d := models.UnknownDetail()

	scope := root.FindMatcher(e.rules.detailsRoot).First()
	if scope.Length() == 0 {
		scope = root
	}

	if tenure := scope.FindMatcher(e.rules.tenure).First(); tenure.Length() > 0 {
		if v := cleanText(tenure); v != "" {
			d.Tenure = v
		}
	}
	if price := scope.FindMatcher(e.rules.price).First(); price.Length() > 0 {
		if v := stripCurrency(cleanText(price)); v != "" {
			d.Price = v
		}
	}

	seen := make([]bool, len(countRules))
	scope.FindMatcher(e.rules.label).Each(func(_ int, label *goquery.Selection) {
		text := strings.ToLower(cleanText(label))
		for i, rule := range countRules {
			if !strings.Contains(text, rule.keyword) {
				continue
			}
			if !seen[i] {
				if m := rule.pattern.FindStringSubmatch(text); m != nil {
					*rule.field(&d) = m[1]
					seen[i] = true
				}
			}
			// One label feeds at most one category.
			return
		}
	})

	return d
}

// stripCurrency removes one leading currency symbol.
func stripCurrency(price string) string {
	for _, sym := range currencySymbols {
		if rest, ok := strings.CutPrefix(price, sym); ok {
			return strings.TrimSpace(rest)
		}
	}
	return price
}
