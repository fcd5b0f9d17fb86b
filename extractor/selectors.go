package extractor

import (
	"fmt"

	"github.com/andybalholm/cascadia"
)

// Rules is the set of CSS selectors the extractor applies.
// Centralising them keeps a site markup change to a one-line fix.
type Rules struct {
	// Search results page, relative to the results container.
	Card        string
	CardAnchor  string
	CardAddress string
	CardTitle   string

	// Listing detail page, relative to the detail container.
	GallerySection string
	GallerySource  string
	FloorPlanThumb string
	FloorPlanSrc   string
	DetailsRoot    string
	Tenure         string
	Price          string
	Label          string
}

// DefaultRules matches the listing markup served by zoopla.co.uk.
var DefaultRules = Rules{
	Card:        `div.dkr2t83`,
	CardAnchor:  `a[href]`,
	CardAddress: `address`,
	CardTitle:   `h2`,

	GallerySection: `section[aria-labelledby="listing-gallery-heading"]`,
	GallerySource:  `picture source`,
	FloorPlanThumb: `div[data-testid="floorplan-thumbnail-0"]`,
	FloorPlanSrc:   `picture source[srcset]`,
	DetailsRoot:    `div._14bi3x331`,
	Tenure:         `div.jc64990.jc64994._194zg6tb`,
	Price:          `p[data-testid="price"]`,
	Label:          `div.jc64990.jc64995._194zg6t8`,
}

// compiledRules mirrors Rules with every selector compiled once.
type compiledRules struct {
	card, cardAnchor, cardAddress, cardTitle cascadia.Selector

	gallerySection, gallerySource cascadia.Selector
	floorPlanThumb, floorPlanSrc  cascadia.Selector
	detailsRoot, tenure, price    cascadia.Selector
	label                         cascadia.Selector
}

// compile parses every rule and reports the first invalid one by name.
func (r Rules) compile() (*compiledRules, error) {
	c := &compiledRules{}
	fields := []struct {
		name string
		src  string
		dst  *cascadia.Selector
	}{
		{"Card", r.Card, &c.card},
		{"CardAnchor", r.CardAnchor, &c.cardAnchor},
		{"CardAddress", r.CardAddress, &c.cardAddress},
		{"CardTitle", r.CardTitle, &c.cardTitle},
		{"GallerySection", r.GallerySection, &c.gallerySection},
		{"GallerySource", r.GallerySource, &c.gallerySource},
		{"FloorPlanThumb", r.FloorPlanThumb, &c.floorPlanThumb},
		{"FloorPlanSrc", r.FloorPlanSrc, &c.floorPlanSrc},
		{"DetailsRoot", r.DetailsRoot, &c.detailsRoot},
		{"Tenure", r.Tenure, &c.tenure},
		{"Price", r.Price, &c.price},
		{"Label", r.Label, &c.label},
	}
	for _, f := range fields {
		if f.src == "" {
			return nil, fmt.Errorf("extractor: rule %s is empty", f.name)
		}
		sel, err := cascadia.Compile(f.src)
		if err != nil {
			return nil, fmt.Errorf("extractor: rule %s %q: %w", f.name, f.src, err)
		}
		*f.dst = sel
	}
	return c, nil
}
