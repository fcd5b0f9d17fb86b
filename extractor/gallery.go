package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// galleryResolution marks the image variant kept from each picture.
const galleryResolution = "1024"

// Gallery returns the 1024px webp image URLs of the listing gallery in
// document order. A missing section or no matching source yields an empty
// slice, never an error.
func (e *Extractor) Gallery(fragment string) []string {
	doc, err := parse(fragment)
	if err != nil {
		return []string{}
	}
	return e.gallery(doc.Selection)
}

// FloorPlan returns the first srcset URL of the floor-plan thumbnail.
// ok is false when the page has no thumbnail or it carries no source.
func (e *Extractor) FloorPlan(fragment string) (src string, ok bool) {
	doc, err := parse(fragment)
	if err != nil {
		return "", false
	}
	return e.floorPlan(doc.Selection)
}

func (e *Extractor) gallery(root *goquery.Selection) []string {
	pictures := []string{}
	section := root.FindMatcher(e.rules.gallerySection).First()
	section.FindMatcher(e.rules.gallerySource).Each(func(_ int, source *goquery.Selection) {
		typ := source.AttrOr("type", "")
		if i := strings.LastIndexByte(typ, '/'); i >= 0 {
			typ = typ[i+1:]
		}
		if typ != "webp" {
			return
		}
		u := firstSrcsetURL(source.AttrOr("srcset", ""))
		if strings.Contains(u, galleryResolution) {
			pictures = append(pictures, u)
		}
	})
	return pictures
}

func (e *Extractor) floorPlan(root *goquery.Selection) (string, bool) {
	thumb := root.FindMatcher(e.rules.floorPlanThumb).First()
	if thumb.Length() == 0 {
		return "", false
	}
	source := thumb.FindMatcher(e.rules.floorPlanSrc).First()
	u := firstSrcsetURL(source.AttrOr("srcset", ""))
	if u == "" {
		return "", false
	}
	return u, true
}
