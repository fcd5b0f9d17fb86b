package extractor

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/propscrape/models"
)

// CardError reports a result card that lacks a required element.
type CardError struct {
	Index   int    // position among the page's cards
	Missing string // "anchor", "address" or "title"
}

func (e *CardError) Error() string {
	return fmt.Sprintf("card %d: missing %s", e.Index, e.Missing)
}

// Unwrap exposes the card failure as a MALFORMED_CARD ScrapeError.
func (e *CardError) Unwrap() error {
	return models.NewScrapeError(models.ErrCodeMalformedCard, "result card is missing "+e.Missing, nil)
}

// Summary extracts a ListingSummary from a single card fragment.
// A missing anchor, address or heading is a *CardError with Index 0.
func (e *Extractor) Summary(cardHTML string) (models.ListingSummary, error) {
	doc, err := parse(cardHTML)
	if err != nil {
		return models.ListingSummary{}, models.NewScrapeError(models.ErrCodeMalformedCard, "unparsable card", err)
	}
	// Accept either the card element itself or its bare contents.
	card := doc.FindMatcher(e.rules.card).First()
	if card.Length() == 0 {
		card = doc.Selection
	}
	return e.summary(card, 0)
}

// Summaries extracts one summary per result card in document order.
// Malformed cards are reported in errs, in order, and produce no summary.
func (e *Extractor) Summaries(resultsHTML string) (summaries []models.ListingSummary, errs []error) {
	return e.SummariesUpTo(resultsHTML, 0)
}

// SummariesUpTo is Summaries but stops walking the cards once limit
// summaries are collected. Cards after that point are not inspected, so
// they never show up in errs. A limit of 0 walks every card.
func (e *Extractor) SummariesUpTo(resultsHTML string, limit int) (summaries []models.ListingSummary, errs []error) {
	doc, err := parse(resultsHTML)
	if err != nil {
		return nil, []error{models.NewScrapeError(models.ErrCodeMalformedCard, "unparsable results fragment", err)}
	}
	doc.FindMatcher(e.rules.card).EachWithBreak(func(i int, card *goquery.Selection) bool {
		s, err := e.summary(card, i)
		if err != nil {
			errs = append(errs, err)
			return true
		}
		summaries = append(summaries, s)
		return limit <= 0 || len(summaries) < limit
	})
	return summaries, errs
}

func (e *Extractor) summary(card *goquery.Selection, index int) (models.ListingSummary, error) {
	anchor := card.FindMatcher(e.rules.cardAnchor).First()
	href, ok := anchor.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return models.ListingSummary{}, &CardError{Index: index, Missing: "anchor"}
	}
	link, err := e.base.Parse(href)
	if err != nil {
		return models.ListingSummary{}, &CardError{Index: index, Missing: "anchor"}
	}

	address := card.FindMatcher(e.rules.cardAddress).First()
	if address.Length() == 0 {
		return models.ListingSummary{}, &CardError{Index: index, Missing: "address"}
	}
	title := card.FindMatcher(e.rules.cardTitle).First()
	if title.Length() == 0 {
		return models.ListingSummary{}, &CardError{Index: index, Missing: "title"}
	}

	return models.ListingSummary{
		Address: cleanText(address),
		Title:   cleanText(title),
		Link:    link.String(),
	}, nil
}
