package models

// SearchRequest is the payload for POST /api/v1/listings and the input of a
// single pipeline run.
type SearchRequest struct {
	// Location is the free-text search location (town, county, postcode). Required.
	Location string `json:"location" binding:"required"`

	// MaxListings caps how many cards from the first result page get their
	// detail page fetched. 0 means every card on the page.
	// Default: the configured PROPSCRAPE_MAX_LISTINGS (1).
	MaxListings *int `json:"max_listings,omitempty" binding:"omitempty,min=0,max=100"`

	// MaxAge enables the response cache: a cached run younger than MaxAge
	// milliseconds is returned instead of driving the browser. 0 disables it.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`

	// WebhookURL receives a listings.completed event when the run succeeds.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// Defaults applies default values to unset fields.
func (r *SearchRequest) Defaults(maxListings int) {
	if r.MaxListings == nil {
		n := maxListings
		r.MaxListings = &n
	}
}

// Limit returns the effective max-listings value (0 = unlimited).
func (r *SearchRequest) Limit() int {
	if r.MaxListings == nil {
		return 0
	}
	return *r.MaxListings
}
