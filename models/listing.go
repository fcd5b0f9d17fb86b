package models

// Unknown is the sentinel for scalar detail fields whose source element is absent.
const Unknown = "Unknown"

// ListingSummary holds the fields taken from one card on the search results page.
type ListingSummary struct {
	Address string `json:"address"`
	Title   string `json:"title"`

	// Link is absolute: the site base URL resolved with the card's href.
	Link string `json:"link"`
}

// ListingDetail holds the fields taken from a listing's detail page.
//
// Scalar fields are "Unknown" when missing. Counts are kept as text because
// the site sometimes qualifies them.
type ListingDetail struct {
	Tenure    string `json:"tenure"`
	Price     string `json:"price"`
	Bedrooms  string `json:"bedrooms"`
	Bathrooms string `json:"bathrooms"`
	Reception string `json:"reception"`

	// Pictures is never nil so it always encodes as a JSON array.
	Pictures []string `json:"pictures"`

	// FloorPlan is nil when the page has no floor-plan thumbnail, and the
	// field is then omitted from the encoded record.
	FloorPlan *string `json:"floor_plan,omitempty"`
}

// UnknownDetail returns a ListingDetail with every field at its absence sentinel.
func UnknownDetail() ListingDetail {
	return ListingDetail{
		Tenure:    Unknown,
		Price:     Unknown,
		Bedrooms:  Unknown,
		Bathrooms: Unknown,
		Reception: Unknown,
		Pictures:  []string{},
	}
}

// PropertyRecord is the merged output for one processed listing, keyed by Link.
type PropertyRecord struct {
	ListingSummary
	ListingDetail
}

// NewPropertyRecord merges a summary with the detail fetched from its link.
func NewPropertyRecord(s ListingSummary, d ListingDetail) PropertyRecord {
	if d.Pictures == nil {
		d.Pictures = []string{}
	}
	return PropertyRecord{ListingSummary: s, ListingDetail: d}
}
