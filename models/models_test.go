package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	base := NewScrapeError(ErrCodeLoadTimeout, "slow", errors.New("deadline"))
	assert.Equal(t, ErrCodeLoadTimeout, CodeOf(base))
	assert.Equal(t, ErrCodeLoadTimeout, CodeOf(fmt.Errorf("run: %w", base)))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, "LOAD_TIMEOUT: slow: deadline", base.Error())
}

func TestNewPropertyRecord_Encoding(t *testing.T) {
	rec := NewPropertyRecord(
		ListingSummary{Address: "1 High St", Title: "Flat", Link: "https://example.test/1"},
		ListingDetail{Tenure: Unknown, Price: "300,000", Bedrooms: "2", Bathrooms: Unknown, Reception: Unknown},
	)
	require.NotNil(t, rec.Pictures)

	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"address": "1 High St", "title": "Flat", "link": "https://example.test/1",
		"tenure": "Unknown", "price": "300,000", "bedrooms": "2",
		"bathrooms": "Unknown", "reception": "Unknown", "pictures": []
	}`, string(raw))

	plan := "https://lc.example/plan.webp"
	rec.FloorPlan = &plan
	raw, err = json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"floor_plan":"https://lc.example/plan.webp"`)
}

func TestSearchRequest_Defaults(t *testing.T) {
	req := SearchRequest{Location: "Oxford"}
	assert.Equal(t, 0, req.Limit())
	req.Defaults(1)
	assert.Equal(t, 1, req.Limit())

	zero := 0
	req = SearchRequest{Location: "Oxford", MaxListings: &zero}
	req.Defaults(5)
	assert.Equal(t, 0, req.Limit(), "explicit zero is kept")
}
