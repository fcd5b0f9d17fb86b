package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/propscrape/models"
)

func callTool(t *testing.T, apiURL string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = "search_listings"
	req.Params.Arguments = args

	res, err := handleSearchListings(apiURL, "k1")(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestSearchListings_ForwardsRequest(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/listings", r.URL.Path)
		assert.Equal(t, "k1", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		plan := "https://lc.example/plan.webp"
		rec := models.NewPropertyRecord(
			models.ListingSummary{Address: "1 High St, Oxford", Title: "3 bed semi", Link: "https://example.test/1"},
			models.ListingDetail{Tenure: "Freehold", Price: "450,000", Bedrooms: "3", Bathrooms: "2", Reception: "1", FloorPlan: &plan},
		)
		_ = json.NewEncoder(w).Encode(models.ListingsResponse{
			Success: true, Location: "Oxford", Count: 1, Records: []models.PropertyRecord{rec},
		})
	}))
	defer srv.Close()

	res := callTool(t, srv.URL, map[string]any{"location": "Oxford", "max_listings": float64(0)})
	assert.False(t, res.IsError)
	assert.Equal(t, "Oxford", got.Location)
	require.NotNil(t, got.MaxListings)
	assert.Equal(t, 0, *got.MaxListings)

	out := text(t, res)
	assert.Contains(t, out, "Listings: 1")
	assert.Contains(t, out, "3 bed semi")
	assert.Contains(t, out, "Price: 450,000")
	assert.Contains(t, out, "Floor plan: https://lc.example/plan.webp")
}

func TestSearchListings_OmittedLimitUsesServerDefault(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_ = json.NewEncoder(w).Encode(models.ListingsResponse{Success: true, Location: "Bath", Records: []models.PropertyRecord{}})
	}))
	defer srv.Close()

	res := callTool(t, srv.URL, map[string]any{"location": "Bath"})
	assert.False(t, res.IsError)
	assert.NotContains(t, raw, "max_listings")
}

func TestSearchListings_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGatewayTimeout)
		_ = json.NewEncoder(w).Encode(models.ListingsResponse{
			Error: &models.ErrorDetail{Code: models.ErrCodeLoadTimeout, Message: "search results did not finish loading"},
		})
	}))
	defer srv.Close()

	res := callTool(t, srv.URL, map[string]any{"location": "Oxford"})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "[LOAD_TIMEOUT]")
}

func TestSearchListings_MissingLocation(t *testing.T) {
	res := callTool(t, "http://127.0.0.1:0", map[string]any{})
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "location is required")
}
