package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/propscrape/models"
)

// searchRequest mirrors the listings API request model.
type searchRequest struct {
	Location    string `json:"location"`
	MaxListings *int   `json:"max_listings,omitempty"`
	MaxAge      int    `json:"max_age,omitempty"`
}

func main() {
	apiURL := os.Getenv("PROPSCRAPE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PROPSCRAPE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "PROPSCRAPE_API_KEY is required")
		os.Exit(1)
	}

	s := newServer(apiURL, apiKey)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(apiURL, apiKey string) *server.MCPServer {
	s := server.NewMCPServer(
		"propscrape",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	searchTool := mcp.NewTool("search_listings",
		mcp.WithDescription("Search a property portal for a location and return the listings found on the first results page: address, title, link, tenure, price, room counts, gallery pictures and floor plan. Drives a real browser, so a call takes tens of seconds."),
		mcp.WithString("location",
			mcp.Required(),
			mcp.Description("Town, county or postcode to search, e.g. 'Oxford'"),
		),
		mcp.WithNumber("max_listings",
			mcp.Description("How many listings to open for details (default: server setting, 0 = every card on the page, max: 100)"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Accept a cached result younger than this many milliseconds (default: 0, no cache)"),
		),
	)
	s.AddTool(searchTool, handleSearchListings(apiURL, apiKey))
	return s
}

func handleSearchListings(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		location, err := request.RequireString("location")
		if err != nil || strings.TrimSpace(location) == "" {
			return mcp.NewToolResultError("location is required"), nil
		}

		reqBody := searchRequest{
			Location: location,
			MaxAge:   int(request.GetFloat("max_age", 0)),
		}
		if n := request.GetFloat("max_listings", -1); n >= 0 {
			limit := int(n)
			reqBody.MaxListings = &limit
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/v1/listings", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-API-Key", apiKey)

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var listings models.ListingsResponse
		if err := json.Unmarshal(respBody, &listings); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !listings.Success {
			errMsg := fmt.Sprintf("search failed with status %d", resp.StatusCode)
			if listings.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", listings.Error.Code, listings.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatListings(&listings)), nil
	}
}

// formatListings renders records as a readable digest followed by the raw JSON.
func formatListings(resp *models.ListingsResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Location: %s\nListings: %d", resp.Location, resp.Count)
	if resp.CacheStatus != "" {
		fmt.Fprintf(&b, " (cache %s)", resp.CacheStatus)
	}
	b.WriteString("\n")

	for i, rec := range resp.Records {
		fmt.Fprintf(&b, "\n%d. %s\n   %s\n   %s\n", i+1, rec.Title, rec.Address, rec.Link)
		fmt.Fprintf(&b, "   Price: %s | Tenure: %s | Beds: %s | Baths: %s | Receptions: %s\n",
			rec.Price, rec.Tenure, rec.Bedrooms, rec.Bathrooms, rec.Reception)
		fmt.Fprintf(&b, "   Pictures: %d", len(rec.Pictures))
		if rec.FloorPlan != nil {
			fmt.Fprintf(&b, " | Floor plan: %s", *rec.FloorPlan)
		}
		b.WriteString("\n")
	}

	raw, err := json.MarshalIndent(resp.Records, "", "  ")
	if err == nil {
		b.WriteString("\n---\n")
		b.Write(raw)
	}
	return b.String()
}
