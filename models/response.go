package models

// ListingsResponse is the response for POST /api/v1/listings.
type ListingsResponse struct {
	// Success indicates whether the run completed without errors.
	Success bool `json:"success"`

	// RunID identifies the pipeline run that produced Records.
	RunID string `json:"run_id,omitempty"`

	// Location echoes the searched location.
	Location string `json:"location"`

	// Count is len(Records).
	Count int `json:"count"`

	// Records holds one entry per processed listing, in result-page order.
	Records []PropertyRecord `json:"records"`

	// SkippedCards counts malformed result cards that were skipped.
	SkippedCards int `json:"skipped_cards,omitempty"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Timing provides duration breakdowns for the run.
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// SearchMs covers home page, search submit and results fragment.
	SearchMs int64 `json:"search_ms"`

	// DetailMs covers every detail page fetch and its extraction.
	DetailMs int64 `json:"detail_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string   `json:"status"` // "healthy" or "busy"
	Uptime  string   `json:"uptime"`
	Runs    RunStats `json:"runs"`
	Version string   `json:"version"`
}

// RunStats reports pipeline activity since startup.
type RunStats struct {
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Total     int64 `json:"total"`
	Failed    int64 `json:"failed"`
	Processed int64 `json:"processed_listings"`
}
