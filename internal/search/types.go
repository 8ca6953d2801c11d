package search

import "github.com/mschlosser22/travel-bids-sub001/internal/models"

// Fanout is the union of successful provider results.
type Fanout struct {
	Results []models.RawHotelResult
	Stats   FanoutStats
}

type FanoutStats struct {
	ProvidersTotal     int      `json:"providers_total"`
	ProvidersSucceeded int      `json:"providers_succeeded"`
	ProvidersFailed    int      `json:"providers_failed"`
	Failed             []string `json:"failed_providers,omitempty"`
}

// Result is the outcome of a full search: merged listings and counters.
type Result struct {
	Stats struct {
		FanoutStats
		RawResults int   `json:"raw_results"`
		Matched    int   `json:"matched"`
		Listed     int   `json:"listed"`
		DurationMs int64 `json:"duration_ms"`
	} `json:"stats"`
	Hotels []models.UnifiedHotelListing `json:"hotels"`
}
