package models

import "time"

// MarketSnapshot represents one observed market listings mean for a market segment
type MarketSnapshot struct {
	ID           int64     `json:"id"`
	CacheKey     string    `json:"cache_key"`
	ListingsMean float64   `json:"listings_mean"`
	Confidence   float64   `json:"confidence"`
	Source       string    `json:"source"`
	ObservedAt   time.Time `json:"observed_at"`
}

// AgeDays is the whole number of days since the snapshot was observed
func (m MarketSnapshot) AgeDays(now time.Time) int {
	if now.Before(m.ObservedAt) {
		return 0
	}
	return int(now.Sub(m.ObservedAt).Hours() / 24)
}
