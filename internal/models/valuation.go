package models

import "time"

// Market data sources recorded with a valuation
const (
	MarketSourceRequest  = "request"
	MarketSourceSnapshot = "snapshot"
	MarketSourceCache    = "cache"
	MarketSourceOracle   = "oracle"
	MarketSourceNone     = "none"
)

// ValuationRecord represents a persisted resale valuation
type ValuationRecord struct {
	ID                      int64     `json:"id"`
	UID                     string    `json:"uid"`
	RCNumber                string    `json:"rc_number,omitempty"`
	Make                    string    `json:"make"`
	Model                   string    `json:"model"`
	ManufacturingYear       int       `json:"manufacturing_year,omitempty"`
	FuelType                string    `json:"fuel_type"`
	City                    string    `json:"city"`
	OwnerCount              int       `json:"owner_count"`
	EngineUsed              string    `json:"engine_used"`
	Policy                  string    `json:"policy"`
	Mode                    string    `json:"mode"`
	FairMarketRetailValue   int64     `json:"fair_market_retail_value"`
	DealerPurchasePrice     int64     `json:"dealer_purchase_price"`
	CurrentExShowroom       float64   `json:"current_ex_showroom"`
	EstimatedOdometer       int       `json:"estimated_odometer"`
	BaseDepreciationPercent float64   `json:"base_depreciation_percent"`
	BookValue               int64     `json:"book_value"`
	MarketListingsMean      *float64  `json:"market_listings_mean,omitempty"`
	MarketSource            string    `json:"market_source"`
	OracleConfidence        *float64  `json:"oracle_confidence,omitempty"`
	BreakdownLog            []string  `json:"breakdown_log"`
	CreatedAt               time.Time `json:"created_at"`
}

// SimilarVehicle is a past valuation of a comparable vehicle
type SimilarVehicle struct {
	RCNumber              string `json:"rc_number"`
	Model                 string `json:"model"`
	ManufacturingYear     int    `json:"manufacturing_year"`
	FuelType              string `json:"fuel_type"`
	FairMarketRetailValue int64  `json:"fair_market_retail_value"`
	DealerPurchasePrice   int64  `json:"dealer_purchase_price"`
	RegisteredAt          string `json:"registered_at"`
}
