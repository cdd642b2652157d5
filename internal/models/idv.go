package models

import "time"

// IDVRecord represents a persisted insurance declared value calculation
type IDVRecord struct {
	ID               int64     `json:"id"`
	UID              string    `json:"uid"`
	RCNumber         string    `json:"rc_number"`
	Policy           string    `json:"policy"`
	Status           string    `json:"status"`
	IDV              int64     `json:"idv"`
	ValidationStatus string    `json:"validation_status"`
	ConfidenceScore  float64   `json:"confidence_score"`
	ReviewNotified   bool      `json:"review_notified"`
	BreakdownLog     []string  `json:"breakdown_log"`
	CreatedAt        time.Time `json:"created_at"`
}
