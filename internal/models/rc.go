package models

import (
	"encoding/json"
	"time"
)

// RCDetails represents a registration certificate record fetched from the RC registry
type RCDetails struct {
	ID                int64           `json:"id"`
	RCNumber          string          `json:"rc_number"`
	OwnerName         string          `json:"owner_name"`
	MakerDescription  string          `json:"maker_description"`
	Make              string          `json:"make"`
	MakerModel        string          `json:"maker_model"`
	RegistrationDate  string          `json:"registration_date"`
	ManufacturingDate string          `json:"manufacturing_date"`
	FuelType          string          `json:"fuel_type"`
	Color             string          `json:"color"`
	BodyType          string          `json:"body_type"`
	CubicCapacity     string          `json:"cubic_capacity"`
	NormsType         string          `json:"norms_type"`
	RegisteredAt      string          `json:"registered_at"`
	City              string          `json:"city"`
	RTOCode           string          `json:"rto_code"`
	VehicleCategory   string          `json:"vehicle_category"`
	OwnerCount        int             `json:"owner_count"`
	Financed          bool            `json:"financed"`
	InsuranceUpto     string          `json:"insurance_upto"`
	RawData           json.RawMessage `json:"raw_data,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
