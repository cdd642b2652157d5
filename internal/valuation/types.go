package valuation

import "strings"

// FuelType is the propulsion fuel recorded on the RC
type FuelType string

const (
	FuelPetrol   FuelType = "Petrol"
	FuelDiesel   FuelType = "Diesel"
	FuelCNG      FuelType = "CNG"
	FuelElectric FuelType = "Electric"
	FuelHybrid   FuelType = "Hybrid"
)

// ParseFuelType maps free-form RC values ("PETROL", "ev", "Battery") onto FuelType.
// Unknown values are returned title-cased so they still route to the ICE engine.
func ParseFuelType(s string) FuelType {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch v {
	case "PETROL":
		return FuelPetrol
	case "DIESEL":
		return FuelDiesel
	case "CNG", "PETROL/CNG":
		return FuelCNG
	case "ELECTRIC", "EV", "BATTERY", "ELECTRIC(BOV)":
		return FuelElectric
	case "HYBRID", "PETROL/HYBRID", "STRONG HYBRID":
		return FuelHybrid
	}
	if v == "" {
		return ""
	}
	return FuelType(strings.ToUpper(v[:1]) + strings.ToLower(v[1:]))
}

// IsElectric reports whether the fuel type routes to the EV engine
func (f FuelType) IsElectric() bool {
	return strings.EqualFold(string(f), string(FuelElectric))
}

// BodyType drives dealer margins, refurbishment cost and scrap value
type BodyType string

const (
	BodyHatchback BodyType = "Hatchback"
	BodySedan     BodyType = "Sedan"
	BodySUV       BodyType = "SUV"
	BodyLuxury    BodyType = "Luxury"
)

// ParseBodyType normalises a body type; anything unrecognised falls back to Hatchback.
func ParseBodyType(s string) BodyType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SEDAN":
		return BodySedan
	case "SUV", "MUV":
		return BodySUV
	case "LUXURY":
		return BodyLuxury
	default:
		return BodyHatchback
	}
}

// Chemistry is the EV battery cell chemistry
type Chemistry string

const (
	ChemistryNMC Chemistry = "NMC"
	ChemistryLFP Chemistry = "LFP"
)

// ParseChemistry defaults to NMC when the value is empty or unknown
func ParseChemistry(s string) Chemistry {
	if strings.EqualFold(strings.TrimSpace(s), string(ChemistryLFP)) {
		return ChemistryLFP
	}
	return ChemistryNMC
}

// Mode selects which date the vehicle is aged from
type Mode string

const (
	// ModeResale ages the vehicle from its registration date
	ModeResale Mode = "resale"
	// ModeInsurance ages the vehicle from its manufacturing date
	ModeInsurance Mode = "insurance"
)

// EngineKind names the sub-engine that produced a valuation
type EngineKind string

const (
	EngineICE EngineKind = "ICE"
	EngineEV  EngineKind = "EV"
)

// VehicleAttributes is the raw input record for one valuation
type VehicleAttributes struct {
	Make                  string   `json:"make"`
	Model                 string   `json:"model"`
	FuelType              FuelType `json:"fuel_type"`
	BodyType              BodyType `json:"body_type"`
	Color                 string   `json:"color"`
	OwnerCount            int      `json:"owner_count"`
	RegistrationDate      string   `json:"reg_date,omitempty"`
	ManufacturingDate     string   `json:"manufacturing_date,omitempty"`
	RTOCode               string   `json:"rto_code"`
	City                  string   `json:"city"`
	CurrentExShowroom     float64  `json:"current_ex_showroom"`
	HistoricalOnRoadPrice *float64 `json:"historical_onroad_price,omitempty"`
	MarketListingsMean    *float64 `json:"market_listings_mean,omitempty"`
	Odometer              *int     `json:"odometer,omitempty"`
	BatteryCapacityKWh    *float64 `json:"battery_capacity_kwh,omitempty"`
	BatteryChemistry      string   `json:"battery_chemistry,omitempty"`
	BenchmarkEVPrice      *float64 `json:"current_benchmark_ev_price,omitempty"`
	BenchmarkEVKWh        *float64 `json:"current_benchmark_ev_kwh,omitempty"`
}

// MakeModel is the "make model" string matched against lifecycle lists
func (a VehicleAttributes) MakeModel() string {
	return strings.TrimSpace(strings.TrimSpace(a.Make) + " " + strings.TrimSpace(a.Model))
}

// hasBatteryFields reports whether any EV-only field is populated
func (a VehicleAttributes) hasBatteryFields() bool {
	return a.BatteryCapacityKWh != nil || a.BatteryChemistry != "" || a.BenchmarkEVPrice != nil || a.BenchmarkEVKWh != nil
}

// DerivedMetrics is computed per request and never persisted on its own
type DerivedMetrics struct {
	AgeYears         float64
	AgeMonths        int
	Odometer         int
	OdometerEstimate bool
	AvgAnnualKm      float64
	Engine           EngineKind
}

// Metadata summarises the intermediate figures of a valuation
type Metadata struct {
	AgeYears                 float64 `json:"age_years"`
	AgeMonths                int     `json:"age_months"`
	EstimatedOdometer        int     `json:"estimated_odometer"`
	AvgAnnualRunning         int     `json:"avg_annual_running"`
	BaseDepreciationPercent  float64 `json:"base_depreciation_percent"`
	BookValue                int64   `json:"book_value"`
	RegionalAdjustmentFactor float64 `json:"regional_adjustment_factor"`
}

// DealerMeta records which margin and refurbishment cost were applied
type DealerMeta struct {
	MarginPct     float64 `json:"margin_pct"`
	Refurbishment float64 `json:"refurbishment"`
}

// EVDetail carries battery figures of an EV valuation for audit
type EVDetail struct {
	StateOfHealth       float64 `json:"battery_soh"`
	CostPerKWh          float64 `json:"cost_per_kwh"`
	BatteryRunningValue int64   `json:"battery_running_value"`
}

// Result is the output record of the orchestrator
type Result struct {
	FairMarketRetailValue int64      `json:"fair_market_retail_value"`
	DealerPurchasePrice   int64      `json:"dealer_purchase_price"`
	EngineUsed            EngineKind `json:"engine_used"`
	Policy                string     `json:"policy"`
	Mode                  Mode       `json:"mode"`
	Scrapped              bool       `json:"scrapped,omitempty"`
	Metadata              Metadata   `json:"metadata"`
	Dealer                DealerMeta `json:"dealer_meta"`
	EV                    *EVDetail  `json:"ev_detail,omitempty"`
	BreakdownLog          []string   `json:"breakdown_log"`
}
