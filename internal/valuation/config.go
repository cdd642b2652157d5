package valuation

import (
	"fmt"
	"strings"
)

// Breakpoint maps an age threshold in years to a cumulative depreciation fraction
type Breakpoint struct {
	AgeYears     float64 `mapstructure:"age_years" json:"age_years"`
	Depreciation float64 `mapstructure:"depreciation" json:"depreciation"`
}

// WeightTier is one row of the age-tiered market weight table.
// A vehicle falls in the first tier with age < MaxAgeYears (<= when Inclusive).
type WeightTier struct {
	MaxAgeYears float64 `mapstructure:"max_age_years" json:"max_age_years"`
	Inclusive   bool    `mapstructure:"inclusive" json:"inclusive"`
	Weight      float64 `mapstructure:"weight" json:"weight"`
}

// BlendParams configures the market convergence blender
type BlendParams struct {
	Tiers               []WeightTier `mapstructure:"tiers" json:"tiers"`
	DefaultWeight       float64      `mapstructure:"default_weight" json:"default_weight"`
	DivergenceThreshold float64      `mapstructure:"divergence_threshold" json:"divergence_threshold"`
	WeightDecrement     float64      `mapstructure:"weight_decrement" json:"weight_decrement"`
	MinWeight           float64      `mapstructure:"min_weight" json:"min_weight"`
}

// ICEParams holds the tunables of the ICE engine
type ICEParams struct {
	Grid                     []Breakpoint
	StrictGrid               bool
	FloorDepreciation        float64
	HistoricalInflationRate  float64
	HistoricalInflationCap   float64
	ExpectedAnnualKm         float64
	PenaltyPer1000KmOver     float64
	BonusPer1000KmUnder      float64
	DiscontinuedPenalty      float64
	NewGenPenalty            float64
	DiscontinuedModels       []string
	NewGenModels             []string
	NonPreferredColorPenalty float64
	PreferredColors          []string
	NegotiationBuffer        float64
	Blend                    BlendParams

	// LifecycleModelSubstring matches lifecycle lists inside the model name
	// instead of against the exact "make model" string.
	LifecycleModelSubstring bool
	// NewGenMinAgeYears gates the new-generation penalty to vehicles strictly older; 0 disables the gate
	NewGenMinAgeYears float64
	// CombinePenalties sums the lifecycle and colour penalties and applies them once
	CombinePenalties bool
	MileageStep      MileageStep
}

// MileageStep replaces the linear mileage adjustment with fixed steps added to the
// base depreciation. It is active when HighAnnualKm is positive.
type MileageStep struct {
	HighAnnualKm    float64
	LowAnnualKm     float64
	HighUsageAdd    float64
	LowUsageRelief  float64
	MaxDepreciation float64
}

func (s MileageStep) enabled() bool { return s.HighAnnualKm > 0 }

// RegionalParams holds the legislation and regional market rules
type RegionalParams struct {
	NCRCities             []string
	NCRRTOPrefixes        []string
	NCRDieselPanicAge     float64
	NCRDieselScrapAge     float64
	NCRDieselPanicPenalty float64
	ScrapValues           map[BodyType]float64
	SouthRTOPrefixes      []string
	SouthMultiplier       float64
	CoastalCities         []string
	CoastalMinAge         float64
	CoastalFactor         float64

	// NCRCityOnly ignores RTO prefixes when deciding whether a vehicle is in the NCR
	NCRCityOnly bool
	// NCRStrictAge applies the panic and scrap rules only strictly past their ages
	NCRStrictAge bool
	// ScrapHistoricalFraction, when positive, prices scrap as a fraction of the
	// historical price instead of the body-type table
	ScrapHistoricalFraction float64
}

func (r RegionalParams) beyond(age, limit float64) bool {
	if r.NCRStrictAge {
		return age > limit
	}
	return age >= limit
}

// EVParams holds the tunables of the EV engine
type EVParams struct {
	DegradationNMC          float64
	DegradationLFP          float64
	HighUsageThresholdKm    float64
	HighUsageRateIncrease   float64
	MinSoH                  float64
	MaxAgeForSoH            float64
	CostPerKWh              float64
	ChassisPremium          float64
	WarrantyAgeYears        float64
	WarrantyOdometerKm      int
	WarrantyReserveFraction float64
	RangeRatioThreshold     float64
	RangePenaltyScale       float64
	NMCPenalty              float64
	WearReserve             float64
	Blend                   BlendParams
}

// DealerParams holds dealer margins and refurbishment costs
type DealerParams struct {
	Margins      map[BodyType]float64
	RefurbICE    map[BodyType]float64
	RefurbEVFlat float64
}

// Config is the static, read-only valuation table. Build one with DefaultConfig or
// LegacyResaleConfig, adjust it, then Validate before handing it to NewEngine.
type Config struct {
	Preset            string
	MonthlyKmEstimate int
	ICE               ICEParams
	Regional          RegionalParams
	EV                EVParams
	Dealer            DealerParams
}

// DefaultConfig returns the dual-engine table
func DefaultConfig() Config {
	return Config{
		Preset:            PresetDualEngine,
		MonthlyKmEstimate: 1000,
		ICE: ICEParams{
			Grid: []Breakpoint{
				{0.5, 0.05}, {1, 0.10}, {2, 0.18}, {3, 0.25}, {4, 0.30},
				{5, 0.35}, {6, 0.40}, {7, 0.45}, {8, 0.50},
			},
			FloorDepreciation:       0.60,
			HistoricalInflationRate: 0.02,
			HistoricalInflationCap:  10,
			ExpectedAnnualKm:        12000,
			PenaltyPer1000KmOver:    0.006,
			BonusPer1000KmUnder:     0.004,
			DiscontinuedPenalty:     0.12,
			NewGenPenalty:           0.07,
			DiscontinuedModels:      []string{"Ford Ecosport", "Honda Civic", "VW Polo", "Maruti Alto 800", "Renault Duster"},
			NewGenModels:            []string{"Maruti Swift", "Hyundai Creta", "Tata Nexon", "Mahindra XUV300"},
			PreferredColors:         []string{"White", "Silver", "Grey", "Black"},
			NegotiationBuffer:       0.94,
			Blend: BlendParams{
				Tiers: []WeightTier{
					{MaxAgeYears: 3, Weight: 0.7},
					{MaxAgeYears: 6, Inclusive: true, Weight: 0.6},
				},
				DefaultWeight:       0.5,
				DivergenceThreshold: 0.35,
				WeightDecrement:     0.15,
				MinWeight:           0.3,
			},
		},
		Regional: RegionalParams{
			NCRCities:             []string{"Delhi", "Noida", "Gurgaon", "Gurugram", "Faridabad", "Ghaziabad"},
			NCRRTOPrefixes:        []string{"DL"},
			NCRDieselPanicAge:     8.0,
			NCRDieselScrapAge:     9.5,
			NCRDieselPanicPenalty: 0.25,
			ScrapValues: map[BodyType]float64{
				BodyHatchback: 18000, BodySedan: 30000, BodySUV: 45000, BodyLuxury: 60000,
			},
			SouthRTOPrefixes: []string{"KA", "TS", "TN", "KL", "AP"},
			SouthMultiplier:  1.08,
			CoastalCities:    []string{"Mumbai", "Chennai", "Kolkata", "Goa", "Visakhapatnam"},
			CoastalMinAge:    5,
			CoastalFactor:    1.0,
		},
		EV: EVParams{
			DegradationNMC:          0.025,
			DegradationLFP:          0.015,
			HighUsageThresholdKm:    20000,
			HighUsageRateIncrease:   0.01,
			MinSoH:                  0.55,
			MaxAgeForSoH:            20,
			CostPerKWh:              30000,
			ChassisPremium:          0.12,
			WarrantyAgeYears:        7,
			WarrantyOdometerKm:      140000,
			WarrantyReserveFraction: 0.30,
			RangeRatioThreshold:     0.85,
			RangePenaltyScale:       0.25,
			NMCPenalty:              0.03,
			WearReserve:             0.10,
			Blend: BlendParams{
				Tiers:               []WeightTier{{MaxAgeYears: 3, Weight: 0.6}},
				DefaultWeight:       0.5,
				DivergenceThreshold: 0.40,
				WeightDecrement:     0.2,
				MinWeight:           0.3,
			},
		},
		Dealer: DealerParams{
			Margins: map[BodyType]float64{
				BodyHatchback: 0.10, BodySedan: 0.12, BodySUV: 0.12, BodyLuxury: 0.15,
			},
			RefurbICE: map[BodyType]float64{
				BodyHatchback: 8000, BodySedan: 15000, BodySUV: 25000, BodyLuxury: 60000,
			},
			RefurbEVFlat: 10000,
		},
	}
}

// LegacyResaleConfig keeps the constants of the older single-engine resale calculator.
// They deliberately differ from DefaultConfig and are not reconciled here.
func LegacyResaleConfig() Config {
	cfg := DefaultConfig()
	cfg.Preset = PresetLegacyResale
	cfg.ICE.StrictGrid = true
	cfg.ICE.HistoricalInflationRate = 0.03
	// uncapped in practice: the estimate reaches zero at 33 years
	cfg.ICE.HistoricalInflationCap = 1 / 0.03
	cfg.ICE.NegotiationBuffer = 0.93
	cfg.ICE.NonPreferredColorPenalty = 0.02
	cfg.ICE.DiscontinuedPenalty = 0.15
	cfg.ICE.NewGenPenalty = 0.10
	cfg.ICE.DiscontinuedModels = []string{
		"Ecosport", "Figo", "Aspire", "Civic", "CR-V", "Yaris",
		"Etios", "Corolla Altis", "Punto", "Linea", "Aveo", "Beat", "Sail",
	}
	cfg.ICE.NewGenModels = []string{
		"Swift", "Dzire", "Baleno", "Creta", "Venue", "i20", "Verna",
		"Seltos", "Sonet", "City", "Amaze", "WR-V", "Brezza", "Ertiga",
	}
	cfg.ICE.LifecycleModelSubstring = true
	cfg.ICE.NewGenMinAgeYears = 3
	cfg.ICE.CombinePenalties = true
	cfg.ICE.MileageStep = MileageStep{
		HighAnnualKm:    15000,
		LowAnnualKm:     6000,
		HighUsageAdd:    0.05,
		LowUsageRelief:  0.03,
		MaxDepreciation: 0.75,
	}
	cfg.ICE.Blend = BlendParams{
		Tiers:         []WeightTier{{MaxAgeYears: 5, Weight: 0.7}},
		DefaultWeight: 0.5,
		MinWeight:     0.5,
	}
	cfg.Regional.NCRCityOnly = true
	cfg.Regional.NCRStrictAge = true
	cfg.Regional.ScrapHistoricalFraction = 0.02
	cfg.Regional.SouthMultiplier = 1.12
	cfg.Regional.CoastalFactor = 0.96
	cfg.Dealer.RefurbICE = map[BodyType]float64{
		BodyHatchback: 8000, BodySedan: 15000, BodySUV: 15000, BodyLuxury: 25000,
	}
	return cfg
}

const (
	PresetDualEngine   = "dual-engine"
	PresetLegacyResale = "legacy-resale"
)

// ConfigForPreset resolves a preset name; an empty name means the dual-engine table
func ConfigForPreset(name string) (Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PresetDualEngine:
		return DefaultConfig(), nil
	case PresetLegacyResale:
		return LegacyResaleConfig(), nil
	}
	return Config{}, &ConfigurationError{Field: "preset", Reason: fmt.Sprintf("unknown preset %q", name)}
}

// Validate checks the table once at start-up
func (c Config) Validate() error {
	if len(c.ICE.Grid) == 0 {
		return &ConfigurationError{Field: "ice.grid", Reason: "depreciation grid is empty"}
	}
	for i, bp := range c.ICE.Grid {
		if bp.AgeYears < 0 || bp.Depreciation < 0 || bp.Depreciation >= 1 {
			return &ConfigurationError{Field: fmt.Sprintf("ice.grid[%d]", i), Reason: "age must be >= 0 and depreciation in [0,1)"}
		}
	}
	if c.ICE.FloorDepreciation < 0 || c.ICE.FloorDepreciation >= 1 {
		return &ConfigurationError{Field: "ice.floor_depreciation", Reason: "must be in [0,1)"}
	}
	if c.MonthlyKmEstimate <= 0 {
		return &ConfigurationError{Field: "monthly_km_estimate", Reason: "must be positive"}
	}
	if c.ICE.ExpectedAnnualKm <= 0 {
		return &ConfigurationError{Field: "ice.expected_annual_km", Reason: "must be positive"}
	}
	if c.ICE.NegotiationBuffer <= 0 || c.ICE.NegotiationBuffer > 1 {
		return &ConfigurationError{Field: "ice.negotiation_buffer", Reason: "must be in (0,1]"}
	}
	if err := c.ICE.Blend.validate("ice.blend"); err != nil {
		return err
	}
	if err := c.EV.Blend.validate("ev.blend"); err != nil {
		return err
	}
	if s := c.ICE.MileageStep; s.enabled() {
		if s.LowAnnualKm >= s.HighAnnualKm {
			return &ConfigurationError{Field: "ice.mileage_step", Reason: "low_annual_km must be below high_annual_km"}
		}
		if s.MaxDepreciation <= 0 || s.MaxDepreciation >= 1 {
			return &ConfigurationError{Field: "ice.mileage_step.max_depreciation", Reason: "must be in (0,1)"}
		}
	}
	if f := c.Regional.ScrapHistoricalFraction; f < 0 || f >= 1 {
		return &ConfigurationError{Field: "regional.scrap_historical_fraction", Reason: "must be in [0,1)"}
	}
	if c.Regional.NCRDieselPanicAge > c.Regional.NCRDieselScrapAge {
		return &ConfigurationError{Field: "regional.ncr_diesel_panic_age_years", Reason: "must not exceed the scrap age"}
	}
	if c.EV.MinSoH <= 0 || c.EV.MinSoH > 1 {
		return &ConfigurationError{Field: "ev.min_soh", Reason: "must be in (0,1]"}
	}
	if c.EV.CostPerKWh <= 0 {
		return &ConfigurationError{Field: "ev.cost_per_kwh", Reason: "must be positive"}
	}
	if _, ok := c.Dealer.Margins[BodyHatchback]; !ok {
		return &ConfigurationError{Field: "dealer.margins", Reason: "Hatchback tier is required as the fallback"}
	}
	for body, m := range c.Dealer.Margins {
		if m < 0 || m >= 1 {
			return &ConfigurationError{Field: "dealer.margins." + string(body), Reason: "must be in [0,1)"}
		}
	}
	for body, r := range c.Dealer.RefurbICE {
		if r < 0 {
			return &ConfigurationError{Field: "dealer.refurb_ice." + string(body), Reason: "must not be negative"}
		}
	}
	if c.Dealer.RefurbEVFlat < 0 {
		return &ConfigurationError{Field: "dealer.refurb_ev_flat", Reason: "must not be negative"}
	}
	if _, ok := c.Regional.ScrapValues[BodyHatchback]; !ok {
		return &ConfigurationError{Field: "regional.scrap_values", Reason: "Hatchback tier is required as the fallback"}
	}
	return nil
}

func (b BlendParams) validate(field string) error {
	weights := []float64{b.DefaultWeight}
	for _, t := range b.Tiers {
		weights = append(weights, t.Weight)
	}
	for _, w := range weights {
		if w < 0 || w > 1 {
			return &ConfigurationError{Field: field, Reason: "market weights must be in [0,1]"}
		}
		if b.DivergenceThreshold > 0 && w <= b.MinWeight {
			return &ConfigurationError{Field: field, Reason: "tier weights must exceed min_weight when divergence handling is on"}
		}
	}
	if b.DivergenceThreshold > 0 && b.WeightDecrement <= 0 {
		return &ConfigurationError{Field: field, Reason: "weight_decrement must be positive when divergence handling is on"}
	}
	return nil
}

// clone copies the slices and maps so a Config handed to an engine cannot be mutated by the caller
func (c Config) clone() Config {
	out := c
	out.ICE.Grid = sortedGrid(c.ICE.Grid)
	out.ICE.DiscontinuedModels = append([]string(nil), c.ICE.DiscontinuedModels...)
	out.ICE.NewGenModels = append([]string(nil), c.ICE.NewGenModels...)
	out.ICE.PreferredColors = append([]string(nil), c.ICE.PreferredColors...)
	out.ICE.Blend.Tiers = append([]WeightTier(nil), c.ICE.Blend.Tiers...)
	out.EV.Blend.Tiers = append([]WeightTier(nil), c.EV.Blend.Tiers...)
	out.Regional.NCRCities = append([]string(nil), c.Regional.NCRCities...)
	out.Regional.NCRRTOPrefixes = append([]string(nil), c.Regional.NCRRTOPrefixes...)
	out.Regional.SouthRTOPrefixes = append([]string(nil), c.Regional.SouthRTOPrefixes...)
	out.Regional.CoastalCities = append([]string(nil), c.Regional.CoastalCities...)
	out.Regional.ScrapValues = copyBodyMap(c.Regional.ScrapValues)
	out.Dealer.Margins = copyBodyMap(c.Dealer.Margins)
	out.Dealer.RefurbICE = copyBodyMap(c.Dealer.RefurbICE)
	return out
}

func copyBodyMap(m map[BodyType]float64) map[BodyType]float64 {
	out := make(map[BodyType]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func bodyLookup(m map[BodyType]float64, body BodyType) float64 {
	if v, ok := m[body]; ok {
		return v
	}
	return m[BodyHatchback]
}
