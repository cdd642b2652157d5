package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlender_DivergenceReducesWeight(t *testing.T) {
	for _, p := range []BlendParams{DefaultConfig().ICE.Blend, DefaultConfig().EV.Blend} {
		b := NewBlender(p)
		for _, age := range []float64{0, 2.5, 3, 5.9, 6, 12} {
			near := b.Blend(100000, 105000, age)
			far := b.Blend(100000, 100000*(1+p.DivergenceThreshold+0.001), age)
			wild := b.Blend(100000, 900000, age)

			assert.False(t, near.WeightReduced)
			assert.Equal(t, b.BaseWeight(age), near.MarketWeight)
			assert.True(t, far.WeightReduced, "age %v", age)
			assert.Less(t, far.MarketWeight, far.BaseWeight)
			assert.Less(t, wild.MarketWeight, wild.BaseWeight)
			assert.GreaterOrEqual(t, wild.MarketWeight, p.MinWeight)
		}
	}
}

func TestBlender_NoMarketPassesThrough(t *testing.T) {
	b := NewBlender(DefaultConfig().ICE.Blend)
	out := b.Blend(250000, 0, 4)
	assert.False(t, out.MarketUsed)
	assert.Equal(t, 250000.0, out.Value)
}

func TestBlender_TierBoundaries(t *testing.T) {
	b := NewBlender(DefaultConfig().ICE.Blend)
	assert.Equal(t, 0.7, b.BaseWeight(2.99))
	assert.Equal(t, 0.6, b.BaseWeight(3))
	assert.Equal(t, 0.6, b.BaseWeight(6))
	assert.Equal(t, 0.5, b.BaseWeight(6.01))
}

func TestGridPolicy_BaseDepreciation(t *testing.T) {
	dual := NewGridPolicy(PresetDualEngine, DefaultConfig().ICE)
	legacy := NewGridPolicy(PresetLegacyResale, LegacyResaleConfig().ICE)

	tests := []struct {
		months int
		dual   float64
		legacy float64
	}{
		{0, 0.05, 0.05},
		{6, 0.05, 0.10},
		{12, 0.10, 0.18},
		{30, 0.25, 0.25},
		{60, 0.35, 0.40},
		{96, 0.50, 0.60},
		{97, 0.60, 0.60},
		{400, 0.60, 0.60},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.dual, dual.BaseDepreciation(tt.months), "dual %d months", tt.months)
		assert.Equal(t, tt.legacy, legacy.BaseDepreciation(tt.months), "legacy %d months", tt.months)
	}
}

func TestYearBucketIDVPolicy(t *testing.T) {
	fourW := NewYearBucketIDVPolicy(Class4W)
	twoW := NewYearBucketIDVPolicy(Class2W)

	assert.Equal(t, "year-bucket-4w", fourW.Name())
	assert.Equal(t, 0.05, fourW.BaseDepreciation(5))
	assert.Equal(t, 0.30, fourW.BaseDepreciation(24))
	assert.Equal(t, 0.55, fourW.BaseDepreciation(70))
	assert.Equal(t, 0.65, fourW.BaseDepreciation(100))
	assert.Equal(t, 0.70, fourW.BaseDepreciation(120))

	assert.Equal(t, 0.60, twoW.BaseDepreciation(70))
	assert.Equal(t, 0.65, twoW.BaseDepreciation(100))

	out := fourW.Blend(100, 500, 3)
	assert.Equal(t, 100.0, out.Value)
}

func TestMonthlyLinearIDVPolicy(t *testing.T) {
	p := NewMonthlyLinearIDVPolicy()
	assert.InDelta(t, 0.096, p.BaseDepreciation(12), 1e-12)
	assert.Equal(t, 1.0, p.BaseDepreciation(500))
	assert.Equal(t, 0.0, p.BaseDepreciation(-3))
}

func TestIDVPolicyByName(t *testing.T) {
	p, err := IDVPolicyByName("", Class4W)
	require.NoError(t, err)
	assert.Equal(t, "year-bucket-4w", p.Name())

	p, err = IDVPolicyByName("Monthly-Linear", Class2W)
	require.NoError(t, err)
	assert.Equal(t, PolicyMonthlyLinear, p.Name())

	_, err = IDVPolicyByName("gut-feel", Class4W)
	assert.ErrorIs(t, err, ErrMissingRequiredInput)
}

func TestClassFromCategory(t *testing.T) {
	assert.Equal(t, Class2W, ClassFromCategory("Scooter(2WN)"))
	assert.Equal(t, Class2W, ClassFromCategory("M-Cycle/Scooter"))
	assert.Equal(t, Class4W, ClassFromCategory("Motor Car(LMV)"))
	assert.Equal(t, Class4W, ClassFromCategory(""))
}

func TestStateOfHealth_Clamped(t *testing.T) {
	ev := NewEVEngine(DefaultConfig())

	for _, chem := range []Chemistry{ChemistryNMC, ChemistryLFP} {
		for _, age := range []float64{-5, 0, 3, 15, 40, 1000} {
			for _, km := range []float64{0, 15000, 80000, 1e7} {
				soh, _ := ev.StateOfHealth(chem, age, km)
				assert.GreaterOrEqual(t, soh, 0.55)
				assert.LessOrEqual(t, soh, 1.0)
			}
		}
	}

	soh, high := ev.StateOfHealth(ChemistryNMC, 4, 25000)
	assert.True(t, high)
	assert.InDelta(t, 0.86, soh, 1e-9)
}

func TestDealerOffer(t *testing.T) {
	p := DefaultConfig().Dealer

	offer, meta := DealerOffer(p, 500000, BodySUV, EngineICE)
	assert.InDelta(t, 415000, offer, 1e-6)
	assert.Equal(t, 0.12, meta.MarginPct)
	assert.Equal(t, 25000.0, meta.Refurbishment)

	offer, meta = DealerOffer(p, 500000, BodySUV, EngineEV)
	assert.InDelta(t, 430000, offer, 1e-6)
	assert.Equal(t, 10000.0, meta.Refurbishment)

	offer, _ = DealerOffer(p, 5000, BodyLuxury, EngineICE)
	assert.Equal(t, 0.0, offer)

	offer, meta = DealerOffer(p, 100000, BodyType("Pickup"), EngineICE)
	assert.Equal(t, 0.10, meta.MarginPct)
	assert.InDelta(t, 82000, offer, 1e-6)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	require.NoError(t, LegacyResaleConfig().Validate())

	tests := []struct {
		name  string
		mut   func(*Config)
		field string
	}{
		{"empty grid", func(c *Config) { c.ICE.Grid = nil }, "ice.grid"},
		{"floor out of range", func(c *Config) { c.ICE.FloorDepreciation = 1.2 }, "ice.floor_depreciation"},
		{"panic after scrap", func(c *Config) { c.Regional.NCRDieselPanicAge = 11 }, "regional.ncr_diesel_panic_age_years"},
		{"no hatchback margin", func(c *Config) { delete(c.Dealer.Margins, BodyHatchback) }, "dealer.margins"},
		{"min weight above tier", func(c *Config) { c.EV.Blend.MinWeight = 0.7 }, "ev.blend"},
		{"zero cost per kwh", func(c *Config) { c.EV.CostPerKWh = 0 }, "ev.cost_per_kwh"},
		{"mileage step bands crossed", func(c *Config) {
			c.ICE.MileageStep = MileageStep{HighAnnualKm: 6000, LowAnnualKm: 15000, MaxDepreciation: 0.75}
		}, "ice.mileage_step"},
		{"mileage step cap", func(c *Config) {
			c.ICE.MileageStep = MileageStep{HighAnnualKm: 15000, LowAnnualKm: 6000, MaxDepreciation: 1}
		}, "ice.mileage_step.max_depreciation"},
		{"scrap fraction", func(c *Config) { c.Regional.ScrapHistoricalFraction = 1.5 }, "regional.scrap_historical_fraction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mut(&cfg)
			err := cfg.Validate()
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestConfigForPreset(t *testing.T) {
	cfg, err := ConfigForPreset("LEGACY-RESALE")
	require.NoError(t, err)
	assert.Equal(t, PresetLegacyResale, cfg.Preset)

	_, err = ConfigForPreset("mystery")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNormalizer(t *testing.T) {
	n := NewNormalizer(DefaultConfig())
	var log auditLog

	m, err := n.Normalize(VehicleAttributes{RegistrationDate: "15/04/2024", FuelType: FuelElectric, Odometer: ptr(22000)}, ModeResale, frozenNow, &log)
	require.NoError(t, err)
	assert.Equal(t, 30, m.AgeMonths)
	assert.Equal(t, EngineEV, m.Engine)
	assert.Equal(t, 22000, m.Odometer)
	assert.False(t, m.OdometerEstimate)
	assert.Equal(t, 8800.0, m.AvgAnnualKm)

	log = nil
	m, err = n.Normalize(VehicleAttributes{RegistrationDate: "2026-12-01"}, ModeResale, frozenNow, &log)
	require.NoError(t, err)
	assert.Equal(t, 0, m.AgeMonths)
	assert.True(t, logContains(log, "in the future"))

	log = nil
	m, err = n.Normalize(VehicleAttributes{RegistrationDate: "2026-04-15"}, ModeResale, frozenNow, &log)
	require.NoError(t, err)
	assert.Equal(t, 6000, m.Odometer)
	assert.True(t, m.OdometerEstimate)
	// age floor of one year for the running rate
	assert.Equal(t, 6000.0, m.AvgAnnualKm)

	_, err = n.Normalize(VehicleAttributes{}, Mode("lease"), frozenNow, &log)
	assert.ErrorIs(t, err, ErrMissingRequiredInput)
}

func TestParseDateAndMonths(t *testing.T) {
	for _, s := range []string{"2020-01-20", "2020-01", "20-01-2020", "20/01/2020", "2020/01/20"} {
		_, err := ParseDate(s)
		assert.NoError(t, err, s)
	}

	_, err := ParseDate("")
	assert.ErrorIs(t, err, ErrInvalidDate)
	_, err = ParseDate("Jan 2020")
	assert.ErrorIs(t, err, ErrInvalidDate)

	from := time.Date(2020, 1, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, MonthsBetween(from, time.Date(2020, 3, 19, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, MonthsBetween(from, time.Date(2020, 3, 20, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, MonthsBetween(from, time.Date(2019, 3, 20, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 36000, EstimateOdometer(36, 1000))
	assert.Equal(t, 0, EstimateOdometer(-1, 1000))
}

func TestParsers(t *testing.T) {
	assert.Equal(t, FuelElectric, ParseFuelType("ev"))
	assert.Equal(t, FuelDiesel, ParseFuelType(" DIESEL "))
	assert.Equal(t, FuelType("Lpg"), ParseFuelType("LPG"))
	assert.Equal(t, BodySUV, ParseBodyType("muv"))
	assert.Equal(t, BodyHatchback, ParseBodyType("tractor"))
	assert.Equal(t, ChemistryLFP, ParseChemistry("lfp"))
	assert.Equal(t, ChemistryNMC, ParseChemistry(""))
	assert.Equal(t, "KA01", NormalizeRTO(" ka-01 "))
}
