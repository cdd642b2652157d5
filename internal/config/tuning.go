package config

import (
	"fmt"

	"github.com/Dan9191/vehicle-valuation/internal/valuation"
	"github.com/spf13/viper"
)

type bodyValue struct {
	BodyType string  `mapstructure:"body_type"`
	Value    float64 `mapstructure:"value"`
}

type dealerTier struct {
	BodyType      string  `mapstructure:"body_type"`
	Margin        float64 `mapstructure:"margin"`
	Refurbishment float64 `mapstructure:"refurbishment"`
}

// LoadValuationConfig selects a preset and overlays the optional tuning file on it.
// Only keys present in the file replace preset values. The result is validated.
func LoadValuationConfig(path, preset string) (valuation.Config, error) {
	cfg, err := valuation.ConfigForPreset(preset)
	if err != nil {
		return valuation.Config{}, err
	}
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return valuation.Config{}, fmt.Errorf("failed to read valuation config %q: %w", path, err)
		}
		if err := overlay(v, &cfg); err != nil {
			return valuation.Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return valuation.Config{}, err
	}
	return cfg, nil
}

func overlay(v *viper.Viper, cfg *valuation.Config) error {
	if v.IsSet("monthly_km_estimate") {
		cfg.MonthlyKmEstimate = v.GetInt("monthly_km_estimate")
	}
	if v.IsSet("ice.strict_grid") {
		cfg.ICE.StrictGrid = v.GetBool("ice.strict_grid")
	}
	bools := map[string]*bool{
		"ice.lifecycle_model_substring": &cfg.ICE.LifecycleModelSubstring,
		"ice.combine_penalties":         &cfg.ICE.CombinePenalties,
		"regional.ncr_city_only":        &cfg.Regional.NCRCityOnly,
		"regional.ncr_strict_age":       &cfg.Regional.NCRStrictAge,
	}
	for key, dst := range bools {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	if v.IsSet("ev.warranty_odometer_km") {
		cfg.EV.WarrantyOdometerKm = v.GetInt("ev.warranty_odometer_km")
	}

	floats := map[string]*float64{
		"ice.floor_depreciation":          &cfg.ICE.FloorDepreciation,
		"ice.historical_inflation_rate":   &cfg.ICE.HistoricalInflationRate,
		"ice.historical_inflation_cap":    &cfg.ICE.HistoricalInflationCap,
		"ice.expected_annual_km":          &cfg.ICE.ExpectedAnnualKm,
		"ice.penalty_per_1000km_over":     &cfg.ICE.PenaltyPer1000KmOver,
		"ice.bonus_per_1000km_under":      &cfg.ICE.BonusPer1000KmUnder,
		"ice.discontinued_penalty":        &cfg.ICE.DiscontinuedPenalty,
		"ice.new_gen_penalty":             &cfg.ICE.NewGenPenalty,
		"ice.non_preferred_color_penalty": &cfg.ICE.NonPreferredColorPenalty,
		"ice.negotiation_buffer":          &cfg.ICE.NegotiationBuffer,
		"ice.new_gen_min_age_years":       &cfg.ICE.NewGenMinAgeYears,
		"ice.mileage_step.high_annual_km": &cfg.ICE.MileageStep.HighAnnualKm,
		"ice.mileage_step.low_annual_km":  &cfg.ICE.MileageStep.LowAnnualKm,
		"ice.mileage_step.high_usage_add": &cfg.ICE.MileageStep.HighUsageAdd,
		"ice.mileage_step.low_relief":     &cfg.ICE.MileageStep.LowUsageRelief,
		"ice.mileage_step.max_dep":        &cfg.ICE.MileageStep.MaxDepreciation,
		"regional.scrap_hist_fraction":    &cfg.Regional.ScrapHistoricalFraction,
		"regional.ncr_diesel_panic_age":   &cfg.Regional.NCRDieselPanicAge,
		"regional.ncr_diesel_scrap_age":   &cfg.Regional.NCRDieselScrapAge,
		"regional.ncr_diesel_penalty":     &cfg.Regional.NCRDieselPanicPenalty,
		"regional.south_multiplier":       &cfg.Regional.SouthMultiplier,
		"regional.coastal_min_age":        &cfg.Regional.CoastalMinAge,
		"regional.coastal_factor":         &cfg.Regional.CoastalFactor,
		"ev.degradation_nmc":              &cfg.EV.DegradationNMC,
		"ev.degradation_lfp":              &cfg.EV.DegradationLFP,
		"ev.high_usage_threshold_km":      &cfg.EV.HighUsageThresholdKm,
		"ev.high_usage_rate_increase":     &cfg.EV.HighUsageRateIncrease,
		"ev.min_soh":                      &cfg.EV.MinSoH,
		"ev.max_age_for_soh":              &cfg.EV.MaxAgeForSoH,
		"ev.cost_per_kwh":                 &cfg.EV.CostPerKWh,
		"ev.chassis_premium":              &cfg.EV.ChassisPremium,
		"ev.warranty_age_years":           &cfg.EV.WarrantyAgeYears,
		"ev.warranty_reserve_fraction":    &cfg.EV.WarrantyReserveFraction,
		"ev.range_ratio_threshold":        &cfg.EV.RangeRatioThreshold,
		"ev.range_penalty_scale":          &cfg.EV.RangePenaltyScale,
		"ev.nmc_penalty":                  &cfg.EV.NMCPenalty,
		"ev.wear_reserve":                 &cfg.EV.WearReserve,
		"dealer.refurb_ev_flat":           &cfg.Dealer.RefurbEVFlat,
	}
	for key, dst := range floats {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}

	lists := map[string]*[]string{
		"ice.discontinued_models":     &cfg.ICE.DiscontinuedModels,
		"ice.new_gen_models":          &cfg.ICE.NewGenModels,
		"ice.preferred_colors":        &cfg.ICE.PreferredColors,
		"regional.ncr_cities":         &cfg.Regional.NCRCities,
		"regional.ncr_rto_prefixes":   &cfg.Regional.NCRRTOPrefixes,
		"regional.south_rto_prefixes": &cfg.Regional.SouthRTOPrefixes,
		"regional.coastal_cities":     &cfg.Regional.CoastalCities,
	}
	for key, dst := range lists {
		if v.IsSet(key) {
			*dst = v.GetStringSlice(key)
		}
	}

	if v.IsSet("ice.grid") {
		var grid []valuation.Breakpoint
		if err := v.UnmarshalKey("ice.grid", &grid); err != nil {
			return fmt.Errorf("failed to decode ice.grid: %w", err)
		}
		cfg.ICE.Grid = grid
	}
	for key, dst := range map[string]*valuation.BlendParams{"ice.blend": &cfg.ICE.Blend, "ev.blend": &cfg.EV.Blend} {
		if !v.IsSet(key) {
			continue
		}
		b := *dst
		if v.IsSet(key + ".tiers") {
			b.Tiers = nil
		}
		if err := v.UnmarshalKey(key, &b); err != nil {
			return fmt.Errorf("failed to decode %s: %w", key, err)
		}
		*dst = b
	}

	if v.IsSet("regional.scrap_values") {
		var rows []bodyValue
		if err := v.UnmarshalKey("regional.scrap_values", &rows); err != nil {
			return fmt.Errorf("failed to decode regional.scrap_values: %w", err)
		}
		cfg.Regional.ScrapValues = make(map[valuation.BodyType]float64, len(rows))
		for _, r := range rows {
			cfg.Regional.ScrapValues[valuation.ParseBodyType(r.BodyType)] = r.Value
		}
	}
	if v.IsSet("dealer.tiers") {
		var rows []dealerTier
		if err := v.UnmarshalKey("dealer.tiers", &rows); err != nil {
			return fmt.Errorf("failed to decode dealer.tiers: %w", err)
		}
		cfg.Dealer.Margins = make(map[valuation.BodyType]float64, len(rows))
		cfg.Dealer.RefurbICE = make(map[valuation.BodyType]float64, len(rows))
		for _, r := range rows {
			body := valuation.ParseBodyType(r.BodyType)
			cfg.Dealer.Margins[body] = r.Margin
			cfg.Dealer.RefurbICE[body] = r.Refurbishment
		}
	}
	return nil
}
