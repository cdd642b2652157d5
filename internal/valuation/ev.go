package valuation

import "math"

// evOutcome is what the EV engine hands back to the orchestrator
type evOutcome struct {
	retail       float64
	runningValue float64
	soh          float64
	costPerKWh   float64
	adjustedBase float64
	warrantyRisk float64
}

// EVEngine values battery-electric vehicles from battery replacement cost and SoH
type EVEngine struct {
	ev      EVParams
	blender Blender
}

// NewEVEngine builds the EV engine
func NewEVEngine(cfg Config) EVEngine {
	return EVEngine{ev: cfg.EV, blender: NewBlender(cfg.EV.Blend)}
}

// StateOfHealth estimates retained battery capacity. LFP fades slower than NMC and
// heavy annual running raises the rate; the result is clamped to [MinSoH, 1].
func (e EVEngine) StateOfHealth(chem Chemistry, ageYears, avgAnnualKm float64) (float64, bool) {
	rate := e.ev.DegradationNMC
	if chem == ChemistryLFP {
		rate = e.ev.DegradationLFP
	}
	highUsage := avgAnnualKm > e.ev.HighUsageThresholdKm
	if highUsage {
		rate += e.ev.HighUsageRateIncrease
	}
	maxAge := e.ev.MaxAgeForSoH
	if maxAge <= 0 {
		maxAge = math.Inf(1)
	}
	return clamp(1-rate*clamp(ageYears, 0, maxAge), e.ev.MinSoH, 1), highUsage
}

// Validate checks the inputs the EV engine cannot do without
func (e EVEngine) Validate(attrs VehicleAttributes) error {
	if attrs.BatteryCapacityKWh == nil || *attrs.BatteryCapacityKWh <= 0 {
		return missingInput("battery_capacity_kwh", "required for EV valuation", ErrMissingBatteryCapacity)
	}
	return nil
}

// Intrinsic runs the EV battery-value pipeline up to the wear reserve
func (e EVEngine) Intrinsic(attrs VehicleAttributes, m DerivedMetrics, log *auditLog) (evOutcome, error) {
	var out evOutcome
	if err := e.Validate(attrs); err != nil {
		return out, err
	}
	kwh := *attrs.BatteryCapacityKWh
	chem := ParseChemistry(attrs.BatteryChemistry)

	var benchKWh float64
	if attrs.BenchmarkEVKWh != nil {
		benchKWh = *attrs.BenchmarkEVKWh
	}
	if attrs.BenchmarkEVPrice != nil && *attrs.BenchmarkEVPrice > 0 && benchKWh > 0 {
		out.costPerKWh = *attrs.BenchmarkEVPrice / benchKWh
		log.add("Derived market cost_per_kWh from benchmark: Rs %.0f/kWh", out.costPerKWh)
	} else {
		out.costPerKWh = e.ev.CostPerKWh
		log.add("No benchmark provided. Using configured cost_per_kWh estimate: Rs %.0f/kWh", out.costPerKWh)
	}

	out.adjustedBase = out.costPerKWh * kwh * (1 + e.ev.ChassisPremium)
	log.add("Adjusted base price (battery + %.0f%% chassis premium): %.0f", e.ev.ChassisPremium*100, out.adjustedBase)

	soh, highUsage := e.StateOfHealth(chem, m.AgeYears, m.AvgAnnualKm)
	if highUsage {
		log.add("High annual km detected (%.0f km); increased battery degradation rate.", m.AvgAnnualKm)
	}
	out.soh = soh
	log.add("Estimated battery SoH (%s) after %.2f years: %.1f%%", chem, m.AgeYears, soh*100)

	value := out.adjustedBase * soh
	log.add("Battery running value (adjusted base x SoH): %.0f", value)

	if m.AgeYears >= e.ev.WarrantyAgeYears || m.Odometer > e.ev.WarrantyOdometerKm {
		out.warrantyRisk = e.ev.WarrantyReserveFraction * out.costPerKWh * kwh
		value -= out.warrantyRisk
		log.add("Warranty cliff: reserving Rs %.0f (%.0f%% of replacement cost).", out.warrantyRisk, e.ev.WarrantyReserveFraction*100)
	}

	if benchKWh > 0 {
		ratio := kwh / benchKWh
		if ratio < e.ev.RangeRatioThreshold {
			penalty := (e.ev.RangeRatioThreshold - ratio) * e.ev.RangePenaltyScale
			value *= 1 - penalty
			log.add("Range/tech penalty: -%.1f%% (battery %.1f kWh vs benchmark %.1f kWh).", penalty*100, kwh, benchKWh)
		}
	}

	if chem == ChemistryNMC && e.ev.NMCPenalty > 0 {
		value *= 1 - e.ev.NMCPenalty
		log.add("Chemistry (%s) penalty applied: -%.1f%%", chem, e.ev.NMCPenalty*100)
	}

	value = math.Max(value*(1-e.ev.WearReserve), 0)
	log.add("Applied wear reserve of %.0f%%. Value now %.0f", e.ev.WearReserve*100, value)
	out.runningValue = value
	return out, nil
}

// Converge blends the battery-intrinsic value with the market mean. The EV blender has
// its own divergence threshold and minimum market weight.
func (e EVEngine) Converge(out *evOutcome, market, ageYears float64, log *auditLog) {
	blend := e.blender.Blend(out.runningValue, market, ageYears)
	logBlend(log, blend, "battery-intrinsic")
	out.retail = math.Max(blend.Value, 0)
}
