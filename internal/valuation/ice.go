package valuation

import (
	"math"
	"strings"
)

// iceOutcome is what the ICE engine hands back to the orchestrator
type iceOutcome struct {
	retail           float64
	book             float64
	baseDepreciation float64
	regionalFactor   float64
	scrapped         bool
}

// ICEEngine values internal-combustion vehicles
type ICEEngine struct {
	ice      ICEParams
	regional RegionalParams
	policy   DepreciationPolicy
}

// NewICEEngine wires the ICE parameters to a depreciation policy
func NewICEEngine(cfg Config, policy DepreciationPolicy) ICEEngine {
	return ICEEngine{ice: cfg.ICE, regional: cfg.Regional, policy: policy}
}

// Validate checks the inputs the ICE engine cannot do without
func (e ICEEngine) Validate(attrs VehicleAttributes) error {
	if attrs.HistoricalOnRoadPrice != nil && *attrs.HistoricalOnRoadPrice > 0 {
		return nil
	}
	if attrs.CurrentExShowroom <= 0 {
		return missingInput("current_ex_showroom",
			"ICE valuation needs historical_onroad_price or current_ex_showroom", ErrInsufficientPriceInput)
	}
	return nil
}

// Intrinsic runs the ICE book-value pipeline. Each step moves a running book value and
// writes one log line; the NCR scrap rule ends the pipeline early with scrapped set.
func (e ICEEngine) Intrinsic(attrs VehicleAttributes, m DerivedMetrics, log *auditLog) (iceOutcome, error) {
	out := iceOutcome{regionalFactor: 1}

	hist, err := e.historicalPrice(attrs, m, log)
	if err != nil {
		return out, err
	}

	out.baseDepreciation = e.policy.BaseDepreciation(m.AgeMonths)
	step := e.ice.MileageStep.enabled()
	if step {
		out.baseDepreciation = e.applyMileageStep(out.baseDepreciation, m, log)
	}
	book := hist * (1 - out.baseDepreciation)
	log.add("Book value after grid depreciation (%.1f%%, policy %s): %.0f", out.baseDepreciation*100, e.policy.Name(), book)

	if !step {
		book = e.applyMileage(book, m, log)
	}
	book = e.applyLifecycle(book, attrs, m, log)

	out.book, out.scrapped = e.applyRegional(book, hist, attrs, m, &out.regionalFactor, log)
	if out.scrapped {
		out.retail = out.book
	}
	return out, nil
}

// Converge blends the book value with the market mean and applies the negotiation buffer
func (e ICEEngine) Converge(out *iceOutcome, market, ageYears float64, log *auditLog) {
	blend := e.policy.Blend(out.book, market, ageYears)
	logBlend(log, blend, "book")
	out.retail = math.Max(blend.Value*e.ice.NegotiationBuffer, 0)
	log.add("Negotiation buffer applied: x%.2f. Retail = %.0f", e.ice.NegotiationBuffer, out.retail)
}

func (e ICEEngine) historicalPrice(attrs VehicleAttributes, m DerivedMetrics, log *auditLog) (float64, error) {
	if attrs.HistoricalOnRoadPrice != nil && *attrs.HistoricalOnRoadPrice > 0 {
		return *attrs.HistoricalOnRoadPrice, nil
	}
	if err := e.Validate(attrs); err != nil {
		return 0, err
	}
	hist := attrs.CurrentExShowroom * (1 - e.ice.HistoricalInflationRate*clamp(m.AgeYears, 0, e.ice.HistoricalInflationCap))
	log.add("Estimated historical_onroad_price from current_ex_showroom: %.0f", hist)
	return hist, nil
}

func (e ICEEngine) applyMileage(book float64, m DerivedMetrics, log *auditLog) float64 {
	diff := m.AvgAnnualKm - e.ice.ExpectedAnnualKm
	switch {
	case diff > 0:
		extra := diff / 1000 * e.ice.PenaltyPer1000KmOver
		log.add("High usage adjustment: +%.2f%% depreciation, avg annual %.0f km (expected %.0f)", extra*100, m.AvgAnnualKm, e.ice.ExpectedAnnualKm)
		return math.Max(book*(1-extra), 0)
	case diff < 0:
		bonus := -diff / 1000 * e.ice.BonusPer1000KmUnder
		log.add("Low usage adjustment: -%.2f%% depreciation, avg annual %.0f km (expected %.0f)", bonus*100, m.AvgAnnualKm, e.ice.ExpectedAnnualKm)
		return book * (1 + bonus)
	}
	log.add("No mileage adjustment: avg annual %.0f km matches expected", m.AvgAnnualKm)
	return book
}

// applyMileageStep moves the base depreciation by fixed steps for high and low usage, then caps it
func (e ICEEngine) applyMileageStep(dep float64, m DerivedMetrics, log *auditLog) float64 {
	s := e.ice.MileageStep
	if m.AgeYears <= 0 {
		return dep
	}
	avg := float64(m.Odometer) / m.AgeYears
	switch {
	case avg > s.HighAnnualKm:
		dep += s.HighUsageAdd
		log.add("High usage (%.0f km/yr above %.0f): +%.0f points depreciation", avg, s.HighAnnualKm, s.HighUsageAdd*100)
	case avg < s.LowAnnualKm:
		dep -= s.LowUsageRelief
		log.add("Low usage (%.0f km/yr below %.0f): -%.0f points depreciation", avg, s.LowAnnualKm, s.LowUsageRelief*100)
	}
	if dep > s.MaxDepreciation {
		dep = s.MaxDepreciation
		log.add("Depreciation capped at %.0f%%", s.MaxDepreciation*100)
	}
	return dep
}

func (e ICEEngine) applyLifecycle(book float64, attrs VehicleAttributes, m DerivedMetrics, log *auditLog) float64 {
	total := 0.0
	apply := func(p float64) {
		if e.ice.CombinePenalties {
			total += p
			return
		}
		book *= 1 - p
	}

	if e.lifecycleMatch(e.ice.DiscontinuedModels, attrs) {
		apply(e.ice.DiscontinuedPenalty)
		log.add("Discontinued model penalty applied: -%.1f%%", e.ice.DiscontinuedPenalty*100)
	}
	if e.lifecycleMatch(e.ice.NewGenModels, attrs) && (e.ice.NewGenMinAgeYears <= 0 || m.AgeYears > e.ice.NewGenMinAgeYears) {
		apply(e.ice.NewGenPenalty)
		log.add("Newer generation penalty applied: -%.1f%%", e.ice.NewGenPenalty*100)
	}
	if e.ice.NonPreferredColorPenalty > 0 && strings.TrimSpace(attrs.Color) != "" && !containsFold(e.ice.PreferredColors, attrs.Color) {
		apply(e.ice.NonPreferredColorPenalty)
		log.add("Non-preferred colour (%s) penalty applied: -%.1f%%", attrs.Color, e.ice.NonPreferredColorPenalty*100)
	}
	if total > 0 {
		book *= 1 - total
		log.add("Combined market penalty: -%.1f%%. Book value = %.0f", total*100, book)
	}
	return book
}

func (e ICEEngine) lifecycleMatch(list []string, attrs VehicleAttributes) bool {
	if e.ice.LifecycleModelSubstring {
		return containsAnyFold(attrs.Model, list)
	}
	return containsFold(list, attrs.MakeModel())
}

// applyRegional returns the adjusted book value and whether the scrap rule fired
func (e ICEEngine) applyRegional(book, hist float64, attrs VehicleAttributes, m DerivedMetrics, factor *float64, log *auditLog) (float64, bool) {
	r := e.regional
	rto := NormalizeRTO(attrs.RTOCode)

	if attrs.FuelType == FuelDiesel && e.isNCR(attrs.City, rto) {
		switch {
		case r.beyond(m.AgeYears, r.NCRDieselScrapAge):
			scrap := bodyLookup(r.ScrapValues, attrs.BodyType)
			if r.ScrapHistoricalFraction > 0 {
				scrap = hist * r.ScrapHistoricalFraction
			}
			log.add("NCR diesel older than scrap threshold (%.1fy, age %.2fy): value set to scrap value %.0f", r.NCRDieselScrapAge, m.AgeYears, scrap)
			return scrap, true
		case r.beyond(m.AgeYears, r.NCRDieselPanicAge):
			*factor *= 1 - r.NCRDieselPanicPenalty
			book *= 1 - r.NCRDieselPanicPenalty
			log.add("NCR diesel panic penalty applied: -%.1f%% (age %.2fy)", r.NCRDieselPanicPenalty*100, m.AgeYears)
		}
	}

	if len(rto) >= 2 && containsFold(r.SouthRTOPrefixes, rto[:2]) {
		*factor *= r.SouthMultiplier
		book *= r.SouthMultiplier
		log.add("South India regional premium applied: x%.2f", r.SouthMultiplier)
	}

	if r.CoastalFactor != 1 && m.AgeYears > r.CoastalMinAge && containsAnyFold(attrs.City, r.CoastalCities) {
		*factor *= r.CoastalFactor
		book *= r.CoastalFactor
		log.add("Coastal corrosion adjustment applied: x%.2f", r.CoastalFactor)
	}
	return book, false
}

func (e ICEEngine) isNCR(city, rto string) bool {
	if e.regional.NCRCityOnly {
		return containsAnyFold(city, e.regional.NCRCities)
	}
	c := strings.ToLower(strings.TrimSpace(city))
	if strings.HasPrefix(c, "ncr") || containsAnyFold(city, e.regional.NCRCities) {
		return true
	}
	for _, p := range e.regional.NCRRTOPrefixes {
		if strings.HasPrefix(rto, strings.ToUpper(p)) {
			return true
		}
	}
	return false
}

// NormalizeRTO upper-cases an RTO code and drops separators ("ka-01" -> "KA01")
func NormalizeRTO(code string) string {
	r := strings.NewReplacer(" ", "", "-", "", ".", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(code)))
}

func logBlend(log *auditLog, b BlendOutcome, intrinsicName string) {
	if !b.MarketUsed {
		log.add("No market_listings_mean provided; using %s value.", intrinsicName)
		return
	}
	if b.WeightReduced {
		log.add("Market listings diverge %.1f%%, reducing market weight from %.2f to %.2f", b.Divergence*100, b.BaseWeight, b.MarketWeight)
	}
	log.add("Blended market (%.0f%% market, %.0f%% %s): %.0f", b.MarketWeight*100, (1-b.MarketWeight)*100, intrinsicName, b.Value)
}

func containsFold(list []string, s string) bool {
	s = strings.TrimSpace(s)
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// containsAnyFold reports whether s contains any entry of list, ignoring case
func containsAnyFold(s string, list []string) bool {
	s = strings.ToLower(s)
	if s == "" {
		return false
	}
	for _, v := range list {
		if v != "" && strings.Contains(s, strings.ToLower(v)) {
			return true
		}
	}
	return false
}
