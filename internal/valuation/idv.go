package valuation

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// IDV calculation statuses
const (
	IDVStatusSuccess               = "SUCCESS"
	IDVStatusMarketRefreshRequired = "MARKET_REFRESH_REQUIRED"
)

// Market validation outcomes of the year-bucket policy
const (
	ValidationManualReview = "Manual Review Required"
	ValidationAcceptable   = "Within Acceptable Range"
	ValidationNoMarketData = "No Market Data"
)

const (
	evBaseShare            = 0.85
	evAccessoryExtraDep    = 0.10
	evAccessoryMaxDep      = 0.80
	yearBucketOwnerPenalty = 0.04
	reviewThresholdPercent = 20.0
	noMarketConfidence     = 85.0

	marketCacheMaxAgeDays = 45
	secondOwnerFactor     = 0.97
	thirdOwnerFactor      = 0.94
)

// IDVRequest is the input of one insurance declared value calculation.
// The year-bucket policy reads OriginalOnRoadPrice and MarketMedian; the
// monthly-linear policy reads the ex-showroom pair, market mean and cache age.
type IDVRequest struct {
	Policy             string   `json:"policy"`
	RegistrationNumber string   `json:"registration_number"`
	Make               string   `json:"make"`
	BaseModel          string   `json:"base_model"`
	Variant            string   `json:"variant"`
	FuelType           FuelType `json:"fuel_type"`
	Transmission       string   `json:"transmission"`
	VehicleCategory    string   `json:"vehicle_category"`
	City               string   `json:"city"`
	ManufacturingDate  string   `json:"manufacturing_date"`
	OwnerCount         int      `json:"owner_count"`

	OriginalOnRoadPrice float64  `json:"original_onroad_price,omitempty"`
	MarketMedian        *float64 `json:"market_median,omitempty"`

	BaseExShowroom     float64 `json:"base_ex_showroom,omitempty"`
	VariantExShowroom  float64 `json:"variant_ex_showroom,omitempty"`
	MarketListingsMean float64 `json:"market_listings_mean,omitempty"`
	MarketCacheAgeDays int     `json:"market_cache_age_days,omitempty"`
}

// CacheKey is the market segment of the request
func (r IDVRequest) CacheKey() MarketCacheKey {
	year := 0
	if t, err := ParseDate(r.ManufacturingDate); err == nil {
		year = t.Year()
	}
	return NewMarketCacheKey(r.Make, r.BaseModel, string(r.FuelType), r.Transmission, year, r.City)
}

// IDVResult is the output of an IDV calculation. ConfidenceScore is on a 0-100
// scale for the year-bucket policy and 0-1 for the monthly-linear policy.
type IDVResult struct {
	Status              string          `json:"status"`
	Reason              string          `json:"reason,omitempty"`
	Policy              string          `json:"policy"`
	RegistrationNumber  string          `json:"registration_number,omitempty"`
	VehicleClass        VehicleClass    `json:"vehicle_class"`
	AgeMonths           int             `json:"age_months"`
	DepreciationPercent float64         `json:"depreciation_percent"`
	IDV                 int64           `json:"idv"`
	AdjustedMarketValue float64         `json:"adjusted_market_value,omitempty"`
	VariantRatio        float64         `json:"variant_ratio,omitempty"`
	OwnerAdjustment     float64         `json:"owner_adjustment"`
	MarketMedian        *float64        `json:"market_median,omitempty"`
	DifferencePercent   *float64        `json:"difference_percent,omitempty"`
	ValidationStatus    string          `json:"validation_status,omitempty"`
	ConfidenceScore     float64         `json:"confidence_score"`
	ReasoningSummary    string          `json:"reasoning_summary,omitempty"`
	CacheKey            *MarketCacheKey `json:"cache_key,omitempty"`
	BreakdownLog        []string        `json:"breakdown_log"`
}

// NeedsReview reports whether an underwriter has to look at the result
func (r *IDVResult) NeedsReview() bool {
	return r.ValidationStatus == ValidationManualReview
}

// IDVCalculator computes insurance declared values with a caller-selected policy
type IDVCalculator struct {
	now func() time.Time
}

// NewIDVCalculator builds a calculator; a nil clock means time.Now
func NewIDVCalculator(now func() time.Time) *IDVCalculator {
	if now == nil {
		now = time.Now
	}
	return &IDVCalculator{now: now}
}

// Calculate runs the policy named in the request. A stale market cache under the
// monthly-linear policy is a status, not an error.
func (c *IDVCalculator) Calculate(req IDVRequest) (*IDVResult, error) {
	class := ClassFromCategory(req.VehicleCategory)
	policy, err := IDVPolicyByName(req.Policy, class)
	if err != nil {
		return nil, err
	}

	var log auditLog
	months := c.ageMonths(req, &log)

	if lin, ok := policy.(MonthlyLinearIDVPolicy); ok {
		return c.monthlyLinear(req, lin, months, class, log)
	}
	return c.yearBucket(req, policy, months, class, log)
}

func (c *IDVCalculator) ageMonths(req IDVRequest, log *auditLog) int {
	t, err := ParseDate(req.ManufacturingDate)
	if err != nil {
		log.add("WARNING: manufacturing date invalid (%s); assuming age 0", err)
		return 0
	}
	months := MonthsBetween(t, c.now())
	log.add("Vehicle age from manufacturing date: %d years %d months", months/12, months%12)
	return months
}

func (c *IDVCalculator) yearBucket(req IDVRequest, policy DepreciationPolicy, months int, class VehicleClass, log auditLog) (*IDVResult, error) {
	if req.OriginalOnRoadPrice <= 0 {
		return nil, missingInput("original_onroad_price", "year-bucket IDV needs the original on-road price", ErrInsufficientPriceInput)
	}
	if req.OwnerCount < 1 {
		return nil, missingInput("owner_count", "year-bucket IDV needs at least one owner", nil)
	}
	dep := policy.BaseDepreciation(months)
	log.add("%s depreciation for %s: %.0f%%", policy.Name(), class, dep*100)

	var idv float64
	if ParseFuelType(string(req.FuelType)).IsElectric() {
		accDep := math.Min(dep+evAccessoryExtraDep, evAccessoryMaxDep)
		base := req.OriginalOnRoadPrice * evBaseShare * (1 - dep)
		acc := req.OriginalOnRoadPrice * (1 - evBaseShare) * (1 - accDep)
		idv = base + acc
		log.add("EV split: base %.0f + accessories %.0f (accessory depreciation %.0f%%)", base, acc, accDep*100)
	} else {
		idv = req.OriginalOnRoadPrice * (1 - dep)
	}

	owner := 1.0
	if req.OwnerCount > 1 {
		owner = math.Max(0, 1-float64(req.OwnerCount-1)*yearBucketOwnerPenalty)
		idv *= owner
		log.add("Owner penalty for %d owners: -%.0f%%", req.OwnerCount, (1-owner)*100)
	}

	res := &IDVResult{
		Status:              IDVStatusSuccess,
		Policy:              policy.Name(),
		RegistrationNumber:  req.RegistrationNumber,
		VehicleClass:        class,
		AgeMonths:           months,
		DepreciationPercent: round2(dep * 100),
		IDV:                 roundRupees(idv),
		OwnerAdjustment:     round4(owner),
	}

	if req.MarketMedian != nil && *req.MarketMedian > 0 {
		median := *req.MarketMedian
		diff := math.Abs(idv-median) / median * 100
		res.MarketMedian = &median
		d := round2(diff)
		res.DifferencePercent = &d
		res.ValidationStatus = ValidationAcceptable
		if diff > reviewThresholdPercent {
			res.ValidationStatus = ValidationManualReview
		}
		res.ConfidenceScore = round2(math.Max(50, 100-diff))
		log.add("Market median %.0f differs by %.2f%%: %s", median, diff, res.ValidationStatus)
	} else {
		res.ValidationStatus = ValidationNoMarketData
		res.ConfidenceScore = noMarketConfidence
		log.add("No market median supplied; validation skipped.")
	}
	log.add("IDV = %d", res.IDV)
	res.BreakdownLog = log
	return res, nil
}

func (c *IDVCalculator) monthlyLinear(req IDVRequest, policy MonthlyLinearIDVPolicy, months int, class VehicleClass, log auditLog) (*IDVResult, error) {
	if req.MarketCacheAgeDays > marketCacheMaxAgeDays {
		key := req.CacheKey()
		log.add("Market cache is %d days old; refresh required.", req.MarketCacheAgeDays)
		return &IDVResult{
			Status:             IDVStatusMarketRefreshRequired,
			Reason:             fmt.Sprintf("Market cache is %d days old (max: %d)", req.MarketCacheAgeDays, marketCacheMaxAgeDays),
			Policy:             policy.Name(),
			RegistrationNumber: req.RegistrationNumber,
			VehicleClass:       class,
			AgeMonths:          months,
			CacheKey:           &key,
			BreakdownLog:       log,
		}, nil
	}
	if req.BaseExShowroom <= 0 {
		return nil, missingInput("base_ex_showroom", "monthly-linear IDV needs base and variant ex-showroom prices", ErrInsufficientPriceInput)
	}
	if req.VariantExShowroom <= 0 {
		return nil, missingInput("variant_ex_showroom", "monthly-linear IDV needs base and variant ex-showroom prices", ErrInsufficientPriceInput)
	}

	ratio := req.VariantExShowroom / req.BaseExShowroom
	adjusted := req.MarketListingsMean * ratio
	log.add("Variant ratio %.4f scales market mean %.0f to %.0f", ratio, req.MarketListingsMean, adjusted)

	dep := policy.BaseDepreciation(months)
	value := adjusted * (1 - dep)
	log.add("Linear depreciation %.1f%% over %d months: %.0f", dep*100, months, value)

	owner := 1.0
	switch {
	case req.OwnerCount == 2:
		owner = secondOwnerFactor
	case req.OwnerCount >= 3:
		owner = thirdOwnerFactor
	}
	if owner != 1 {
		value *= owner
		log.add("Owner adjustment x%.2f", owner)
	}

	idv := roundToNearest(value, 1000)
	log.add("IDV rounded to nearest Rs 1000: %d", idv)

	res := &IDVResult{
		Status:              IDVStatusSuccess,
		Policy:              policy.Name(),
		RegistrationNumber:  req.RegistrationNumber,
		VehicleClass:        class,
		AgeMonths:           months,
		DepreciationPercent: round2(dep * 100),
		IDV:                 idv,
		AdjustedMarketValue: round2(adjusted),
		VariantRatio:        round4(ratio),
		OwnerAdjustment:     owner,
		ConfidenceScore:     round2(linearConfidence(req.MarketCacheAgeDays, ratio, months, req.MarketListingsMean)),
		BreakdownLog:        log,
	}
	res.ReasoningSummary = linearReasoning(req, policy, ratio, adjusted, months, owner, idv)
	return res, nil
}

func linearConfidence(cacheAgeDays int, ratio float64, months int, marketMean float64) float64 {
	conf := 1.0
	switch {
	case cacheAgeDays > 30:
		conf -= 0.1
	case cacheAgeDays > 15:
		conf -= 0.05
	}
	if ratio < 0.8 || ratio > 1.3 {
		conf -= 0.15
	}
	if months <= 12 {
		conf += 0.05
	}
	if marketMean == 0 {
		conf -= 0.3
	}
	return clamp(conf, 0, 1)
}

func linearReasoning(req IDVRequest, policy MonthlyLinearIDVPolicy, ratio, adjusted float64, months int, owner float64, idv int64) string {
	parts := []string{
		"RC: " + req.RegistrationNumber,
		fmt.Sprintf("Vehicle: %s %s %s", req.Make, req.BaseModel, req.Variant),
		fmt.Sprintf("Specs: %s, %s", req.FuelType, req.Transmission),
		fmt.Sprintf("Variant ratio: %.4f (Rs %.0f / Rs %.0f)", ratio, req.VariantExShowroom, req.BaseExShowroom),
		fmt.Sprintf("Adjusted market value: Rs %.0f", adjusted),
		fmt.Sprintf("Age: %d years %d months (%d months total)", months/12, months%12, months),
		fmt.Sprintf("Depreciation: %.1f%% (%.1f%% per month)", policy.BaseDepreciation(months)*100, policy.MonthlyRate*100),
	}
	switch {
	case req.OwnerCount <= 1:
		parts = append(parts, "Owner: 1st owner (no penalty)")
	case req.OwnerCount == 2:
		parts = append(parts, fmt.Sprintf("Owner: 2nd owner (%.0f%% penalty)", (1-owner)*100))
	default:
		parts = append(parts, fmt.Sprintf("Owner: %d+ owners (%.0f%% penalty)", req.OwnerCount, (1-owner)*100))
	}
	parts = append(parts, fmt.Sprintf("Final IDV: Rs %d (rounded to nearest Rs 1,000)", idv))
	return strings.Join(parts, " | ")
}
