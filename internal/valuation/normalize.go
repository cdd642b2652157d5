package valuation

import (
	"fmt"
	"math"
	"strings"
	"time"
)

var dateLayouts = []string{"2006-01-02", "2006-01", "02-01-2006", "02/01/2006", "2006/01/02"}

// ParseDate accepts the date shapes found on RC records: full ISO dates,
// year-month manufacturing dates and day-first Indian formats.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &InvalidDateError{}
	}
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, &InvalidDateError{Value: s, Err: lastErr}
}

// MonthsBetween counts whole calendar months from -> to, never negative
func MonthsBetween(from, to time.Time) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// EstimateOdometer is the single odometer fallback: monthlyKm for every month of age
func EstimateOdometer(ageMonths, monthlyKm int) int {
	if ageMonths <= 0 {
		return 0
	}
	return ageMonths * monthlyKm
}

// auditLog is the ordered, human-readable breakdown returned with every result
type auditLog []string

func (l *auditLog) add(format string, args ...any) {
	*l = append(*l, fmt.Sprintf(format, args...))
}

// Normalizer derives age, odometer and running rate from raw attributes
type Normalizer struct {
	monthlyKm int
}

// NewNormalizer builds a normalizer for the given table
func NewNormalizer(cfg Config) Normalizer {
	return Normalizer{monthlyKm: cfg.MonthlyKmEstimate}
}

// Normalize computes DerivedMetrics. A missing or unparseable date is not an
// error: age falls back to zero and a warning goes into the log.
func (n Normalizer) Normalize(attrs VehicleAttributes, mode Mode, now time.Time, log *auditLog) (DerivedMetrics, error) {
	var raw string
	switch mode {
	case ModeResale:
		raw = attrs.RegistrationDate
	case ModeInsurance:
		raw = attrs.ManufacturingDate
	case "":
		return DerivedMetrics{}, missingInput("mode", "calculation mode must be resale or insurance", nil)
	default:
		return DerivedMetrics{}, missingInput("mode", fmt.Sprintf("unknown calculation mode %q", mode), nil)
	}

	m := DerivedMetrics{Engine: EngineICE}
	if attrs.FuelType.IsElectric() {
		m.Engine = EngineEV
	}

	date, err := ParseDate(raw)
	if err != nil {
		log.add("WARNING: %s date invalid (%s); assuming age 0", dateFieldName(mode), err)
	} else {
		if date.After(now) {
			log.add("WARNING: %s date %s is in the future; assuming age 0", dateFieldName(mode), raw)
		}
		m.AgeMonths = MonthsBetween(date, now)
		m.AgeYears = float64(m.AgeMonths) / 12.0
	}

	if attrs.Odometer != nil && *attrs.Odometer >= 0 {
		m.Odometer = *attrs.Odometer
	} else {
		m.Odometer = EstimateOdometer(m.AgeMonths, n.monthlyKm)
		m.OdometerEstimate = true
		log.add("Estimated odometer = %d km (%d months x %d km/month)", m.Odometer, m.AgeMonths, n.monthlyKm)
	}

	m.AvgAnnualKm = math.Round(float64(m.Odometer) / math.Max(m.AgeYears, 1))
	return m, nil
}

func dateFieldName(mode Mode) string {
	if mode == ModeInsurance {
		return "manufacturing"
	}
	return "registration"
}
