package valuation

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DepreciationPolicy is one named rule set for base depreciation and market blending.
// The resale engine and the IDV calculators each pick one; their constants are kept
// exactly as the rule set defines them.
type DepreciationPolicy interface {
	Name() string
	BaseDepreciation(ageMonths int) float64
	Blend(intrinsic, market, ageYears float64) BlendOutcome
}

// GridPolicy looks up a breakpoint grid: the first breakpoint the age falls under
// wins, ages past the last breakpoint take the floor.
type GridPolicy struct {
	name    string
	grid    []Breakpoint
	floor   float64
	strict  bool
	blender *Blender
}

// NewGridPolicy builds the resale grid policy of a valuation table
func NewGridPolicy(name string, p ICEParams) GridPolicy {
	b := NewBlender(p.Blend)
	return GridPolicy{
		name:    name,
		grid:    sortedGrid(p.Grid),
		floor:   p.FloorDepreciation,
		strict:  p.StrictGrid,
		blender: &b,
	}
}

func (g GridPolicy) Name() string { return g.name }

func (g GridPolicy) BaseDepreciation(ageMonths int) float64 {
	age := float64(ageMonths) / 12.0
	for _, bp := range g.grid {
		if age < bp.AgeYears || (!g.strict && age == bp.AgeYears) {
			return bp.Depreciation
		}
	}
	return g.floor
}

func (g GridPolicy) Blend(intrinsic, market, ageYears float64) BlendOutcome {
	if g.blender == nil {
		return BlendOutcome{Value: intrinsic}
	}
	return g.blender.Blend(intrinsic, market, ageYears)
}

// VehicleClass separates two-wheeler and four-wheeler insurance tariffs
type VehicleClass string

const (
	Class2W VehicleClass = "2W"
	Class4W VehicleClass = "4W"
)

// ClassFromCategory reads the RC vehicle category description
func ClassFromCategory(category string) VehicleClass {
	c := strings.ToUpper(category)
	if strings.Contains(c, "SCOOTER") || strings.Contains(c, "MOTORCYCLE") || strings.Contains(c, "2W") {
		return Class2W
	}
	return Class4W
}

// NewYearBucketIDVPolicy is the insurance year-bucket tariff. The market median is
// used for validation only, so Blend passes the intrinsic value through.
func NewYearBucketIDVPolicy(class VehicleClass) GridPolicy {
	if class == Class2W {
		return GridPolicy{
			name:   PolicyYearBucket + "-2w",
			strict: true,
			grid: []Breakpoint{
				{0.5, 0.05}, {1, 0.15}, {2, 0.20}, {3, 0.30}, {4, 0.40}, {5, 0.50}, {7, 0.60},
			},
			floor: 0.65,
		}
	}
	return GridPolicy{
		name:   PolicyYearBucket + "-4w",
		strict: true,
		grid: []Breakpoint{
			{0.5, 0.05}, {1, 0.15}, {2, 0.20}, {3, 0.30}, {4, 0.40}, {5, 0.50}, {7, 0.55}, {10, 0.65},
		},
		floor: 0.70,
	}
}

// MonthlyLinearIDVPolicy depreciates a fixed fraction per month of age
type MonthlyLinearIDVPolicy struct {
	MonthlyRate float64
}

// NewMonthlyLinearIDVPolicy uses 0.8% per month
func NewMonthlyLinearIDVPolicy() MonthlyLinearIDVPolicy {
	return MonthlyLinearIDVPolicy{MonthlyRate: 0.008}
}

func (MonthlyLinearIDVPolicy) Name() string { return PolicyMonthlyLinear }

func (p MonthlyLinearIDVPolicy) BaseDepreciation(ageMonths int) float64 {
	return clamp(p.MonthlyRate*float64(ageMonths), 0, 1)
}

func (MonthlyLinearIDVPolicy) Blend(intrinsic, _, _ float64) BlendOutcome {
	return BlendOutcome{Value: intrinsic}
}

const (
	PolicyYearBucket    = "year-bucket"
	PolicyMonthlyLinear = "monthly-linear"
)

// IDVPolicyByName resolves the insurance policy a caller asked for
func IDVPolicyByName(name string, class VehicleClass) (DepreciationPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyYearBucket:
		return NewYearBucketIDVPolicy(class), nil
	case PolicyMonthlyLinear:
		return NewMonthlyLinearIDVPolicy(), nil
	}
	return nil, missingInput("policy", fmt.Sprintf("unknown IDV policy %q", name), nil)
}

func sortedGrid(grid []Breakpoint) []Breakpoint {
	out := append([]Breakpoint(nil), grid...)
	sort.Slice(out, func(i, j int) bool { return out[i].AgeYears < out[j].AgeYears })
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
