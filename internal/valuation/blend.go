package valuation

import "math"

// BlendOutcome describes one market convergence decision
type BlendOutcome struct {
	Value         float64
	MarketUsed    bool
	BaseWeight    float64
	MarketWeight  float64
	Divergence    float64
	WeightReduced bool
}

// Blender merges an intrinsic value with an external market mean
type Blender struct {
	params BlendParams
}

// NewBlender returns a blender over the given weights
func NewBlender(p BlendParams) Blender {
	return Blender{params: p}
}

// BaseWeight returns the age-tier market weight before any divergence handling
func (b Blender) BaseWeight(ageYears float64) float64 {
	for _, t := range b.params.Tiers {
		if ageYears < t.MaxAgeYears || (t.Inclusive && ageYears == t.MaxAgeYears) {
			return t.Weight
		}
	}
	return b.params.DefaultWeight
}

// Blend returns weight*market + (1-weight)*intrinsic. A market value <= 0 means
// no signal and the intrinsic value passes through unchanged.
func (b Blender) Blend(intrinsic, market, ageYears float64) BlendOutcome {
	if market <= 0 {
		return BlendOutcome{Value: intrinsic}
	}
	out := BlendOutcome{MarketUsed: true}
	out.BaseWeight = b.BaseWeight(ageYears)
	out.MarketWeight = out.BaseWeight
	out.Divergence = math.Abs(market-intrinsic) / (intrinsic + 1e-6)
	if b.params.DivergenceThreshold > 0 && out.Divergence >= b.params.DivergenceThreshold {
		out.MarketWeight = math.Max(b.params.MinWeight, out.BaseWeight-b.params.WeightDecrement)
		out.WeightReduced = true
	}
	out.Value = out.MarketWeight*market + (1-out.MarketWeight)*intrinsic
	return out
}
