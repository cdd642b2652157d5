package valuation

import "math"

// DealerOffer derives the dealer purchase price from a retail value:
// retail x (1 - margin) - refurbishment, never below zero. EV refurbishment is flat.
func DealerOffer(p DealerParams, retail float64, body BodyType, engine EngineKind) (float64, DealerMeta) {
	meta := DealerMeta{MarginPct: bodyLookup(p.Margins, body)}
	if engine == EngineEV {
		meta.Refurbishment = p.RefurbEVFlat
	} else {
		meta.Refurbishment = bodyLookup(p.RefurbICE, body)
	}
	offer := retail*(1-meta.MarginPct) - meta.Refurbishment
	return math.Max(offer, 0), meta
}
