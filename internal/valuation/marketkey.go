package valuation

import (
	"fmt"
	"strconv"
	"strings"
)

// MarketCacheKey identifies the market segment a listings mean was observed for.
// Market data may only be shared between vehicles whose keys are equal.
type MarketCacheKey struct {
	Make              string `json:"make"`
	BaseModel         string `json:"base_model"`
	Fuel              string `json:"fuel"`
	Transmission      string `json:"transmission"`
	ManufacturingYear int    `json:"manufacturing_year"`
	City              string `json:"city"`
}

// NewMarketCacheKey upper-cases and trims every text field
func NewMarketCacheKey(maker, baseModel, fuel, transmission string, year int, city string) MarketCacheKey {
	return MarketCacheKey{
		Make:              keyPart(maker),
		BaseModel:         keyPart(baseModel),
		Fuel:              keyPart(fuel),
		Transmission:      keyPart(transmission),
		ManufacturingYear: year,
		City:              keyPart(city),
	}
}

// String renders the key as a pipe-separated cache key
func (k MarketCacheKey) String() string {
	return strings.Join([]string{
		k.Make, k.BaseModel, k.Fuel, k.Transmission, strconv.Itoa(k.ManufacturingYear), k.City,
	}, "|")
}

// CanReuseMarketData reports whether market data gathered for a applies to b,
// with the list of mismatched fields when it does not.
func CanReuseMarketData(a, b MarketCacheKey) (bool, string) {
	a = NewMarketCacheKey(a.Make, a.BaseModel, a.Fuel, a.Transmission, a.ManufacturingYear, a.City)
	b = NewMarketCacheKey(b.Make, b.BaseModel, b.Fuel, b.Transmission, b.ManufacturingYear, b.City)

	var mismatches []string
	check := func(field, x, y string) {
		if x != y {
			mismatches = append(mismatches, fmt.Sprintf("%s: %s != %s", field, x, y))
		}
	}
	check("make", a.Make, b.Make)
	check("base_model", a.BaseModel, b.BaseModel)
	check("fuel", a.Fuel, b.Fuel)
	check("transmission", a.Transmission, b.Transmission)
	check("manufacturing_year", strconv.Itoa(a.ManufacturingYear), strconv.Itoa(b.ManufacturingYear))
	check("city", a.City, b.City)

	if len(mismatches) > 0 {
		return false, "Cannot reuse market data: " + strings.Join(mismatches, ", ")
	}
	return true, "Market data can be reused (all specs match)"
}

func keyPart(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
