package utils

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Dan9191/vehicle-valuation/internal/models"
	"github.com/beevik/etree"
)

// BuildValuationCertificate renders a valuation record as an XML certificate
func BuildValuationCertificate(v models.ValuationRecord, issuedAt time.Time) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("ValuationCertificate")
	root.CreateAttr("uid", v.UID)
	root.CreateAttr("issued_at", issuedAt.UTC().Format(time.RFC3339))

	vehicle := root.CreateElement("Vehicle")
	vehicle.CreateAttr("rc_number", v.RCNumber)
	addText(vehicle, "Make", v.Make)
	addText(vehicle, "Model", v.Model)
	if v.ManufacturingYear > 0 {
		addText(vehicle, "ManufacturingYear", strconv.Itoa(v.ManufacturingYear))
	}
	addText(vehicle, "FuelType", v.FuelType)
	addText(vehicle, "City", v.City)
	addText(vehicle, "OwnerCount", strconv.Itoa(v.OwnerCount))
	addText(vehicle, "EstimatedOdometer", strconv.Itoa(v.EstimatedOdometer))

	val := root.CreateElement("Valuation")
	val.CreateAttr("engine", v.EngineUsed)
	val.CreateAttr("policy", v.Policy)
	val.CreateAttr("mode", v.Mode)
	addAmount(val, "FairMarketRetailValue", v.FairMarketRetailValue)
	addAmount(val, "DealerPurchasePrice", v.DealerPurchasePrice)
	addAmount(val, "BookValue", v.BookValue)
	addText(val, "BaseDepreciationPercent", strconv.FormatFloat(v.BaseDepreciationPercent, 'f', 2, 64))
	market := val.CreateElement("Market")
	market.CreateAttr("source", v.MarketSource)
	if v.MarketListingsMean != nil {
		market.SetText(strconv.FormatFloat(*v.MarketListingsMean, 'f', 0, 64))
	}

	breakdown := root.CreateElement("Breakdown")
	for i, line := range v.BreakdownLog {
		step := breakdown.CreateElement("Step")
		step.CreateAttr("n", strconv.Itoa(i+1))
		step.SetText(line)
	}

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}
	return out, nil
}

func addText(parent *etree.Element, tag, text string) {
	parent.CreateElement(tag).SetText(text)
}

func addAmount(parent *etree.Element, tag string, amount int64) {
	el := parent.CreateElement(tag)
	el.CreateAttr("currency", "INR")
	el.CreateAttr("display", FormatINR(amount))
	el.SetText(strconv.FormatInt(amount, 10))
}
