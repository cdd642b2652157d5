package utils

import (
	"testing"
	"time"

	"github.com/Dan9191/vehicle-valuation/internal/models"
	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakerFromDescription(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"MARUTI SUZUKI INDIA LTD", "Maruti Suzuki"},
		{"HONDA MOTORCYCLE AND SCOOTER INDIA (P) LTD", "Honda"},
		{"MERCEDES-BENZ INDIA PVT LTD", "Mercedes-Benz"},
		{"JAGUAR LAND ROVER INDIA LIMITED", "JAGUAR"},
		{"", "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MakerFromDescription(tt.in), tt.in)
	}
}

func TestBodyTypeFromRC(t *testing.T) {
	assert.Equal(t, "Hatchback", BodyTypeFromRC("SCOOTER"))
	assert.Equal(t, "SUV", BodyTypeFromRC("muv"))
	assert.Equal(t, "Luxury", BodyTypeFromRC("Coupe"))
	assert.Equal(t, "Sedan", BodyTypeFromRC(" SEDAN "))
	assert.Equal(t, "Hatchback", BodyTypeFromRC("SALOON"))
}

func TestRCHelpers(t *testing.T) {
	assert.Equal(t, "DL08AB1234", NormalizeRCNumber("dl-08 ab 1234"))
	assert.True(t, ValidRCNumber("DL 08 AB 1234"))
	assert.False(t, ValidRCNumber("1234"))
	assert.False(t, ValidRCNumber("DL08AB123X"))
	assert.Equal(t, "DL08", RTOFromRC("DL08AB1234"))
	assert.Equal(t, "DL", RTOFromRC("DL"))
	assert.Equal(t, "SOUTH DELHI", CityFromRegisteredAt("SOUTH DELHI, Delhi"))
	assert.Equal(t, "Pune", CityFromRegisteredAt(" Pune "))
	assert.Equal(t, "Pearl White", TitleCase("PEARL  WHITE"))
	assert.Equal(t, "", TitleCase("  "))
}

func TestFormatINR(t *testing.T) {
	assert.Equal(t, "Rs 0", FormatINR(0))
	assert.Equal(t, "Rs 999", FormatINR(999))
	assert.Equal(t, "Rs 1,000", FormatINR(1000))
	assert.Equal(t, "Rs 1,00,000", FormatINR(100000))
	assert.Equal(t, "Rs 16,23,000", FormatINR(1623000))
	assert.Equal(t, "Rs -3,82,674", FormatINR(-382674))
}

func TestBuildValuationCertificate(t *testing.T) {
	market := 425000.0
	rec := models.ValuationRecord{
		UID:                   "uid-1",
		RCNumber:              "MH02AB1234",
		Make:                  "Maruti Suzuki",
		Model:                 "Swift",
		ManufacturingYear:     2021,
		EngineUsed:            "ICE",
		Policy:                "dual-engine",
		Mode:                  "resale",
		FairMarketRetailValue: 382674,
		DealerPurchasePrice:   336407,
		BookValue:             380250,
		MarketListingsMean:    &market,
		MarketSource:          models.MarketSourceRequest,
		BreakdownLog:          []string{"first", "second"},
	}

	out, err := BuildValuationCertificate(rec, time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	root := doc.SelectElement("ValuationCertificate")
	require.NotNil(t, root)
	assert.Equal(t, "2026-10-15T10:00:00Z", root.SelectAttrValue("issued_at", ""))

	retail := doc.FindElement("//Valuation/FairMarketRetailValue")
	require.NotNil(t, retail)
	assert.Equal(t, "382674", retail.Text())
	assert.Equal(t, "Rs 3,82,674", retail.SelectAttrValue("display", ""))
	assert.Equal(t, "425000", doc.FindElement("//Valuation/Market").Text())
	assert.Len(t, doc.FindElements("//Breakdown/Step"), 2)
	assert.Equal(t, "MH02AB1234", doc.FindElement("//Vehicle").SelectAttrValue("rc_number", ""))
}
