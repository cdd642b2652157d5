package utils

import (
	"strings"
	"unicode"
)

var makerNames = []struct {
	key  string
	name string
}{
	{"HONDA", "Honda"},
	{"MARUTI", "Maruti Suzuki"},
	{"SUZUKI", "Maruti Suzuki"},
	{"HYUNDAI", "Hyundai"},
	{"TATA", "Tata"},
	{"MAHINDRA", "Mahindra"},
	{"TOYOTA", "Toyota"},
	{"KIA", "Kia"},
	{"FORD", "Ford"},
	{"VOLKSWAGEN", "Volkswagen"},
	{"SKODA", "Skoda"},
	{"RENAULT", "Renault"},
	{"NISSAN", "Nissan"},
	{"MERCEDES", "Mercedes-Benz"},
	{"BMW", "BMW"},
	{"AUDI", "Audi"},
}

var bodyTypes = map[string]string{
	"SCOOTER":     "Hatchback",
	"MOTORCYCLE":  "Hatchback",
	"HATCHBACK":   "Hatchback",
	"SEDAN":       "Sedan",
	"SUV":         "SUV",
	"MUV":         "SUV",
	"LUXURY":      "Luxury",
	"COUPE":       "Luxury",
	"CONVERTIBLE": "Luxury",
}

// NormalizeRCNumber strips spaces and dashes and upper-cases a registration number
func NormalizeRCNumber(rc string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(rc) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidRCNumber reports whether rc looks like an Indian registration number
func ValidRCNumber(rc string) bool {
	n := NormalizeRCNumber(rc)
	if len(n) < 6 || len(n) > 11 {
		return false
	}
	return unicode.IsLetter(rune(n[0])) && unicode.IsLetter(rune(n[1])) && unicode.IsDigit(rune(n[len(n)-1]))
}

// MakerFromDescription extracts the manufacturer brand from an RC maker description,
// e.g. "MARUTI SUZUKI INDIA LTD" -> "Maruti Suzuki"
func MakerFromDescription(desc string) string {
	upper := strings.ToUpper(desc)
	for _, m := range makerNames {
		if strings.Contains(upper, m.key) {
			return m.name
		}
	}
	fields := strings.Fields(desc)
	if len(fields) == 0 {
		return "Unknown"
	}
	return fields[0]
}

// BodyTypeFromRC maps an RC body type onto the dealer pricing categories.
// Two-wheelers and unknown bodies price as Hatchback.
func BodyTypeFromRC(body string) string {
	if v, ok := bodyTypes[strings.ToUpper(strings.TrimSpace(body))]; ok {
		return v
	}
	return "Hatchback"
}

// RTOFromRC returns the state and district prefix of a registration number (DL08AB1234 -> DL08)
func RTOFromRC(rc string) string {
	n := NormalizeRCNumber(rc)
	if len(n) >= 4 {
		return n[:4]
	}
	return n
}

// CityFromRegisteredAt returns the text before the first comma of an RC registering authority
func CityFromRegisteredAt(registeredAt string) string {
	city, _, _ := strings.Cut(registeredAt, ",")
	return strings.TrimSpace(city)
}

// TitleCase upper-cases the first letter of every word and lower-cases the rest
func TitleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
