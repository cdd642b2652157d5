package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/vehicle-valuation/internal/valuation"
	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// ErrNoEstimate is returned when the model answers without a usable price
var ErrNoEstimate = errors.New("oracle returned no usable estimate")

// VehicleSpec describes the vehicle whose used-market price is requested
type VehicleSpec struct {
	Make              string `json:"make"`
	Model             string `json:"model"`
	Variant           string `json:"variant,omitempty"`
	FuelType          string `json:"fuel_type"`
	Transmission      string `json:"transmission,omitempty"`
	ManufacturingYear int    `json:"manufacturing_year"`
	City              string `json:"city"`
	Odometer          int    `json:"odometer,omitempty"`
	OwnerCount        int    `json:"owner_count,omitempty"`
}

// CacheKey is the market segment the estimate applies to
func (s VehicleSpec) CacheKey() valuation.MarketCacheKey {
	return valuation.NewMarketCacheKey(s.Make, s.Model, s.FuelType, s.Transmission, s.ManufacturingYear, s.City)
}

// OracleEstimate is a market listings mean with the model's confidence on a 0-1 scale
type OracleEstimate struct {
	Price        float64   `json:"price"`
	Confidence   float64   `json:"confidence"`
	ListingCount int       `json:"listing_count,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	EstimatedAt  time.Time `json:"estimated_at"`
}

// Generator produces a text completion for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type modelGenerator struct {
	model *genai.GenerativeModel
}

func (g modelGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no content returned from AI")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("response part is not text, received %T", resp.Candidates[0].Content.Parts[0])
	}
	return string(text), nil
}

// Oracle estimates used-car market prices with Gemini
type Oracle struct {
	client  *genai.Client
	gen     Generator
	limiter *rate.Limiter
	log     *logrus.Logger
	now     func() time.Time
}

// NewOracle connects to Gemini with an API key. Requests are throttled to rps per second.
func NewOracle(ctx context.Context, apiKey, modelName string, rps float64, log *logrus.Logger) (*Oracle, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai client init failed: %w", err)
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"

	o := NewOracleWithGenerator(modelGenerator{model: model}, rps, log)
	o.client = client
	return o, nil
}

// NewOracleWithGenerator builds an oracle over any text generator
func NewOracleWithGenerator(gen Generator, rps float64, log *logrus.Logger) *Oracle {
	return &Oracle{
		gen:     gen,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     log,
		now:     time.Now,
	}
}

// Close releases the Gemini client
func (o *Oracle) Close() error {
	if o.client == nil {
		return nil
	}
	return o.client.Close()
}

// Estimate asks the model for the mean asking price of comparable listings
func (o *Oracle) Estimate(ctx context.Context, spec VehicleSpec) (OracleEstimate, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return OracleEstimate{}, fmt.Errorf("oracle rate limit wait: %w", err)
	}

	start := o.now()
	text, err := o.gen.Generate(ctx, buildPrompt(spec))
	if err != nil {
		return OracleEstimate{}, err
	}
	est, err := parseEstimate(text)
	if err != nil {
		return OracleEstimate{}, err
	}
	est.EstimatedAt = o.now()

	o.log.Infof("Oracle estimate for %s: %.0f (confidence %.2f, %d listings) in %s",
		spec.CacheKey(), est.Price, est.Confidence, est.ListingCount, est.EstimatedAt.Sub(start))
	return est, nil
}

func buildPrompt(s VehicleSpec) string {
	var b strings.Builder
	b.WriteString("You are a used-car pricing analyst for the Indian market.\n")
	b.WriteString("Estimate the mean asking price in INR of current used listings (CarDekho, CarWale, OLX, Droom, Spinny, Cars24) for this vehicle:\n")
	fmt.Fprintf(&b, "- Make: %s\n- Model: %s\n", s.Make, s.Model)
	if s.Variant != "" {
		fmt.Fprintf(&b, "- Variant: %s\n", s.Variant)
	}
	fmt.Fprintf(&b, "- Fuel: %s\n", s.FuelType)
	if s.Transmission != "" {
		fmt.Fprintf(&b, "- Transmission: %s\n", s.Transmission)
	}
	fmt.Fprintf(&b, "- Manufacturing year: %d\n- City: %s\n", s.ManufacturingYear, s.City)
	if s.Odometer > 0 {
		fmt.Fprintf(&b, "- Odometer: %d km\n", s.Odometer)
	}
	if s.OwnerCount > 0 {
		fmt.Fprintf(&b, "- Owners: %d\n", s.OwnerCount)
	}
	b.WriteString("Only use listings of the same model, fuel and year within the last 30 days. ")
	b.WriteString("If listings are sparse, lower the confidence instead of guessing.\n")
	b.WriteString(`Respond with JSON only: {"market_listings_mean": <number>, "listing_count": <integer>, "confidence_score": <0-100>, "notes": "<short>"}`)
	return b.String()
}

type rawEstimate struct {
	MarketListingsMean float64 `json:"market_listings_mean"`
	ListingCount       int     `json:"listing_count"`
	ConfidenceScore    float64 `json:"confidence_score"`
	Notes              string  `json:"notes"`
}

// parseEstimate reads the JSON answer, with or without a markdown fence
func parseEstimate(text string) (OracleEstimate, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	cleaned = strings.TrimSpace(cleaned)

	var raw rawEstimate
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return OracleEstimate{}, fmt.Errorf("failed to unmarshal AI response to JSON: %w. Raw response was: %s", err, cleaned)
	}
	if raw.MarketListingsMean <= 0 {
		return OracleEstimate{}, ErrNoEstimate
	}

	confidence := raw.ConfidenceScore
	if confidence > 1 {
		confidence /= 100
	}
	confidence = min(max(confidence, 0), 1)

	return OracleEstimate{
		Price:        raw.MarketListingsMean,
		Confidence:   confidence,
		ListingCount: raw.ListingCount,
		Notes:        raw.Notes,
	}, nil
}
