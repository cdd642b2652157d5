package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/vehicle-valuation/internal/cache"
	"github.com/Dan9191/vehicle-valuation/internal/integrations/gemini"
	"github.com/Dan9191/vehicle-valuation/internal/models"
	"github.com/Dan9191/vehicle-valuation/internal/repository"
	"github.com/Dan9191/vehicle-valuation/internal/utils"
	"github.com/Dan9191/vehicle-valuation/internal/valuation"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Oracle answers below this confidence are not used for pricing
const minOracleConfidence = 0.3

// ValuationRequest is a manually entered vehicle
type ValuationRequest struct {
	valuation.VehicleAttributes
	RCNumber     string `json:"rc_number,omitempty"`
	Transmission string `json:"transmission,omitempty"`
}

// RCValuationRequest values a vehicle whose attributes come from the RC registry
type RCValuationRequest struct {
	RCNumber              string   `json:"rc_number"`
	CurrentExShowroom     float64  `json:"current_ex_showroom"`
	BodyType              string   `json:"body_type,omitempty"`
	Transmission          string   `json:"transmission,omitempty"`
	HistoricalOnRoadPrice *float64 `json:"historical_onroad_price,omitempty"`
	MarketListingsMean    *float64 `json:"market_listings_mean,omitempty"`
	Odometer              *int     `json:"odometer,omitempty"`
	BatteryCapacityKWh    *float64 `json:"battery_capacity_kwh,omitempty"`
	BatteryChemistry      string   `json:"battery_chemistry,omitempty"`
	BenchmarkEVPrice      *float64 `json:"current_benchmark_ev_price,omitempty"`
	BenchmarkEVKWh        *float64 `json:"current_benchmark_ev_kwh,omitempty"`
	Refresh               bool     `json:"refresh,omitempty"`
}

// ValuationResponse is a persisted valuation
type ValuationResponse struct {
	UID      string `json:"uid"`
	RCNumber string `json:"rc_number,omitempty"`
	*valuation.Result
	MarketListingsMean *float64  `json:"market_listings_mean,omitempty"`
	MarketSource       string    `json:"market_source"`
	OracleConfidence   *float64  `json:"oracle_confidence,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// BatchItem is the outcome of one vehicle of a batch
type BatchItem struct {
	Index  int                `json:"index"`
	Result *ValuationResponse `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

type marketData struct {
	mean       *float64
	source     string
	confidence *float64
}

// ValueManual values a manually entered vehicle, consulting market data sources when
// the request carries no listings mean
func (s *Service) ValueManual(ctx context.Context, req ValuationRequest) (*ValuationResponse, error) {
	return s.value(ctx, req.VehicleAttributes, utils.NormalizeRCNumber(req.RCNumber), req.Transmission)
}

// ValueByRC looks the RC up (locally first, then in the registry) and values the vehicle
func (s *Service) ValueByRC(ctx context.Context, req RCValuationRequest) (*ValuationResponse, error) {
	if !utils.ValidRCNumber(req.RCNumber) {
		return nil, &valuation.MissingRequiredInputError{Field: "rc_number", Reason: fmt.Sprintf("%q is not a registration number", req.RCNumber)}
	}
	rc, err := s.lookupRC(ctx, req.RCNumber, req.Refresh)
	if err != nil {
		return nil, err
	}

	body := rc.BodyType
	if req.BodyType != "" {
		body = req.BodyType
	}
	attrs := valuation.VehicleAttributes{
		Make:                  rc.Make,
		Model:                 rc.MakerModel,
		FuelType:              valuation.FuelType(rc.FuelType),
		BodyType:              valuation.BodyType(body),
		Color:                 rc.Color,
		OwnerCount:            rc.OwnerCount,
		RegistrationDate:      rc.RegistrationDate,
		ManufacturingDate:     rc.ManufacturingDate,
		RTOCode:               rc.RTOCode,
		City:                  rc.City,
		CurrentExShowroom:     req.CurrentExShowroom,
		HistoricalOnRoadPrice: req.HistoricalOnRoadPrice,
		MarketListingsMean:    req.MarketListingsMean,
		Odometer:              req.Odometer,
		BatteryCapacityKWh:    req.BatteryCapacityKWh,
		BatteryChemistry:      req.BatteryChemistry,
		BenchmarkEVPrice:      req.BenchmarkEVPrice,
		BenchmarkEVKWh:        req.BenchmarkEVKWh,
	}
	return s.value(ctx, attrs, rc.RCNumber, req.Transmission)
}

// ValueBatch values every vehicle independently; one failure does not affect the others
func (s *Service) ValueBatch(ctx context.Context, reqs []ValuationRequest) ([]BatchItem, error) {
	if len(reqs) == 0 {
		return nil, &valuation.MissingRequiredInputError{Field: "vehicles", Reason: "batch is empty"}
	}
	if len(reqs) > MaxBatchSize {
		return nil, fmt.Errorf("%d vehicles (max %d): %w", len(reqs), MaxBatchSize, ErrBatchTooLarge)
	}
	s.metrics.ObserveBatch(len(reqs))

	items := make([]BatchItem, len(reqs))
	var g errgroup.Group
	g.SetLimit(max(s.config.BatchConcurrency, 1))
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			items[i].Index = i
			res, err := s.ValueManual(ctx, req)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Result = res
			return nil
		})
	}
	g.Wait()

	failed := 0
	for _, it := range items {
		if it.Error != "" {
			failed++
		}
	}
	s.log.Infof("Batch valuation finished: %d vehicles, %d failed", len(reqs), failed)
	return items, nil
}

func (s *Service) value(ctx context.Context, attrs valuation.VehicleAttributes, rcNumber, transmission string) (*ValuationResponse, error) {
	start := time.Now()
	defer s.metrics.ObserveValuation(start)

	market := s.resolveMarket(ctx, attrs, transmission)
	attrs.MarketListingsMean = market.mean

	res, err := s.engine.Value(attrs, valuation.ModeResale)
	if err != nil {
		var se *valuation.StageError
		if errors.As(err, &se) {
			s.metrics.IncrementFailure(string(se.Stage))
		}
		return nil, err
	}
	if res.Scrapped {
		market = marketData{source: models.MarketSourceNone}
	}

	rec := &models.ValuationRecord{
		UID:                     uuid.NewString(),
		RCNumber:                rcNumber,
		Make:                    attrs.Make,
		Model:                   attrs.Model,
		ManufacturingYear:       modelYear(attrs),
		FuelType:                string(valuation.ParseFuelType(string(attrs.FuelType))),
		City:                    attrs.City,
		OwnerCount:              attrs.OwnerCount,
		EngineUsed:              string(res.EngineUsed),
		Policy:                  res.Policy,
		Mode:                    string(res.Mode),
		FairMarketRetailValue:   res.FairMarketRetailValue,
		DealerPurchasePrice:     res.DealerPurchasePrice,
		CurrentExShowroom:       attrs.CurrentExShowroom,
		EstimatedOdometer:       res.Metadata.EstimatedOdometer,
		BaseDepreciationPercent: res.Metadata.BaseDepreciationPercent,
		BookValue:               res.Metadata.BookValue,
		MarketListingsMean:      market.mean,
		MarketSource:            market.source,
		OracleConfidence:        market.confidence,
		BreakdownLog:            res.BreakdownLog,
	}
	if err := s.repo.SaveValuation(ctx, rec); err != nil {
		return nil, err
	}

	s.metrics.IncrementValuation(rec.EngineUsed, rec.Policy)
	s.metrics.IncrementMarketSource(rec.MarketSource)
	s.log.Infof("Valuation saved: %s %s %s retail=%d dealer=%d market=%s",
		rec.UID, rec.Make, rec.Model, rec.FairMarketRetailValue, rec.DealerPurchasePrice, rec.MarketSource)

	return &ValuationResponse{
		UID:                rec.UID,
		RCNumber:           rec.RCNumber,
		Result:             res,
		MarketListingsMean: rec.MarketListingsMean,
		MarketSource:       rec.MarketSource,
		OracleConfidence:   rec.OracleConfidence,
		CreatedAt:          rec.CreatedAt,
	}, nil
}

// resolveMarket walks request, stored snapshot, cached estimate and finally the oracle.
// Every failure degrades to the next source and ultimately to an intrinsic-only valuation.
func (s *Service) resolveMarket(ctx context.Context, attrs valuation.VehicleAttributes, transmission string) marketData {
	if attrs.MarketListingsMean != nil && *attrs.MarketListingsMean > 0 {
		return marketData{mean: attrs.MarketListingsMean, source: models.MarketSourceRequest}
	}

	spec := gemini.VehicleSpec{
		Make:              attrs.Make,
		Model:             attrs.Model,
		FuelType:          string(valuation.ParseFuelType(string(attrs.FuelType))),
		Transmission:      transmission,
		ManufacturingYear: modelYear(attrs),
		City:              attrs.City,
		OwnerCount:        attrs.OwnerCount,
	}
	if attrs.Odometer != nil {
		spec.Odometer = *attrs.Odometer
	}
	if spec.Make == "" || spec.Model == "" || spec.ManufacturingYear == 0 {
		return marketData{source: models.MarketSourceNone}
	}
	key := spec.CacheKey()

	snap, err := s.repo.LatestMarketSnapshot(ctx, key.String())
	switch {
	case err == nil && snap.AgeDays(s.now()) <= s.config.SnapshotRetentionDays:
		mean, conf := snap.ListingsMean, snap.Confidence
		return marketData{mean: &mean, source: models.MarketSourceSnapshot, confidence: &conf}
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		s.log.Warnf("Market snapshot lookup failed for %s: %v", key, err)
	}

	if s.cache != nil {
		est, err := s.cache.Get(ctx, key)
		if err == nil {
			return marketData{mean: &est.Price, source: models.MarketSourceCache, confidence: &est.Confidence}
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warnf("Oracle cache read failed for %s: %v", key, err)
		}
	}

	est, ok := s.askOracle(ctx, spec)
	if !ok {
		return marketData{source: models.MarketSourceNone}
	}
	return marketData{mean: &est.Price, source: models.MarketSourceOracle, confidence: &est.Confidence}
}

// askOracle queries the price oracle and stores a usable answer in the cache and as a snapshot
func (s *Service) askOracle(ctx context.Context, spec gemini.VehicleSpec) (gemini.OracleEstimate, bool) {
	if s.oracle == nil {
		return gemini.OracleEstimate{}, false
	}
	key := spec.CacheKey()

	start := time.Now()
	est, err := s.oracle.Estimate(ctx, spec)
	s.metrics.ObserveOracle(time.Since(start))
	if err != nil {
		s.log.Warnf("Price oracle unavailable for %s, valuing without market data: %v", key, err)
		return gemini.OracleEstimate{}, false
	}
	if est.Confidence < minOracleConfidence {
		s.log.Warnf("Ignoring oracle estimate for %s: confidence %.2f below %.2f", key, est.Confidence, minOracleConfidence)
		return gemini.OracleEstimate{}, false
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, est); err != nil {
			s.log.Warnf("Oracle cache write failed for %s: %v", key, err)
		}
	}
	snap := &models.MarketSnapshot{
		CacheKey:     key.String(),
		ListingsMean: est.Price,
		Confidence:   est.Confidence,
		Source:       models.MarketSourceOracle,
	}
	if err := s.repo.SaveMarketSnapshot(ctx, snap); err != nil {
		s.log.Warnf("Market snapshot not stored for %s: %v", key, err)
	}
	return est, true
}

func modelYear(attrs valuation.VehicleAttributes) int {
	for _, d := range []string{attrs.ManufacturingDate, attrs.RegistrationDate} {
		if t, err := valuation.ParseDate(d); err == nil {
			return t.Year()
		}
	}
	return 0
}
