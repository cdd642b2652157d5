package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Dan9191/vehicle-valuation/internal/cache"
	"github.com/Dan9191/vehicle-valuation/internal/integrations/gemini"
	"github.com/Dan9191/vehicle-valuation/internal/models"
	"github.com/Dan9191/vehicle-valuation/internal/repository"
	"github.com/Dan9191/vehicle-valuation/internal/utils"
	"github.com/Dan9191/vehicle-valuation/internal/valuation"
	"github.com/google/uuid"
)

// IDVResponse is a persisted IDV calculation
type IDVResponse struct {
	UID string `json:"uid"`
	*valuation.IDVResult
	ReviewNotified bool      `json:"review_notified"`
	CreatedAt      time.Time `json:"created_at"`
}

// CalculateIDV computes an insurance declared value. For the monthly-linear policy a
// missing or stale market mean is filled from stored snapshots, the cache or the oracle.
func (s *Service) CalculateIDV(ctx context.Context, req valuation.IDVRequest) (*IDVResponse, error) {
	req.RegistrationNumber = utils.NormalizeRCNumber(req.RegistrationNumber)

	linear := strings.EqualFold(strings.TrimSpace(req.Policy), valuation.PolicyMonthlyLinear)
	if linear && req.MarketListingsMean <= 0 {
		if !s.fillIDVMarket(ctx, &req) {
			s.refreshIDVMarket(ctx, &req)
		}
	}

	res, err := s.idv.Calculate(req)
	if err != nil {
		return nil, err
	}
	if res.Status == valuation.IDVStatusMarketRefreshRequired && s.refreshIDVMarket(ctx, &req) {
		if res, err = s.idv.Calculate(req); err != nil {
			return nil, err
		}
	}

	notified := false
	if res.NeedsReview() && s.notifier != nil {
		if err := s.notifier.SendReviewRequired(res); err != nil {
			s.log.Warnf("IDV for %s needs review but the desk was not notified: %v", req.RegistrationNumber, err)
		} else {
			notified = true
		}
	}

	rec := &models.IDVRecord{
		UID:              uuid.NewString(),
		RCNumber:         req.RegistrationNumber,
		Policy:           res.Policy,
		Status:           res.Status,
		IDV:              res.IDV,
		ValidationStatus: res.ValidationStatus,
		ConfidenceScore:  res.ConfidenceScore,
		ReviewNotified:   notified,
		BreakdownLog:     res.BreakdownLog,
	}
	if err := s.repo.SaveIDV(ctx, rec); err != nil {
		return nil, err
	}

	label := res.ValidationStatus
	if label == "" {
		label = res.Status
	}
	s.metrics.IncrementIDV(res.Policy, label)
	s.log.Infof("IDV saved: %s %s idv=%d status=%s", rec.UID, rec.Policy, rec.IDV, rec.Status)

	return &IDVResponse{UID: rec.UID, IDVResult: res, ReviewNotified: notified, CreatedAt: rec.CreatedAt}, nil
}

// fillIDVMarket copies the newest stored market mean and its age into the request
func (s *Service) fillIDVMarket(ctx context.Context, req *valuation.IDVRequest) bool {
	key := req.CacheKey()

	snap, err := s.repo.LatestMarketSnapshot(ctx, key.String())
	if err == nil {
		req.MarketListingsMean = snap.ListingsMean
		req.MarketCacheAgeDays = snap.AgeDays(s.now())
		return true
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.log.Warnf("Market snapshot lookup failed for %s: %v", key, err)
	}

	if s.cache == nil {
		return false
	}
	est, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warnf("Oracle cache read failed for %s: %v", key, err)
		}
		return false
	}
	req.MarketListingsMean = est.Price
	req.MarketCacheAgeDays = int(s.now().Sub(est.EstimatedAt).Hours() / 24)
	return true
}

// refreshIDVMarket replaces the request's market mean with a fresh oracle estimate
func (s *Service) refreshIDVMarket(ctx context.Context, req *valuation.IDVRequest) bool {
	key := req.CacheKey()
	spec := gemini.VehicleSpec{
		Make:              req.Make,
		Model:             req.BaseModel,
		Variant:           req.Variant,
		FuelType:          string(req.FuelType),
		Transmission:      req.Transmission,
		ManufacturingYear: key.ManufacturingYear,
		City:              req.City,
		OwnerCount:        req.OwnerCount,
	}
	est, ok := s.askOracle(ctx, spec)
	if !ok {
		return false
	}
	s.log.Infof("Market data refreshed for %s: %.0f", key, est.Price)
	req.MarketListingsMean = est.Price
	req.MarketCacheAgeDays = 0
	return true
}
