package service

import (
	"context"
	"time"

	"github.com/Dan9191/vehicle-valuation/internal/integrations/gemini"
	"github.com/Dan9191/vehicle-valuation/internal/models"
	"github.com/Dan9191/vehicle-valuation/internal/valuation"
	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) UpsertRCDetails(ctx context.Context, rc *models.RCDetails) error {
	return m.Called(ctx, rc).Error(0)
}

func (m *mockStore) GetRCDetails(ctx context.Context, rcNumber string) (*models.RCDetails, error) {
	args := m.Called(ctx, rcNumber)
	if v := args.Get(0); v != nil {
		return v.(*models.RCDetails), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) SaveValuation(ctx context.Context, v *models.ValuationRecord) error {
	return m.Called(ctx, v).Error(0)
}

func (m *mockStore) ValuationHistory(ctx context.Context, rcNumber string) ([]models.ValuationRecord, error) {
	args := m.Called(ctx, rcNumber)
	v, _ := args.Get(0).([]models.ValuationRecord)
	return v, args.Error(1)
}

func (m *mockStore) RecentValuations(ctx context.Context, limit int) ([]models.ValuationRecord, error) {
	args := m.Called(ctx, limit)
	v, _ := args.Get(0).([]models.ValuationRecord)
	return v, args.Error(1)
}

func (m *mockStore) SimilarVehicles(ctx context.Context, state string, year int, fuelType, model string, limit int) ([]models.SimilarVehicle, error) {
	args := m.Called(ctx, state, year, fuelType, model, limit)
	v, _ := args.Get(0).([]models.SimilarVehicle)
	return v, args.Error(1)
}

func (m *mockStore) SaveIDV(ctx context.Context, rec *models.IDVRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockStore) SaveMarketSnapshot(ctx context.Context, snap *models.MarketSnapshot) error {
	return m.Called(ctx, snap).Error(0)
}

func (m *mockStore) LatestMarketSnapshot(ctx context.Context, cacheKey string) (*models.MarketSnapshot, error) {
	args := m.Called(ctx, cacheKey)
	if v := args.Get(0); v != nil {
		return v.(*models.MarketSnapshot), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) PurgeMarketSnapshots(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) Estimate(ctx context.Context, spec gemini.VehicleSpec) (gemini.OracleEstimate, error) {
	args := m.Called(ctx, spec)
	return args.Get(0).(gemini.OracleEstimate), args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key valuation.MarketCacheKey) (gemini.OracleEstimate, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(gemini.OracleEstimate), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, key valuation.MarketCacheKey, est gemini.OracleEstimate) error {
	return m.Called(ctx, key, est).Error(0)
}

type mockRCLookup struct {
	mock.Mock
}

func (m *mockRCLookup) FetchVehicleDetails(ctx context.Context, rcNumber string) (*models.RCDetails, error) {
	args := m.Called(ctx, rcNumber)
	if v := args.Get(0); v != nil {
		return v.(*models.RCDetails), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendReviewRequired(res *valuation.IDVResult) error {
	return m.Called(res).Error(0)
}
