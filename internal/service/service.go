package service

import (
	"context"
	"errors"
	"time"

	"github.com/Dan9191/vehicle-valuation/internal/config"
	"github.com/Dan9191/vehicle-valuation/internal/integrations/gemini"
	"github.com/Dan9191/vehicle-valuation/internal/metrics"
	"github.com/Dan9191/vehicle-valuation/internal/models"
	"github.com/Dan9191/vehicle-valuation/internal/valuation"
	"github.com/sirupsen/logrus"
)

var (
	// ErrRCLookupUnavailable is returned when an RC is unknown locally and no registry client is configured
	ErrRCLookupUnavailable = errors.New("rc registry lookup is not available")
	// ErrBatchTooLarge is returned for batches above MaxBatchSize
	ErrBatchTooLarge = errors.New("batch too large")
)

// MaxBatchSize caps the number of vehicles in one batch request
const MaxBatchSize = 100

// Store is the persistence the service needs
type Store interface {
	Ping(ctx context.Context) error
	UpsertRCDetails(ctx context.Context, rc *models.RCDetails) error
	GetRCDetails(ctx context.Context, rcNumber string) (*models.RCDetails, error)
	SaveValuation(ctx context.Context, v *models.ValuationRecord) error
	ValuationHistory(ctx context.Context, rcNumber string) ([]models.ValuationRecord, error)
	RecentValuations(ctx context.Context, limit int) ([]models.ValuationRecord, error)
	SimilarVehicles(ctx context.Context, state string, year int, fuelType, model string, limit int) ([]models.SimilarVehicle, error)
	SaveIDV(ctx context.Context, rec *models.IDVRecord) error
	SaveMarketSnapshot(ctx context.Context, m *models.MarketSnapshot) error
	LatestMarketSnapshot(ctx context.Context, cacheKey string) (*models.MarketSnapshot, error)
	PurgeMarketSnapshots(ctx context.Context, before time.Time) (int64, error)
}

// PriceOracle estimates the used-market listings mean of a vehicle
type PriceOracle interface {
	Estimate(ctx context.Context, spec gemini.VehicleSpec) (gemini.OracleEstimate, error)
}

// EstimateCache keeps oracle estimates per market segment
type EstimateCache interface {
	Get(ctx context.Context, key valuation.MarketCacheKey) (gemini.OracleEstimate, error)
	Set(ctx context.Context, key valuation.MarketCacheKey, est gemini.OracleEstimate) error
}

// RCLookup fetches registration details from the RC registry
type RCLookup interface {
	FetchVehicleDetails(ctx context.Context, rcNumber string) (*models.RCDetails, error)
}

// ReviewNotifier tells the underwriting desk about IDVs that need manual review
type ReviewNotifier interface {
	SendReviewRequired(res *valuation.IDVResult) error
}

// Option configures optional collaborators of the service
type Option func(*Service)

// WithOracle enables the price oracle fallback
func WithOracle(o PriceOracle) Option {
	return func(s *Service) { s.oracle = o }
}

// WithCache enables the oracle estimate cache
func WithCache(c EstimateCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithRCLookup enables RC registry lookups
func WithRCLookup(l RCLookup) Option {
	return func(s *Service) { s.rc = l }
}

// WithNotifier enables review e-mails
func WithNotifier(n ReviewNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics attaches Prometheus collectors
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service handles business logic
type Service struct {
	repo     Store
	engine   *valuation.Engine
	idv      *valuation.IDVCalculator
	oracle   PriceOracle
	cache    EstimateCache
	rc       RCLookup
	notifier ReviewNotifier
	metrics  *metrics.Metrics
	log      *logrus.Logger
	config   *config.Config
	now      func() time.Time
}

// NewService initializes a new service
func NewService(repo Store, engine *valuation.Engine, log *logrus.Logger, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		engine: engine,
		log:    log,
		config: cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.idv = valuation.NewIDVCalculator(s.now)
	return s
}

// Health checks the database connection
func (s *Service) Health(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
