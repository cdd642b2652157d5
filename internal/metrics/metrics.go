package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the valuation service.
// All methods are safe on a nil receiver.
type Metrics struct {
	Valuations        *prometheus.CounterVec
	ValuationFailures *prometheus.CounterVec
	ValuationLatency  prometheus.Histogram
	MarketSource      *prometheus.CounterVec
	OracleLatency     prometheus.Histogram
	IDVCalculations   *prometheus.CounterVec
	BatchSize         prometheus.Histogram
	SnapshotsPurged   prometheus.Counter
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Valuations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "valuation_requests_total",
			Help: "Completed valuations by engine and policy",
		}, []string{"engine", "policy"}),

		ValuationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "valuation_failures_total",
			Help: "Failed valuations by orchestrator stage",
		}, []string{"stage"}),

		ValuationLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "valuation_duration_seconds",
			Help:    "Duration of a valuation including market lookup and persistence",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		MarketSource: f.NewCounterVec(prometheus.CounterOpts{
			Name: "valuation_market_source_total",
			Help: "Where the market listings mean of a valuation came from",
		}, []string{"source"}), // request, snapshot, cache, oracle, none

		OracleLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "valuation_oracle_duration_seconds",
			Help:    "Duration of price oracle calls",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),

		IDVCalculations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "idv_calculations_total",
			Help: "IDV calculations by policy and validation status",
		}, []string{"policy", "validation"}),

		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "valuation_batch_size",
			Help:    "Number of vehicles per batch request",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		}),

		SnapshotsPurged: f.NewCounter(prometheus.CounterOpts{
			Name: "valuation_market_snapshots_purged_total",
			Help: "Market snapshots deleted by the retention job",
		}),
	}
}

// IncrementValuation records a completed valuation
func (m *Metrics) IncrementValuation(engine, policy string) {
	if m != nil {
		m.Valuations.WithLabelValues(engine, policy).Inc()
	}
}

// IncrementFailure records a valuation that failed at stage
func (m *Metrics) IncrementFailure(stage string) {
	if m != nil {
		m.ValuationFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveValuation records the duration of a valuation started at start
func (m *Metrics) ObserveValuation(start time.Time) {
	if m != nil {
		m.ValuationLatency.Observe(time.Since(start).Seconds())
	}
}

// IncrementMarketSource records where market data was found
func (m *Metrics) IncrementMarketSource(source string) {
	if m != nil {
		m.MarketSource.WithLabelValues(source).Inc()
	}
}

// ObserveOracle records the duration of an oracle call
func (m *Metrics) ObserveOracle(d time.Duration) {
	if m != nil {
		m.OracleLatency.Observe(d.Seconds())
	}
}

// IncrementIDV records an IDV calculation
func (m *Metrics) IncrementIDV(policy, validation string) {
	if m != nil {
		m.IDVCalculations.WithLabelValues(policy, validation).Inc()
	}
}

// ObserveBatch records the size of a batch request
func (m *Metrics) ObserveBatch(n int) {
	if m != nil {
		m.BatchSize.Observe(float64(n))
	}
}

// AddPurged records deleted market snapshots
func (m *Metrics) AddPurged(n int64) {
	if m != nil {
		m.SnapshotsPurged.Add(float64(n))
	}
}
