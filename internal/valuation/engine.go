package valuation

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// Stage is one state of a valuation run
type Stage string

const (
	StageNormalizing     Stage = "Normalizing"
	StageRoutingEngine   Stage = "RoutingEngine"
	StageEngineComputing Stage = "EngineComputing"
	StageBlending        Stage = "Blending"
	StageDealerPricing   Stage = "DealerPricing"
	StageDone            Stage = "Done"
)

// StageError reports the stage a valuation failed in
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("valuation failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Option tunes an Engine
type Option func(*Engine)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger attaches a logger for stage transitions
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// WithResalePolicy swaps the grid policy used by the ICE engine
func WithResalePolicy(p DepreciationPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// Engine is the valuation orchestrator. It is immutable after construction and
// safe for concurrent use.
type Engine struct {
	cfg        Config
	policy     DepreciationPolicy
	normalizer Normalizer
	ice        ICEEngine
	ev         EVEngine
	now        func() time.Time
	log        logrus.FieldLogger
}

// NewEngine validates the table and builds the sub-engines
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg: cfg.clone(),
		now: time.Now,
		log: discardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.policy == nil {
		e.policy = NewGridPolicy(e.cfg.Preset, e.cfg.ICE)
	}
	e.normalizer = NewNormalizer(e.cfg)
	e.ice = NewICEEngine(e.cfg, e.policy)
	e.ev = NewEVEngine(e.cfg)
	return e, nil
}

// Config returns a copy of the active table
func (e *Engine) Config() Config {
	return e.cfg.clone()
}

// PolicyName is the resale depreciation policy in use
func (e *Engine) PolicyName() string {
	return e.policy.Name()
}

// Value runs one valuation: Normalizing, RoutingEngine, EngineComputing, Blending,
// DealerPricing, Done. Any failure aborts the run and no partial result is returned.
func (e *Engine) Value(attrs VehicleAttributes, mode Mode) (*Result, error) {
	attrs.FuelType = ParseFuelType(string(attrs.FuelType))
	attrs.BodyType = ParseBodyType(string(attrs.BodyType))
	var log auditLog

	stage := StageNormalizing
	m, err := e.normalizer.Normalize(attrs, mode, e.now(), &log)
	if err != nil {
		return nil, e.fail(stage, attrs, err)
	}

	stage = StageRoutingEngine
	if m.Engine == EngineEV {
		err = e.ev.Validate(attrs)
	} else {
		err = e.ice.Validate(attrs)
		if attrs.hasBatteryFields() {
			log.add("Battery fields ignored for %s vehicle.", attrs.FuelType)
		}
	}
	if err != nil {
		return nil, e.fail(stage, attrs, err)
	}
	log.add("Routed to %s engine.", m.Engine)

	var market float64
	if attrs.MarketListingsMean != nil {
		market = *attrs.MarketListingsMean
	}

	res := &Result{
		EngineUsed: m.Engine,
		Policy:     e.policy.Name(),
		Mode:       mode,
		Metadata: Metadata{
			AgeYears:                 round2(m.AgeYears),
			AgeMonths:                m.AgeMonths,
			EstimatedOdometer:        m.Odometer,
			AvgAnnualRunning:         int(math.Round(m.AvgAnnualKm)),
			RegionalAdjustmentFactor: 1,
		},
	}

	var retail float64
	if m.Engine == EngineEV {
		stage = StageEngineComputing
		out, err := e.ev.Intrinsic(attrs, m, &log)
		if err != nil {
			return nil, e.fail(stage, attrs, err)
		}
		stage = StageBlending
		e.ev.Converge(&out, market, m.AgeYears, &log)
		retail = out.retail
		res.Metadata.BookValue = roundRupees(out.runningValue)
		res.EV = &EVDetail{
			StateOfHealth:       round4(out.soh),
			CostPerKWh:          math.Round(out.costPerKWh),
			BatteryRunningValue: roundRupees(out.runningValue),
		}
	} else {
		stage = StageEngineComputing
		out, err := e.ice.Intrinsic(attrs, m, &log)
		if err != nil {
			return nil, e.fail(stage, attrs, err)
		}
		stage = StageBlending
		if !out.scrapped {
			e.ice.Converge(&out, market, m.AgeYears, &log)
		}
		retail = out.retail
		res.Scrapped = out.scrapped
		res.Metadata.BookValue = roundRupees(out.book)
		res.Metadata.BaseDepreciationPercent = round2(out.baseDepreciation * 100)
		res.Metadata.RegionalAdjustmentFactor = round4(out.regionalFactor)
	}

	stage = StageDealerPricing
	res.FairMarketRetailValue = roundRupees(retail)
	offer, meta := DealerOffer(e.cfg.Dealer, float64(res.FairMarketRetailValue), attrs.BodyType, m.Engine)
	res.DealerPurchasePrice = roundRupees(offer)
	res.Dealer = meta
	log.add("Dealer margin %.0f%%, refurbishment Rs %.0f. Dealer purchase price = %d",
		meta.MarginPct*100, meta.Refurbishment, res.DealerPurchasePrice)

	res.BreakdownLog = log
	e.log.WithFields(logrus.Fields{
		"engine": m.Engine,
		"make":   attrs.Make,
		"model":  attrs.Model,
		"retail": res.FairMarketRetailValue,
		"stage":  StageDone,
	}).Debug("Valuation completed")
	return res, nil
}

func (e *Engine) fail(stage Stage, attrs VehicleAttributes, err error) error {
	e.log.WithFields(logrus.Fields{
		"stage": stage,
		"make":  attrs.Make,
		"model": attrs.Model,
	}).Warnf("Valuation aborted: %v", err)
	return &StageError{Stage: stage, Err: err}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func roundRupees(v float64) int64 {
	return int64(math.Round(v))
}

// roundToNearest rounds v to the nearest multiple of step
func roundToNearest(v, step float64) int64 {
	if step <= 0 {
		return roundRupees(v)
	}
	return int64(math.Round(v/step)) * int64(step)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
