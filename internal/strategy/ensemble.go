package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"intrabar/internal/logger"
	"intrabar/internal/market"
	"intrabar/internal/risk"
	"intrabar/internal/signal"
)

// Source is one raw (pre-risk-filter) signal generator in an ensemble, with
// its vote weight.
type Source struct {
	Generator signal.Generator
	Weight    float64
}

// SourceStatus records the outcome of a source's last precompute. A failed
// source degrades to an all-none contribution instead of aborting the
// ensemble; the failure stays observable here rather than being swallowed.
type SourceStatus struct {
	Name    string
	Healthy bool
	Err     error
}

// EnsembleStrategy combines raw signal sources by weighted voting. The class
// with the highest accumulated weight wins only if that weight meets the
// minimum agreement; ties resolve in the fixed order BUY, SELL, CLOSE.
// Weights are not renormalized after a source failure, so a failed source
// makes the agreement threshold marginally harder to reach.
type EnsembleStrategy struct {
	sources      []Source
	minAgreement float64
	risk         *risk.Manager

	cached      [][]signal.Signal // per source, per row
	statuses    []SourceStatus
	precomputed bool

	log *logger.Logger
}

// NewEnsemble creates an ensemble. The risk manager may be nil.
func NewEnsemble(sources []Source, minAgreement float64, rm *risk.Manager) (*EnsembleStrategy, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("ensemble requires at least one source")
	}
	if minAgreement <= 0 {
		return nil, fmt.Errorf("min agreement must be positive, got %.3f", minAgreement)
	}
	for i, src := range sources {
		if src.Weight <= 0 {
			return nil, fmt.Errorf("source %d (%s) has non-positive weight %.3f", i, src.Generator.Name(), src.Weight)
		}
	}
	return &EnsembleStrategy{
		sources:      sources,
		minAgreement: minAgreement,
		risk:         rm,
		log:          logger.Component("ensemble"),
	}, nil
}

// PrecomputeSignals evaluates every source over the whole table. A source
// that fails (error or panic inside its generator) is isolated: its rows
// become all-none, a warning is logged, its status records the error, and
// the remaining sources are unaffected.
func (e *EnsembleStrategy) PrecomputeSignals(ticks []market.Tick) error {
	e.cached = make([][]signal.Signal, len(e.sources))
	e.statuses = make([]SourceStatus, len(e.sources))

	for i, src := range e.sources {
		sigs, err := safeSignals(src.Generator, ticks)
		if err == nil && len(sigs) != len(ticks) {
			err = fmt.Errorf("generator returned %d signals for %d ticks", len(sigs), len(ticks))
		}
		if err != nil {
			e.log.WithError(err).Warn("signal source failed, degrading to all-none",
				"source", src.Generator.Name())
			e.cached[i] = make([]signal.Signal, len(ticks))
			e.statuses[i] = SourceStatus{Name: src.Generator.Name(), Healthy: false, Err: err}
			continue
		}
		e.cached[i] = sigs
		e.statuses[i] = SourceStatus{Name: src.Generator.Name(), Healthy: true}
	}

	e.precomputed = true
	return nil
}

// SignalAt accumulates the weight of every source voting for each class at
// index. The winning class must meet the minimum agreement weight; if a risk
// manager is attached, the winner is additionally gated through it.
func (e *EnsembleStrategy) SignalAt(index int, position int64, equity decimal.Decimal, ret float64) (signal.Signal, error) {
	if !e.precomputed {
		return signal.None, ErrNotPrecomputed
	}
	if index < 0 || (len(e.cached) > 0 && index >= len(e.cached[0])) {
		return signal.None, fmt.Errorf("ensemble: index %d out of range", index)
	}

	tally := make(map[signal.Signal]float64, 3)
	for i, src := range e.sources {
		if v := e.cached[i][index]; v != signal.None {
			tally[v] += src.Weight
		}
	}

	best := signal.None
	bestWeight := 0.0
	for _, s := range voteOrder {
		if w, ok := tally[s]; ok && w > bestWeight {
			best = s
			bestWeight = w
		}
	}
	if best == signal.None || bestWeight < e.minAgreement {
		return signal.None, nil
	}

	if e.risk != nil && !e.risk.CanTrade(best, position, equity, ret) {
		return signal.None, nil
	}
	return best, nil
}

// Statuses returns the per-source health records from the last precompute.
func (e *EnsembleStrategy) Statuses() []SourceStatus {
	return append([]SourceStatus(nil), e.statuses...)
}

// safeSignals runs a generator, converting a panic into an error so one
// misbehaving source cannot crash the ensemble.
func safeSignals(gen signal.Generator, ticks []market.Tick) (sigs []signal.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("signal source panicked: %v", r)
		}
	}()
	return gen.Signals(ticks)
}
