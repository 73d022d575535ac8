// Package strategy composes signal generators with risk management and
// optional regime filtering, in two phases: precompute a signal array over
// the whole table, then replay it tick-by-tick with per-tick vetoes.
package strategy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"intrabar/internal/logger"
	"intrabar/internal/market"
	"intrabar/internal/regime"
	"intrabar/internal/risk"
	"intrabar/internal/signal"
)

// ErrNotPrecomputed is returned when the replay phase is entered before
// PrecomputeSignals has run. This is a caller contract violation, not a
// recoverable state; there is no implicit precompute.
var ErrNotPrecomputed = errors.New("strategy: signals not precomputed")

// RegimeFilter decides whether a signal is allowed under a regime label. A
// false response vetoes the signal before risk is consulted.
type RegimeFilter func(sig signal.Signal, r regime.Regime) bool

// Strategy pairs one signal generator with a risk manager and an optional
// regime filter.
type Strategy struct {
	gen    signal.Generator
	risk   *risk.Manager
	filter RegimeFilter

	cached      []signal.Signal
	precomputed bool

	log *logger.Logger
}

// New creates a strategy. The risk manager and filter may each be nil, in
// which case that veto stage is skipped.
func New(gen signal.Generator, rm *risk.Manager, filter RegimeFilter) *Strategy {
	return &Strategy{
		gen:    gen,
		risk:   rm,
		filter: filter,
		log:    logger.Component("strategy").WithField("generator", gen.Name()),
	}
}

// Name returns the underlying generator's name.
func (s *Strategy) Name() string { return s.gen.Name() }

// PrecomputeSignals runs the generator once over the full table and caches
// the per-row signals, replacing any prior cache.
func (s *Strategy) PrecomputeSignals(ticks []market.Tick) error {
	sigs, err := s.gen.Signals(ticks)
	if err != nil {
		s.cached = nil
		s.precomputed = false
		return fmt.Errorf("precompute %s: %w", s.gen.Name(), err)
	}
	if len(sigs) != len(ticks) {
		s.cached = nil
		s.precomputed = false
		return fmt.Errorf("precompute %s: generator returned %d signals for %d ticks", s.gen.Name(), len(sigs), len(ticks))
	}
	s.cached = sigs
	s.precomputed = true
	return nil
}

// SignalAt reads the cached signal at index and applies, in order, the
// regime filter (when both a filter and a regime label are present) and the
// risk gate. A signal that survives both is returned unchanged; a vetoed
// signal becomes None.
func (s *Strategy) SignalAt(index int, position int64, equity decimal.Decimal, ret float64, reg regime.Regime) (signal.Signal, error) {
	if !s.precomputed {
		return signal.None, ErrNotPrecomputed
	}
	if index < 0 || index >= len(s.cached) {
		return signal.None, fmt.Errorf("strategy: index %d out of range [0, %d)", index, len(s.cached))
	}
	return s.decide(s.cached[index], position, equity, ret, reg), nil
}

// Signal is the non-cached path for incrementally arriving ticks: the
// generator is recomputed over history plus the new tick each call. For the
// same accumulated history it produces the same decision as the indexed
// path.
func (s *Strategy) Signal(tick market.Tick, history []market.Tick, position int64, equity decimal.Decimal, ret float64, reg regime.Regime) (signal.Signal, error) {
	data := make([]market.Tick, 0, len(history)+1)
	data = append(data, history...)
	data = append(data, tick)

	sigs, err := s.gen.Signals(data)
	if err != nil {
		return signal.None, fmt.Errorf("signal %s: %w", s.gen.Name(), err)
	}
	if len(sigs) == 0 {
		return signal.None, nil
	}
	return s.decide(sigs[len(sigs)-1], position, equity, ret, reg), nil
}

func (s *Strategy) decide(sig signal.Signal, position int64, equity decimal.Decimal, ret float64, reg regime.Regime) signal.Signal {
	if sig == signal.None {
		return signal.None
	}
	if s.filter != nil && reg != regime.Unknown && !s.filter(sig, reg) {
		s.log.Debug("regime filter vetoed signal", "signal", sig.String(), "regime", string(reg))
		return signal.None
	}
	if s.risk != nil && !s.risk.CanTrade(sig, position, equity, ret) {
		return signal.None
	}
	return sig
}
