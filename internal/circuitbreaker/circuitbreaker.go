// Package circuitbreaker implements the drawdown circuit breaker: a one-way
// latch (under the default sticky policy) that trips once equity falls more
// than a configured fraction below its running peak.
package circuitbreaker

import (
	"github.com/shopspring/decimal"

	"intrabar/internal/config"
	"intrabar/internal/logger"
	"intrabar/pkg/utils"
)

// Breaker tracks the high-water mark of an equity series and trips when the
// fractional drawdown from that peak exceeds the limit. Each backtest run
// owns its own Breaker; there is no internal locking.
type Breaker struct {
	maxDrawdown float64
	policy      config.HaltPolicy

	peak    decimal.Decimal
	tripped bool

	log *logger.Logger
}

// New creates a breaker with the given drawdown limit and halt policy.
func New(maxDrawdown float64, policy config.HaltPolicy) *Breaker {
	if policy == "" {
		policy = config.HaltSticky
	}
	return &Breaker{
		maxDrawdown: maxDrawdown,
		policy:      policy,
		log:         logger.Component("circuit-breaker"),
	}
}

// Observe updates the peak with the given mark-to-market equity, evaluates
// the drawdown limit and returns whether the breaker is tripped afterwards.
// Under HaltSticky a trip is permanent until Reset; under HaltAutoRecover the
// breaker re-arms when drawdown falls back under the limit.
func (b *Breaker) Observe(equity decimal.Decimal) bool {
	b.peak = utils.MaxDecimal(b.peak, equity)

	dd := b.drawdown(equity)
	if dd > b.maxDrawdown {
		if !b.tripped {
			b.log.Warn("drawdown limit breached, halting",
				"drawdown", dd,
				"limit", b.maxDrawdown,
				"equity", equity.String(),
				"peak", b.peak.String())
		}
		b.tripped = true
		return true
	}

	if b.tripped && b.policy == config.HaltAutoRecover {
		b.log.Info("drawdown recovered, re-arming", "drawdown", dd)
		b.tripped = false
	}

	return b.tripped
}

// Tripped reports the current latch state without observing new equity.
func (b *Breaker) Tripped() bool {
	return b.tripped
}

// Peak returns the running high-water mark.
func (b *Breaker) Peak() decimal.Decimal {
	return b.peak
}

// Drawdown returns the fractional decline of equity from the peak without
// mutating any state. Equity at or above the peak yields 0.
func (b *Breaker) Drawdown(equity decimal.Decimal) float64 {
	if equity.GreaterThanOrEqual(b.peak) {
		return 0
	}
	return b.drawdown(equity)
}

func (b *Breaker) drawdown(equity decimal.Decimal) float64 {
	if !b.peak.IsPositive() {
		return 0
	}
	return b.peak.Sub(equity).Div(b.peak).InexactFloat64()
}

// Reset clears the peak and the latch.
func (b *Breaker) Reset() {
	b.peak = decimal.Zero
	b.tripped = false
}
