// Package risk gates proposed trades through three independent checks:
// drawdown, position limit, and recent-return volatility.
package risk

import (
	"math"

	"github.com/shopspring/decimal"

	"intrabar/internal/circuitbreaker"
	"intrabar/internal/config"
	"intrabar/internal/logger"
	"intrabar/internal/signal"
	"intrabar/pkg/utils"
)

// NoReturn marks the absence of a per-tick return observation in CanTrade.
var NoReturn = math.NaN()

// Manager owns the rolling state needed to evaluate risk checks. One Manager
// per backtest run; it is not safe for concurrent use and does not lock.
type Manager struct {
	config  config.RiskConfig
	breaker *circuitbreaker.Breaker

	// Bounded window of the most recent per-tick returns, size VolWindow.
	returnsHistory []float64

	log *logger.Logger
}

// NewManager creates a risk manager.
func NewManager(cfg config.RiskConfig) *Manager {
	return &Manager{
		config:         cfg,
		breaker:        circuitbreaker.New(cfg.MaxDrawdown, cfg.HaltPolicy),
		returnsHistory: make([]float64, 0, cfg.VolWindow),
		log:            logger.Component("risk"),
	}
}

// CanTrade evaluates whether the proposed signal may execute given the
// current position and mark-to-market equity. Pass NoReturn for ret when no
// fresh per-tick return is available; otherwise it is appended to the
// volatility window first. All three checks must pass.
//
// The drawdown check is a one-way latch under the default sticky policy:
// once tripped, CanTrade keeps returning false for this Manager's lifetime
// unless it is explicitly Reset.
func (m *Manager) CanTrade(sig signal.Signal, currentPosition int64, currentEquity decimal.Decimal, ret float64) bool {
	if sig == signal.None {
		return false
	}

	if !math.IsNaN(ret) {
		m.observeReturn(ret)
	}

	if m.breaker.Observe(currentEquity) {
		return false
	}

	if sig == signal.Buy && currentPosition >= m.config.MaxPosition {
		return false
	}
	if sig == signal.Sell && currentPosition <= -m.config.MaxPosition {
		return false
	}

	if len(m.returnsHistory) >= 2 {
		if vol := populationStd(m.returnsHistory); vol > m.config.VolThreshold {
			m.log.Debug("volatility gate rejected trade",
				"volatility", vol,
				"threshold", m.config.VolThreshold)
			return false
		}
	}

	return true
}

// MaxTradeSize returns the largest quantity the position limit allows for
// the proposed signal: remaining headroom for Buy/Sell, the full position
// size for Close.
func (m *Manager) MaxTradeSize(currentPosition int64, sig signal.Signal) int64 {
	switch sig {
	case signal.Buy:
		return utils.Max64(0, m.config.MaxPosition-currentPosition)
	case signal.Sell:
		return utils.Max64(0, m.config.MaxPosition+currentPosition)
	default:
		return utils.Abs64(currentPosition)
	}
}

// CurrentDrawdown returns the fractional decline from the peak for the given
// equity. Read-only; never mutates the peak.
func (m *Manager) CurrentDrawdown(currentEquity decimal.Decimal) float64 {
	return m.breaker.Drawdown(currentEquity)
}

// CurrentVolatility returns the population standard deviation of the return
// window, or 0 with fewer than 2 samples.
//
// The value is the raw per-tick std, not annualized: its scale depends on
// the tick interval of the data feeding this manager.
func (m *Manager) CurrentVolatility() float64 {
	if len(m.returnsHistory) < 2 {
		return 0
	}
	return populationStd(m.returnsHistory)
}

// IsHalted reports whether the drawdown latch has tripped.
func (m *Manager) IsHalted() bool {
	return m.breaker.Tripped()
}

// Reset clears the peak, the return window and the halt latch so the manager
// can be reused across trials.
func (m *Manager) Reset() {
	m.breaker.Reset()
	m.returnsHistory = m.returnsHistory[:0]
}

func (m *Manager) observeReturn(ret float64) {
	m.returnsHistory = append(m.returnsHistory, ret)
	if len(m.returnsHistory) > m.config.VolWindow {
		m.returnsHistory = m.returnsHistory[1:]
	}
}

func populationStd(xs []float64) float64 {
	m := 0.0
	for _, x := range xs {
		m += x
	}
	m /= float64(len(xs))

	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}
