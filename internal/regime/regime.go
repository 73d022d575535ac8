// Package regime classifies market state per tick. Regime labels gate
// whether a strategy should be active; classifiers satisfy the same
// one-label-per-row, no-look-ahead contract as signal generators.
package regime

import (
	"fmt"
	"math"

	"github.com/cinar/indicator"

	"intrabar/internal/market"
)

// Regime is an externally computed market-state label.
type Regime string

const (
	Unknown Regime = ""

	// Volatility regimes
	Calm     Regime = "CALM"
	Normal   Regime = "NORMAL"
	Volatile Regime = "VOLATILE"

	// Efficiency regimes
	MeanReversion Regime = "MEAN_REVERSION"
	Momentum      Regime = "MOMENTUM"
	Neutral       Regime = "NEUTRAL"
)

// Classifier produces one regime label per input tick.
type Classifier interface {
	Classify(ticks []market.Tick) ([]Regime, error)
}

// VolatilityClassifier labels each tick CALM, NORMAL or VOLATILE from the
// rolling standard deviation of per-tick returns. Ticks before the first
// full window are Unknown.
type VolatilityClassifier struct {
	Window        int
	CalmBelow     float64 // raw per-tick return std
	VolatileAbove float64
}

// NewVolatilityClassifier validates thresholds and returns the classifier.
func NewVolatilityClassifier(window int, calmBelow, volatileAbove float64) (*VolatilityClassifier, error) {
	if window < 2 {
		return nil, fmt.Errorf("volatility window must be >= 2, got %d", window)
	}
	if calmBelow <= 0 || volatileAbove <= calmBelow {
		return nil, fmt.Errorf("thresholds must satisfy 0 < calm %.4f < volatile %.4f", calmBelow, volatileAbove)
	}
	return &VolatilityClassifier{Window: window, CalmBelow: calmBelow, VolatileAbove: volatileAbove}, nil
}

func (c *VolatilityClassifier) Classify(ticks []market.Tick) ([]Regime, error) {
	prices, err := market.Prices(ticks)
	if err != nil {
		return nil, err
	}

	labels := make([]Regime, len(prices))
	if len(prices) < 2 {
		return labels, nil
	}

	returns := make([]float64, len(prices))
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	std := indicator.Std(c.Window, returns)
	for i := c.Window; i < len(prices); i++ {
		switch {
		case std[i] < c.CalmBelow:
			labels[i] = Calm
		case std[i] > c.VolatileAbove:
			labels[i] = Volatile
		default:
			labels[i] = Normal
		}
	}
	return labels, nil
}

// EfficiencyClassifier labels each tick MEAN_REVERSION, MOMENTUM or NEUTRAL
// from Kaufman's efficiency ratio: trending price action is efficient, choppy
// action is not.
type EfficiencyClassifier struct {
	Window      int
	TrendAbove  float64 // ratio above which the market is labeled MOMENTUM
	RevertBelow float64 // ratio below which it is labeled MEAN_REVERSION
}

// NewEfficiencyClassifier validates thresholds and returns the classifier.
func NewEfficiencyClassifier(window int, trendAbove, revertBelow float64) (*EfficiencyClassifier, error) {
	if window < 2 {
		return nil, fmt.Errorf("efficiency window must be >= 2, got %d", window)
	}
	if revertBelow <= 0 || trendAbove >= 1 || revertBelow >= trendAbove {
		return nil, fmt.Errorf("thresholds must satisfy 0 < revert %.3f < trend %.3f < 1", revertBelow, trendAbove)
	}
	return &EfficiencyClassifier{Window: window, TrendAbove: trendAbove, RevertBelow: revertBelow}, nil
}

func (c *EfficiencyClassifier) Classify(ticks []market.Tick) ([]Regime, error) {
	prices, err := market.Prices(ticks)
	if err != nil {
		return nil, err
	}

	labels := make([]Regime, len(prices))
	for i := c.Window; i < len(prices); i++ {
		net := math.Abs(prices[i] - prices[i-c.Window])
		var noise float64
		for j := i - c.Window + 1; j <= i; j++ {
			noise += math.Abs(prices[j] - prices[j-1])
		}
		if noise == 0 {
			labels[i] = Neutral
			continue
		}
		ratio := net / noise
		switch {
		case ratio > c.TrendAbove:
			labels[i] = Momentum
		case ratio < c.RevertBelow:
			labels[i] = MeanReversion
		default:
			labels[i] = Neutral
		}
	}
	return labels, nil
}
