package signal

import (
	"fmt"
	"math"

	"github.com/cinar/indicator"

	"intrabar/internal/market"
)

// RSIRegimeParams configures the RSI generator with a KER regime switch.
// In the mean-reversion regime (efficiency ratio below KERThreshold) RSI
// extremes are faded; in the momentum regime they are followed.
type RSIRegimeParams struct {
	Period       int
	Oversold     float64
	Overbought   float64
	KERPeriod    int
	KERThreshold float64
}

// RSIRegime generates signals from RSI thresholds switched by Kaufman's
// efficiency ratio.
type RSIRegime struct {
	params RSIRegimeParams
}

// NewRSIRegime validates the parameters and returns the generator.
func NewRSIRegime(p RSIRegimeParams) (*RSIRegime, error) {
	if p.Period < 2 {
		return nil, fmt.Errorf("rsi period must be >= 2, got %d", p.Period)
	}
	if p.KERPeriod < 2 {
		return nil, fmt.Errorf("ker period must be >= 2, got %d", p.KERPeriod)
	}
	if p.Oversold <= 0 || p.Overbought >= 100 || p.Oversold >= p.Overbought {
		return nil, fmt.Errorf("invalid rsi thresholds: oversold=%.1f overbought=%.1f", p.Oversold, p.Overbought)
	}
	if p.KERThreshold <= 0 || p.KERThreshold >= 1 {
		return nil, fmt.Errorf("ker threshold must be in (0, 1), got %.3f", p.KERThreshold)
	}
	return &RSIRegime{params: p}, nil
}

func (g *RSIRegime) Name() string { return "rsi-regime" }

func (g *RSIRegime) Signals(ticks []market.Tick) ([]Signal, error) {
	prices, err := market.Prices(ticks)
	if err != nil {
		return nil, err
	}

	signals := make([]Signal, len(prices))
	if len(prices) == 0 {
		return signals, nil
	}

	_, rsi := indicator.RsiPeriod(g.params.Period, prices)
	ker := efficiencyRatio(prices, g.params.KERPeriod)

	warmup := g.params.Period
	if g.params.KERPeriod > warmup {
		warmup = g.params.KERPeriod
	}

	for i := warmup; i < len(prices); i++ {
		trending := ker[i] >= g.params.KERThreshold
		switch {
		case trending && rsi[i] >= g.params.Overbought:
			signals[i] = Buy
		case trending && rsi[i] <= g.params.Oversold:
			signals[i] = Sell
		case !trending && rsi[i] <= g.params.Oversold:
			signals[i] = Buy
		case !trending && rsi[i] >= g.params.Overbought:
			signals[i] = Sell
		case !trending && crossed(rsi[i-1], rsi[i], 50):
			signals[i] = Close
		}
	}
	return signals, nil
}

// EMACrossParams configures the EMA trend-following generator.
type EMACrossParams struct {
	Short int
	Long  int
}

// EMACross generates a Buy on an upward short/long EMA cross and a Sell on a
// downward cross.
type EMACross struct {
	params EMACrossParams
}

// NewEMACross validates the parameters and returns the generator.
func NewEMACross(p EMACrossParams) (*EMACross, error) {
	if p.Short < 1 || p.Long < 2 {
		return nil, fmt.Errorf("ema periods must be positive, got short=%d long=%d", p.Short, p.Long)
	}
	if p.Short >= p.Long {
		return nil, fmt.Errorf("short ema period %d must be below long period %d", p.Short, p.Long)
	}
	return &EMACross{params: p}, nil
}

func (g *EMACross) Name() string { return "ema-cross" }

func (g *EMACross) Signals(ticks []market.Tick) ([]Signal, error) {
	prices, err := market.Prices(ticks)
	if err != nil {
		return nil, err
	}

	signals := make([]Signal, len(prices))
	if len(prices) == 0 {
		return signals, nil
	}

	short := indicator.Ema(g.params.Short, prices)
	long := indicator.Ema(g.params.Long, prices)

	for i := g.params.Long; i < len(prices); i++ {
		prevAbove := short[i-1] > long[i-1]
		nowAbove := short[i] > long[i]
		switch {
		case nowAbove && !prevAbove:
			signals[i] = Buy
		case !nowAbove && prevAbove:
			signals[i] = Sell
		}
	}
	return signals, nil
}

// ZScoreParams configures the mean-reversion generator. Entry is the z-score
// magnitude that opens a position against the move, Exit the magnitude below
// which the position is closed.
type ZScoreParams struct {
	Window int
	Entry  float64
	Exit   float64
}

// ZScore generates mean-reversion signals from the rolling z-score of price
// against its moving average.
type ZScore struct {
	params ZScoreParams
}

// NewZScore validates the parameters and returns the generator.
func NewZScore(p ZScoreParams) (*ZScore, error) {
	if p.Window < 2 {
		return nil, fmt.Errorf("zscore window must be >= 2, got %d", p.Window)
	}
	if p.Entry <= 0 {
		return nil, fmt.Errorf("zscore entry threshold must be positive, got %.3f", p.Entry)
	}
	if p.Exit < 0 || p.Exit >= p.Entry {
		return nil, fmt.Errorf("zscore exit threshold %.3f must be in [0, entry)", p.Exit)
	}
	return &ZScore{params: p}, nil
}

func (g *ZScore) Name() string { return "zscore" }

func (g *ZScore) Signals(ticks []market.Tick) ([]Signal, error) {
	prices, err := market.Prices(ticks)
	if err != nil {
		return nil, err
	}

	signals := make([]Signal, len(prices))
	if len(prices) == 0 {
		return signals, nil
	}

	sma := indicator.Sma(g.params.Window, prices)
	std := indicator.Std(g.params.Window, prices)

	for i := g.params.Window; i < len(prices); i++ {
		if std[i] == 0 || math.IsNaN(std[i]) {
			continue
		}
		z := (prices[i] - sma[i]) / std[i]
		switch {
		case z <= -g.params.Entry:
			signals[i] = Buy
		case z >= g.params.Entry:
			signals[i] = Sell
		case math.Abs(z) <= g.params.Exit:
			signals[i] = Close
		}
	}
	return signals, nil
}

// efficiencyRatio computes Kaufman's efficiency ratio over a rolling window:
// net price change divided by the sum of absolute tick-to-tick changes.
// Entries before the first full window are zero.
func efficiencyRatio(prices []float64, period int) []float64 {
	out := make([]float64, len(prices))
	for i := period; i < len(prices); i++ {
		net := math.Abs(prices[i] - prices[i-period])
		var noise float64
		for j := i - period + 1; j <= i; j++ {
			noise += math.Abs(prices[j] - prices[j-1])
		}
		if noise > 0 {
			out[i] = net / noise
		}
	}
	return out
}

// crossed reports whether the series moved across level between two samples.
func crossed(prev, cur, level float64) bool {
	return (prev < level && cur >= level) || (prev > level && cur <= level)
}
