// Package metrics provides stateless performance statistics over a completed
// equity curve. Every function tolerates degenerate input (empty, single
// element, constant, NaN/Inf entries) by returning 0 instead of propagating
// non-finite values, so results can be aggregated naively across runs.
package metrics

import "math"

// Summary is the full metrics bundle for one backtest run. It has no
// identity; recompute it on demand from the equity curve.
type Summary struct {
	TotalReturn  float64
	SharpeRatio  float64
	SortinoRatio float64
	MaxDrawdown  float64
	CalmarRatio  float64
	WinRate      float64
	ProfitFactor float64
	Volatility   float64
}

// finite filters out NaN and Inf entries.
func finite(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the ddof=1 standard deviation.
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// SharpeRatio annualizes mean excess return over its sample standard
// deviation. Returns 0 with fewer than 2 finite samples or zero deviation.
func SharpeRatio(returns []float64, periodsPerYear, riskFreeRate float64) float64 {
	rs := finite(returns)
	if len(rs) < 2 {
		return 0
	}
	excess := make([]float64, len(rs))
	for i, r := range rs {
		excess[i] = r - riskFreeRate
	}
	sd := sampleStd(excess)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	return mean(excess) / sd * math.Sqrt(periodsPerYear)
}

// SortinoRatio is the Sharpe numerator over the standard deviation of the
// negative returns only. With fewer than 2 negative samples it degrades to
// the annualized mean excess when positive, else 0.
func SortinoRatio(returns []float64, periodsPerYear, riskFreeRate float64) float64 {
	rs := finite(returns)
	if len(rs) < 2 {
		return 0
	}
	var negatives []float64
	var excessSum float64
	for _, r := range rs {
		excessSum += r - riskFreeRate
		if r < 0 {
			negatives = append(negatives, r)
		}
	}
	meanExcess := excessSum / float64(len(rs))
	if len(negatives) < 2 {
		if meanExcess > 0 {
			return meanExcess * math.Sqrt(periodsPerYear)
		}
		return 0
	}
	sd := sampleStd(negatives)
	if sd == 0 || math.IsNaN(sd) {
		return 0
	}
	return meanExcess / sd * math.Sqrt(periodsPerYear)
}

// MaxDrawdown is the most negative fractional decline from the running peak.
// A running peak of exactly 0 is substituted with 1 to avoid division by
// zero. The result is always <= 0.
func MaxDrawdown(equity []float64) float64 {
	eq := finite(equity)
	if len(eq) < 2 {
		return 0
	}
	peak := eq[0]
	worst := 0.0
	for _, e := range eq {
		if e > peak {
			peak = e
		}
		denom := peak
		if denom == 0 {
			denom = 1
		}
		dd := (e - peak) / denom
		if dd < worst {
			worst = dd
		}
	}
	return worst
}

// CalmarRatio is the annualized total return over the absolute max drawdown.
// Returns 0 when the drawdown is exactly zero.
func CalmarRatio(equity []float64, periodsPerYear float64) float64 {
	eq := finite(equity)
	if len(eq) < 2 {
		return 0
	}
	mdd := MaxDrawdown(eq)
	if mdd == 0 {
		return 0
	}
	annualized := TotalReturn(eq) * (periodsPerYear / float64(len(eq)))
	return annualized / math.Abs(mdd)
}

// WinRate is the fraction of non-zero returns that are strictly positive.
// Zero returns count in neither the numerator nor the denominator.
func WinRate(returns []float64) float64 {
	var wins, nonZero int
	for _, r := range finite(returns) {
		if r == 0 {
			continue
		}
		nonZero++
		if r > 0 {
			wins++
		}
	}
	if nonZero == 0 {
		return 0
	}
	return float64(wins) / float64(nonZero)
}

// ProfitFactor is gross gains over gross losses. +Inf when there are gains
// and no losses; 0 when there is neither.
func ProfitFactor(returns []float64) float64 {
	var gains, losses float64
	for _, r := range finite(returns) {
		if r > 0 {
			gains += r
		} else if r < 0 {
			losses += -r
		}
	}
	if losses == 0 {
		if gains > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return gains / losses
}

// TotalReturn is the fractional change from the first to the last point.
func TotalReturn(equity []float64) float64 {
	eq := finite(equity)
	if len(eq) < 2 || eq[0] == 0 {
		return 0
	}
	return (eq[len(eq)-1] - eq[0]) / eq[0]
}

// Volatility is the annualized sample standard deviation of returns.
func Volatility(returns []float64, periodsPerYear float64) float64 {
	rs := finite(returns)
	if len(rs) < 2 {
		return 0
	}
	return sampleStd(rs) * math.Sqrt(periodsPerYear)
}

// Returns derives simple per-period fractional returns from an equity curve.
func Returns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (equity[i]-equity[i-1])/equity[i-1])
	}
	return out
}

// CalculateAll computes the full bundle from an equity curve. Curves shorter
// than 2 points produce the all-zero bundle.
func CalculateAll(equity []float64, periodsPerYear, riskFreeRate float64) Summary {
	eq := finite(equity)
	if len(eq) < 2 {
		return Summary{}
	}
	returns := Returns(eq)
	pf := ProfitFactor(returns)
	if math.IsInf(pf, 1) {
		// Keep the bundle aggregation-safe; the ratio is still observable
		// through ProfitFactor directly.
		pf = 0
	}
	return Summary{
		TotalReturn:  TotalReturn(eq),
		SharpeRatio:  SharpeRatio(returns, periodsPerYear, riskFreeRate),
		SortinoRatio: SortinoRatio(returns, periodsPerYear, riskFreeRate),
		MaxDrawdown:  MaxDrawdown(eq),
		CalmarRatio:  CalmarRatio(eq, periodsPerYear),
		WinRate:      WinRate(returns),
		ProfitFactor: pf,
		Volatility:   Volatility(returns, periodsPerYear),
	}
}
