package backtest

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an executed fill.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is one executed fill. Immutable once appended to the trade history.
type Trade struct {
	ID        string
	Timestamp time.Time
	Side      Side
	Price     decimal.Decimal
	Quantity  int64
	Fee       decimal.Decimal
}

// LedgerEntry is one row of the derived trade ledger: the fill plus its
// realized P&L under the running average-entry-price model and the running
// cumulative P&L.
type LedgerEntry struct {
	Timestamp     time.Time
	Side          Side
	Price         decimal.Decimal
	Quantity      int64
	Fee           decimal.Decimal
	PnL           decimal.Decimal
	CumulativePnL decimal.Decimal
}

// Results is an immutable snapshot of a completed (or in-progress) run.
// All slices are copies; mutating them does not affect the Backtester.
type Results struct {
	FinalEquity    decimal.Decimal
	TotalPnL       decimal.Decimal
	TotalReturn    float64
	NumTrades      int
	FinalPosition  int64
	MaxAbsPosition int64
	Halted         bool

	EquityCurve   []decimal.Decimal
	PositionCurve []int64
	Returns       []float64
	Timestamps    []time.Time

	Trades []Trade
	Ledger []LedgerEntry
}

// EquityFloats converts the equity curve to float64 for metrics math.
func (r *Results) EquityFloats() []float64 {
	out := make([]float64, len(r.EquityCurve))
	for i, e := range r.EquityCurve {
		out[i] = e.InexactFloat64()
	}
	return out
}
