// Package backtest simulates an account holding one signed quantity of a
// single instrument, processing ticks strictly in order, applying fees,
// enforcing position bounds, and halting entries once the drawdown circuit
// breaker trips.
package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"intrabar/internal/circuitbreaker"
	"intrabar/internal/config"
	"intrabar/internal/logger"
	"intrabar/internal/market"
	"intrabar/internal/signal"
	"intrabar/pkg/utils"
)

// Backtester owns cash, position and equity state for exactly one run at a
// time. It is single-threaded by contract: parallelize at the level of
// independent instances, never by sharing one across goroutines.
type Backtester struct {
	config  config.BacktestConfig
	breaker *circuitbreaker.Breaker

	cash     decimal.Decimal
	position int64

	equityCurve    []decimal.Decimal
	positionCurve  []int64
	timestamps     []time.Time
	trades         []Trade
	maxAbsPosition int64

	log *logger.Logger
}

// New creates a Backtester with the given configuration.
func New(cfg config.BacktestConfig) *Backtester {
	return &Backtester{
		config:  cfg,
		breaker: circuitbreaker.New(cfg.MaxDrawdown, cfg.HaltPolicy),
		cash:    cfg.InitialCash,
		log:     logger.Component("backtest"),
	}
}

// ProcessTick consumes the next tick and attempts at most one fill for the
// given signal. One element is appended to the equity and position curves
// per successful call, whether or not a fill occurred, keeping both curves
// tick-aligned with the input. A tick with no resolvable price is a fatal
// error for the call and records nothing.
func (b *Backtester) ProcessTick(tick market.Tick, sig signal.Signal, qty int64) error {
	price, err := tick.RefPrice()
	if err != nil {
		return fmt.Errorf("process tick: %w", err)
	}

	// Circuit breaker evaluates mark-to-market equity before any fill.
	halted := b.breaker.Observe(b.markToMarket(price))

	if !halted && sig.IsAction() {
		switch sig {
		case signal.Buy:
			b.executeBuy(tick.Timestamp, price, qty)
		case signal.Sell:
			b.executeSell(tick.Timestamp, price, qty)
		case signal.Close:
			b.closePosition(tick.Timestamp, price)
		}
	}

	b.equityCurve = append(b.equityCurve, b.markToMarket(price))
	b.positionCurve = append(b.positionCurve, b.position)
	b.timestamps = append(b.timestamps, tick.Timestamp)
	return nil
}

// executeBuy fills a buy after clipping the quantity to the remaining
// headroom under +MaxPosition and then to what cash can afford at
// price*(1+fee). Clipping is silent; a quantity of zero executes nothing.
func (b *Backtester) executeBuy(ts time.Time, price decimal.Decimal, qty int64) {
	headroom := b.config.MaxPosition - b.position
	if headroom <= 0 {
		return
	}
	if qty > headroom {
		qty = headroom
	}

	feeRate := b.config.TakerFee
	unitCost := price.Mul(decimal.NewFromInt(1).Add(feeRate))
	if unitCost.IsPositive() {
		// Div rounds half-away-from-zero at its precision limit, which can
		// carry a quotient just under an integer across the boundary. Floor
		// an over-precise quotient instead, and re-check the exact cost in
		// case rounding still overshot by one.
		affordable := b.cash.DivRound(unitCost, 32).Floor().IntPart()
		if qty > affordable {
			qty = affordable
		}
		if qty > 0 && unitCost.Mul(decimal.NewFromInt(qty)).GreaterThan(b.cash) {
			qty--
		}
	}
	if qty <= 0 {
		return
	}

	gross := price.Mul(decimal.NewFromInt(qty))
	fee := gross.Mul(feeRate)
	b.cash = b.cash.Sub(gross).Sub(fee)
	b.position += qty
	b.recordTrade(ts, SideBuy, price, qty, fee)
}

// executeSell is the mirror image, clipped against -MaxPosition. Proceeds
// are credited net of the fee; shorts consume no cash.
func (b *Backtester) executeSell(ts time.Time, price decimal.Decimal, qty int64) {
	headroom := b.config.MaxPosition + b.position
	if headroom <= 0 {
		return
	}
	if qty > headroom {
		qty = headroom
	}
	if qty <= 0 {
		return
	}

	gross := price.Mul(decimal.NewFromInt(qty))
	fee := gross.Mul(b.config.TakerFee)
	b.cash = b.cash.Add(gross).Sub(fee)
	b.position -= qty
	b.recordTrade(ts, SideSell, price, qty, fee)
}

// closePosition fully offsets the current position in one fill; no-op when
// flat.
func (b *Backtester) closePosition(ts time.Time, price decimal.Decimal) {
	switch {
	case b.position > 0:
		b.executeSell(ts, price, b.position)
	case b.position < 0:
		b.executeBuy(ts, price, -b.position)
	}
}

func (b *Backtester) recordTrade(ts time.Time, side Side, price decimal.Decimal, qty int64, fee decimal.Decimal) {
	b.trades = append(b.trades, Trade{
		ID:        uuid.New().String(),
		Timestamp: ts,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		Fee:       fee,
	})
	b.maxAbsPosition = utils.Max64(b.maxAbsPosition, utils.Abs64(b.position))
	b.log.Debug("fill",
		"side", string(side),
		"price", price.String(),
		"qty", qty,
		"fee", fee.String(),
		"position", b.position)
}

func (b *Backtester) markToMarket(price decimal.Decimal) decimal.Decimal {
	return b.cash.Add(price.Mul(decimal.NewFromInt(b.position)))
}

// Equity returns the most recent recorded equity, or the initial cash before
// the first tick.
func (b *Backtester) Equity() decimal.Decimal {
	if len(b.equityCurve) == 0 {
		return b.config.InitialCash
	}
	return b.equityCurve[len(b.equityCurve)-1]
}

// Position returns the current signed position.
func (b *Backtester) Position() int64 {
	return b.position
}

// LastReturn returns the most recent per-tick fractional return, or 0 before
// two ticks have been recorded.
func (b *Backtester) LastReturn() float64 {
	n := len(b.equityCurve)
	if n < 2 {
		return 0
	}
	prev := b.equityCurve[n-2]
	if !prev.IsPositive() {
		return 0
	}
	return b.equityCurve[n-1].Sub(prev).Div(prev).InexactFloat64()
}

// IsHalted reports whether the drawdown circuit breaker has tripped.
func (b *Backtester) IsHalted() bool {
	return b.breaker.Tripped()
}

// Results returns an immutable snapshot of the run so far. It never fails,
// including on a zero-tick or zero-trade run.
func (b *Backtester) Results() *Results {
	res := &Results{
		FinalEquity:    b.Equity(),
		NumTrades:      len(b.trades),
		FinalPosition:  b.position,
		MaxAbsPosition: b.maxAbsPosition,
		Halted:         b.breaker.Tripped(),
		EquityCurve:    append([]decimal.Decimal(nil), b.equityCurve...),
		PositionCurve:  append([]int64(nil), b.positionCurve...),
		Timestamps:     append([]time.Time(nil), b.timestamps...),
		Trades:         append([]Trade(nil), b.trades...),
		Ledger:         buildLedger(b.trades),
	}

	res.TotalPnL = res.FinalEquity.Sub(b.config.InitialCash)
	if b.config.InitialCash.IsPositive() {
		res.TotalReturn = res.TotalPnL.Div(b.config.InitialCash).InexactFloat64()
	}

	res.Returns = make([]float64, 0, maxInt(0, len(b.equityCurve)-1))
	for i := 1; i < len(b.equityCurve); i++ {
		prev := b.equityCurve[i-1]
		if !prev.IsPositive() {
			res.Returns = append(res.Returns, 0)
			continue
		}
		res.Returns = append(res.Returns, b.equityCurve[i].Sub(prev).Div(prev).InexactFloat64())
	}

	return res
}

// SaveTrades writes the derived trade ledger to a CSV file.
func (b *Backtester) SaveTrades(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trades file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"timestamp", "side", "price", "quantity", "fee", "pnl", "cumulative_pnl"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, e := range buildLedger(b.trades) {
		record := []string{
			e.Timestamp.Format(time.RFC3339),
			string(e.Side),
			e.Price.String(),
			fmt.Sprintf("%d", e.Quantity),
			e.Fee.String(),
			e.PnL.String(),
			e.CumulativePnL.String(),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write trade record: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

// Reset restores all mutable state to the constructor's initial values so
// the instance can be reused across trials without reallocation.
func (b *Backtester) Reset() {
	b.cash = b.config.InitialCash
	b.position = 0
	b.maxAbsPosition = 0
	b.equityCurve = b.equityCurve[:0]
	b.positionCurve = b.positionCurve[:0]
	b.timestamps = b.timestamps[:0]
	b.trades = b.trades[:0]
	b.breaker.Reset()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
