// Package market defines the tick schema consumed by the backtest loop.
package market

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoPrice is returned when a tick carries no price-derivable field.
var ErrNoPrice = errors.New("tick has no price-derivable field (bid/ask, close, or price/mid)")

// Tick is one row of time-ordered market data. Three schemas are supported:
// order-book (Bid+Ask), OHLCV (Close), and generic tick (Price or Mid).
// A zero decimal means the field is absent; valid prices are strictly positive.
// Ticks are immutable once loaded; the engine never mutates input data.
type Tick struct {
	Timestamp time.Time

	// Order-book schema
	Bid decimal.Decimal
	Ask decimal.Decimal

	// OHLCV schema
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal

	// Generic tick schema
	Price decimal.Decimal
	Mid   decimal.Decimal
}

var two = decimal.NewFromInt(2)

// RefPrice resolves the reference price for the tick, trying each schema in
// priority order: bid/ask midpoint, then close, then price, then mid.
func (t Tick) RefPrice() (decimal.Decimal, error) {
	if t.Bid.IsPositive() && t.Ask.IsPositive() {
		return t.Bid.Add(t.Ask).Div(two), nil
	}
	if t.Close.IsPositive() {
		return t.Close, nil
	}
	if t.Price.IsPositive() {
		return t.Price, nil
	}
	if t.Mid.IsPositive() {
		return t.Mid, nil
	}
	return decimal.Zero, ErrNoPrice
}

// Prices extracts the reference price series as float64, for indicator math.
// Fails on the first tick with no resolvable price.
func Prices(ticks []Tick) ([]float64, error) {
	out := make([]float64, len(ticks))
	for i, tk := range ticks {
		p, err := tk.RefPrice()
		if err != nil {
			return nil, err
		}
		out[i] = p.InexactFloat64()
	}
	return out, nil
}
