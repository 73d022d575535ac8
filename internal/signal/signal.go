// Package signal defines the trading signal enum and the generator contract
// implemented by the concrete signal archetypes.
package signal

import "intrabar/internal/market"

// Signal is the trading decision for a single tick. The zero value is None.
type Signal string

const (
	None  Signal = ""
	Buy   Signal = "BUY"
	Sell  Signal = "SELL"
	Close Signal = "CLOSE"
)

// IsAction reports whether the signal requests a fill.
func (s Signal) IsAction() bool {
	return s == Buy || s == Sell || s == Close
}

func (s Signal) String() string {
	if s == None {
		return "NONE"
	}
	return string(s)
}

// Generator produces one signal per input tick, using only information up to
// and including each tick (no look-ahead). The returned slice must have the
// same length as the input.
type Generator interface {
	Name() string
	Signals(ticks []market.Tick) ([]Signal, error)
}
