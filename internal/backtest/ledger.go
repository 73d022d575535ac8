package backtest

import "github.com/shopspring/decimal"

// The ledger reconstructs realized P&L from the ordered fill list alone,
// using a running volume-weighted average entry price. It is a pure function
// of the trade history, independent of the equity-curve bookkeeping, so an
// external ledger system replaying the same fills arrives at the same
// numbers.

type positionState int

const (
	stateFlat positionState = iota
	stateLong
	stateShort
)

// ledgerBook is the position-accounting state machine: FLAT, LONG or SHORT,
// with transitions on each fill. A fill larger than the open position crosses
// through flat: the open side is realized in full and the remainder opens the
// opposite side at the fill price.
type ledgerBook struct {
	state    positionState
	quantity int64
	avgPrice decimal.Decimal
	cumPnL   decimal.Decimal
}

// buildLedger derives the per-fill realized P&L ledger from the fill list.
// Every fill contributes at least -fee, including fills that only add to an
// open position.
func buildLedger(trades []Trade) []LedgerEntry {
	book := &ledgerBook{}
	entries := make([]LedgerEntry, 0, len(trades))

	for _, t := range trades {
		var pnl decimal.Decimal
		if t.Side == SideBuy {
			pnl = book.applyBuy(t.Price, t.Quantity)
		} else {
			pnl = book.applySell(t.Price, t.Quantity)
		}
		pnl = pnl.Sub(t.Fee)
		book.cumPnL = book.cumPnL.Add(pnl)

		entries = append(entries, LedgerEntry{
			Timestamp:     t.Timestamp,
			Side:          t.Side,
			Price:         t.Price,
			Quantity:      t.Quantity,
			Fee:           t.Fee,
			PnL:           pnl,
			CumulativePnL: book.cumPnL,
		})
	}
	return entries
}

// applyBuy returns the gross realized P&L of a buy fill (fees excluded).
func (b *ledgerBook) applyBuy(price decimal.Decimal, qty int64) decimal.Decimal {
	switch b.state {
	case stateFlat:
		b.open(stateLong, price, qty)
		return decimal.Zero

	case stateLong:
		b.addTo(price, qty)
		return decimal.Zero

	default: // covering a short
		cover := qty
		if cover > b.quantity {
			cover = b.quantity
		}
		realized := b.avgPrice.Sub(price).Mul(decimal.NewFromInt(cover))
		b.reduce(cover)
		if leftover := qty - cover; leftover > 0 {
			b.open(stateLong, price, leftover)
		}
		return realized
	}
}

// applySell returns the gross realized P&L of a sell fill (fees excluded).
func (b *ledgerBook) applySell(price decimal.Decimal, qty int64) decimal.Decimal {
	switch b.state {
	case stateFlat:
		b.open(stateShort, price, qty)
		return decimal.Zero

	case stateShort:
		b.addTo(price, qty)
		return decimal.Zero

	default: // closing a long
		closed := qty
		if closed > b.quantity {
			closed = b.quantity
		}
		realized := price.Sub(b.avgPrice).Mul(decimal.NewFromInt(closed))
		b.reduce(closed)
		if leftover := qty - closed; leftover > 0 {
			b.open(stateShort, price, leftover)
		}
		return realized
	}
}

func (b *ledgerBook) open(s positionState, price decimal.Decimal, qty int64) {
	b.state = s
	b.avgPrice = price
	b.quantity = qty
}

// addTo extends the open position, updating the volume-weighted average
// entry price.
func (b *ledgerBook) addTo(price decimal.Decimal, qty int64) {
	oldValue := b.avgPrice.Mul(decimal.NewFromInt(b.quantity))
	newValue := price.Mul(decimal.NewFromInt(qty))
	b.quantity += qty
	b.avgPrice = oldValue.Add(newValue).Div(decimal.NewFromInt(b.quantity))
}

func (b *ledgerBook) reduce(qty int64) {
	b.quantity -= qty
	if b.quantity == 0 {
		b.state = stateFlat
		b.avgPrice = decimal.Zero
	}
}
