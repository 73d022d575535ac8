// Package testutils provides shared utilities for testing
package testutils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"intrabar/internal/market"
)

// ConstantTicks returns n OHLCV ticks at a constant close price, one minute
// apart.
func ConstantTicks(n int, price float64) []market.Tick {
	ticks := make([]market.Tick, n)
	ts := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	p := decimal.NewFromFloat(price)
	for i := range ticks {
		ticks[i] = market.Tick{Timestamp: ts, Close: p}
		ts = ts.Add(time.Minute)
	}
	return ticks
}

// TicksFromCloses returns one OHLCV tick per close price, one minute apart.
func TicksFromCloses(closes ...float64) []market.Tick {
	ticks := make([]market.Tick, len(closes))
	ts := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	for i, c := range closes {
		ticks[i] = market.Tick{Timestamp: ts, Close: decimal.NewFromFloat(c)}
		ts = ts.Add(time.Minute)
	}
	return ticks
}

// QuoteTick returns an order-book tick with the given bid and ask.
func QuoteTick(bid, ask float64) market.Tick {
	return market.Tick{
		Timestamp: time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
		Bid:       decimal.NewFromFloat(bid),
		Ask:       decimal.NewFromFloat(ask),
	}
}

// Test assertion helpers

func AssertEqual(t *testing.T, expected, actual any, message string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", message, expected, actual)
	}
}

func AssertTrue(t *testing.T, condition bool, message string) {
	t.Helper()
	if !condition {
		t.Errorf("%s: expected true", message)
	}
}

func AssertFalse(t *testing.T, condition bool, message string) {
	t.Helper()
	if condition {
		t.Errorf("%s: expected false", message)
	}
}

func AssertNoError(t *testing.T, err error, message string) {
	t.Helper()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", message, err)
	}
}

func AssertError(t *testing.T, err error, message string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error, got nil", message)
	}
}

// AssertDecimalEqual compares two decimals by value.
func AssertDecimalEqual(t *testing.T, expected, actual decimal.Decimal, message string) {
	t.Helper()
	if !expected.Equal(actual) {
		t.Errorf("%s: expected %s, got %s", message, expected.String(), actual.String())
	}
}
