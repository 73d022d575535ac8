package risk

import (
	"testing"

	"github.com/shopspring/decimal"

	"intrabar/internal/config"
	"intrabar/internal/signal"
)

func testConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxPosition:  10,
		MaxDrawdown:  0.20,
		VolWindow:    5,
		VolThreshold: 0.01,
		HaltPolicy:   config.HaltSticky,
	}
}

func TestCanTradeNoneSignal(t *testing.T) {
	m := NewManager(testConfig())

	if m.CanTrade(signal.None, 0, decimal.NewFromInt(100000), NoReturn) {
		t.Error("none signal should never be tradable")
	}
}

func TestCanTradeInitially(t *testing.T) {
	m := NewManager(testConfig())

	if !m.CanTrade(signal.Buy, 0, decimal.NewFromInt(100000), NoReturn) {
		t.Error("should be able to trade initially")
	}
}

func TestPositionLimit(t *testing.T) {
	m := NewManager(testConfig())
	equity := decimal.NewFromInt(100000)

	if m.CanTrade(signal.Buy, 10, equity, NoReturn) {
		t.Error("buy at +max position should be rejected")
	}
	if m.CanTrade(signal.Sell, -10, equity, NoReturn) {
		t.Error("sell at -max position should be rejected")
	}
	if !m.CanTrade(signal.Sell, 10, equity, NoReturn) {
		t.Error("sell at +max position should be allowed")
	}
	if !m.CanTrade(signal.Close, 10, equity, NoReturn) {
		t.Error("close should always pass the position check")
	}
}

func TestDrawdownHaltIsSticky(t *testing.T) {
	m := NewManager(testConfig())

	if !m.CanTrade(signal.Buy, 0, decimal.NewFromInt(100), NoReturn) {
		t.Fatal("first call should pass")
	}

	// 30% below the peak of 100 breaches the 20% limit.
	if m.CanTrade(signal.Buy, 0, decimal.NewFromInt(70), NoReturn) {
		t.Error("drawdown breach should reject the trade")
	}
	if !m.IsHalted() {
		t.Error("manager should be halted after breach")
	}

	// Recovery above the threshold must not un-halt under the sticky policy.
	if m.CanTrade(signal.Buy, 0, decimal.NewFromInt(100), NoReturn) {
		t.Error("sticky halt should persist after equity recovers")
	}
	if !m.IsHalted() {
		t.Error("halt latch should remain set")
	}
}

func TestDrawdownAutoRecover(t *testing.T) {
	cfg := testConfig()
	cfg.HaltPolicy = config.HaltAutoRecover
	m := NewManager(cfg)

	m.CanTrade(signal.Buy, 0, decimal.NewFromInt(100), NoReturn)
	if m.CanTrade(signal.Buy, 0, decimal.NewFromInt(70), NoReturn) {
		t.Error("drawdown breach should reject the trade")
	}
	if !m.CanTrade(signal.Buy, 0, decimal.NewFromInt(95), NoReturn) {
		t.Error("auto-recover policy should re-arm once drawdown is back under the limit")
	}
}

func TestVolatilityGate(t *testing.T) {
	m := NewManager(testConfig())
	equity := decimal.NewFromInt(100000)

	// Alternating ±5% returns: population std far above the 1% threshold.
	m.CanTrade(signal.Buy, 0, equity, 0.05)
	if m.CanTrade(signal.Buy, 0, equity, -0.05) {
		t.Error("high volatility should reject the trade")
	}

	if m.CurrentVolatility() <= 0.01 {
		t.Errorf("expected volatility above threshold, got %v", m.CurrentVolatility())
	}
}

func TestVolatilityWindowIsBounded(t *testing.T) {
	m := NewManager(testConfig())
	equity := decimal.NewFromInt(100000)

	// Two noisy observations, then enough calm ones to push them out of the
	// 5-sample window.
	m.CanTrade(signal.Buy, 0, equity, 0.05)
	m.CanTrade(signal.Buy, 0, equity, -0.05)
	for i := 0; i < 5; i++ {
		m.CanTrade(signal.Buy, 0, equity, 0.0001)
	}

	if !m.CanTrade(signal.Buy, 0, equity, 0.0001) {
		t.Error("old noisy returns should have left the window")
	}
	if len(m.returnsHistory) != 5 {
		t.Errorf("expected window of 5 returns, got %d", len(m.returnsHistory))
	}
}

func TestMaxTradeSize(t *testing.T) {
	m := NewManager(testConfig())

	tests := []struct {
		position int64
		sig      signal.Signal
		want     int64
	}{
		{0, signal.Buy, 10},
		{7, signal.Buy, 3},
		{10, signal.Buy, 0},
		{12, signal.Buy, 0}, // beyond the bound, clamp to zero
		{0, signal.Sell, 10},
		{-7, signal.Sell, 3},
		{-10, signal.Sell, 0},
		{4, signal.Close, 4},
		{-6, signal.Close, 6},
		{0, signal.Close, 0},
	}

	for _, tt := range tests {
		if got := m.MaxTradeSize(tt.position, tt.sig); got != tt.want {
			t.Errorf("MaxTradeSize(%d, %s): expected %d, got %d", tt.position, tt.sig, tt.want, got)
		}
	}
}

func TestCurrentDrawdownIsReadOnly(t *testing.T) {
	m := NewManager(testConfig())
	m.CanTrade(signal.Buy, 0, decimal.NewFromInt(100), NoReturn)

	// Querying with a higher equity must not move the peak.
	if dd := m.CurrentDrawdown(decimal.NewFromInt(200)); dd != 0 {
		t.Errorf("expected 0 drawdown above the peak, got %v", dd)
	}
	if dd := m.CurrentDrawdown(decimal.NewFromInt(90)); dd != 0.1 {
		t.Errorf("expected drawdown 0.1 against the original peak, got %v", dd)
	}
}

func TestReset(t *testing.T) {
	m := NewManager(testConfig())
	m.CanTrade(signal.Buy, 0, decimal.NewFromInt(100), 0.05)
	m.CanTrade(signal.Buy, 0, decimal.NewFromInt(70), -0.05)

	m.Reset()

	if m.IsHalted() {
		t.Error("reset should clear the halt latch")
	}
	if m.CurrentVolatility() != 0 {
		t.Error("reset should clear the returns window")
	}
	if !m.CanTrade(signal.Buy, 0, decimal.NewFromInt(50), NoReturn) {
		t.Error("reset manager should trade again from a fresh peak")
	}
}
