package circuitbreaker

import (
	"testing"

	"github.com/shopspring/decimal"

	"intrabar/internal/config"
)

func TestNew(t *testing.T) {
	b := New(0.20, config.HaltSticky)
	if b == nil {
		t.Fatal("expected breaker to be created")
	}
	if b.Tripped() {
		t.Error("new breaker should not be tripped")
	}
}

func TestNewDefaultsToSticky(t *testing.T) {
	b := New(0.20, "")
	if b.policy != config.HaltSticky {
		t.Errorf("expected sticky default policy, got %q", b.policy)
	}
}

func TestObserveTracksPeak(t *testing.T) {
	b := New(0.20, config.HaltSticky)

	b.Observe(decimal.NewFromInt(100))
	b.Observe(decimal.NewFromInt(120))
	b.Observe(decimal.NewFromInt(110))

	if !b.Peak().Equal(decimal.NewFromInt(120)) {
		t.Errorf("expected peak 120, got %s", b.Peak())
	}
	if b.Tripped() {
		t.Error("8% drawdown should not trip a 20% breaker")
	}
}

func TestObserveTripsOnBreach(t *testing.T) {
	b := New(0.20, config.HaltSticky)

	b.Observe(decimal.NewFromInt(100))
	if !b.Observe(decimal.NewFromInt(70)) {
		t.Error("30% drawdown should trip a 20% breaker")
	}
	if !b.Tripped() {
		t.Error("breaker should stay tripped")
	}
}

func TestStickyTripSurvivesRecovery(t *testing.T) {
	b := New(0.20, config.HaltSticky)

	b.Observe(decimal.NewFromInt(100))
	b.Observe(decimal.NewFromInt(70))

	if !b.Observe(decimal.NewFromInt(100)) {
		t.Error("sticky breaker must remain tripped after recovery")
	}
}

func TestAutoRecoverReArms(t *testing.T) {
	b := New(0.20, config.HaltAutoRecover)

	b.Observe(decimal.NewFromInt(100))
	b.Observe(decimal.NewFromInt(70))
	if !b.Tripped() {
		t.Fatal("breach should trip the breaker")
	}

	if b.Observe(decimal.NewFromInt(95)) {
		t.Error("auto-recover breaker should re-arm once drawdown is under the limit")
	}
	if b.Tripped() {
		t.Error("latch should be cleared after recovery")
	}
}

func TestDrawdownIsReadOnly(t *testing.T) {
	b := New(0.20, config.HaltSticky)
	b.Observe(decimal.NewFromInt(100))

	if dd := b.Drawdown(decimal.NewFromInt(150)); dd != 0 {
		t.Errorf("equity above peak should report 0 drawdown, got %v", dd)
	}
	if !b.Peak().Equal(decimal.NewFromInt(100)) {
		t.Errorf("Drawdown must not move the peak, got %s", b.Peak())
	}
	if dd := b.Drawdown(decimal.NewFromInt(80)); dd != 0.2 {
		t.Errorf("expected drawdown 0.2, got %v", dd)
	}
}

func TestReset(t *testing.T) {
	b := New(0.20, config.HaltSticky)
	b.Observe(decimal.NewFromInt(100))
	b.Observe(decimal.NewFromInt(50))

	b.Reset()

	if b.Tripped() {
		t.Error("reset should clear the latch")
	}
	if !b.Peak().IsZero() {
		t.Errorf("reset should clear the peak, got %s", b.Peak())
	}
}
