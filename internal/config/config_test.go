package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultBacktestConfig(t *testing.T) {
	cfg := DefaultBacktestConfig()

	if !cfg.InitialCash.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("initial cash = %s", cfg.InitialCash)
	}
	if !cfg.TakerFee.Equal(decimal.NewFromFloat(0.0002)) {
		t.Errorf("taker fee = %s", cfg.TakerFee)
	}
	if cfg.MaxPosition != 10 {
		t.Errorf("max position = %d", cfg.MaxPosition)
	}
	if cfg.MaxDrawdown != 0.20 {
		t.Errorf("max drawdown = %f", cfg.MaxDrawdown)
	}
	if cfg.HaltPolicy != HaltSticky {
		t.Errorf("halt policy = %q", cfg.HaltPolicy)
	}
	if cfg.PeriodsPerYear != 252*390 {
		t.Errorf("periods per year = %f", cfg.PeriodsPerYear)
	}
}

func TestDefaultBacktestConfigEnvOverrides(t *testing.T) {
	t.Setenv("BT_INITIAL_CASH", "50000")
	t.Setenv("BT_TAKER_FEE", "0.001")
	t.Setenv("BT_MAX_POSITION", "25")
	t.Setenv("BT_MAX_DRAWDOWN", "0.10")
	t.Setenv("BT_HALT_POLICY", "auto_recover")

	cfg := DefaultBacktestConfig()

	if !cfg.InitialCash.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("initial cash = %s", cfg.InitialCash)
	}
	if !cfg.TakerFee.Equal(decimal.NewFromFloat(0.001)) {
		t.Errorf("taker fee = %s", cfg.TakerFee)
	}
	if cfg.MaxPosition != 25 {
		t.Errorf("max position = %d", cfg.MaxPosition)
	}
	if cfg.MaxDrawdown != 0.10 {
		t.Errorf("max drawdown = %f", cfg.MaxDrawdown)
	}
	if cfg.HaltPolicy != HaltAutoRecover {
		t.Errorf("halt policy = %q", cfg.HaltPolicy)
	}
}

func TestDefaultBacktestConfigZeroFeeOverride(t *testing.T) {
	t.Setenv("BT_TAKER_FEE", "0")

	cfg := DefaultBacktestConfig()
	if !cfg.TakerFee.IsZero() {
		t.Errorf("a fee of zero must be honored, got %s", cfg.TakerFee)
	}
}

func TestDefaultBacktestConfigBadEnvIgnored(t *testing.T) {
	t.Setenv("BT_MAX_POSITION", "lots")
	t.Setenv("BT_MAX_DRAWDOWN", "-0.3")
	t.Setenv("BT_HALT_POLICY", "bogus")

	cfg := DefaultBacktestConfig()
	if cfg.MaxPosition != 10 {
		t.Errorf("unparseable env should keep the default, got %d", cfg.MaxPosition)
	}
	if cfg.MaxDrawdown != 0.20 {
		t.Errorf("negative drawdown should keep the default, got %f", cfg.MaxDrawdown)
	}
	if cfg.HaltPolicy != HaltSticky {
		t.Errorf("unknown policy should keep the default, got %q", cfg.HaltPolicy)
	}
}

func TestDefaultRiskConfig(t *testing.T) {
	cfg := DefaultRiskConfig()

	if cfg.MaxPosition != 10 || cfg.MaxDrawdown != 0.20 || cfg.VolWindow != 50 || cfg.VolThreshold != 0.01 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	t.Setenv("RISK_MAX_POSITION", "3")
	t.Setenv("RISK_VOL_WINDOW", "100")
	cfg = DefaultRiskConfig()
	if cfg.MaxPosition != 3 {
		t.Errorf("max position = %d", cfg.MaxPosition)
	}
	if cfg.VolWindow != 100 {
		t.Errorf("vol window = %d", cfg.VolWindow)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	content := `initial_cash: 25000
taker_fee: 0.0005
max_position: 4
halt_policy: auto_recover
vol_window: 30
vol_threshold: 0.02
risk_free_rate: 0.0001
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}

	bt := fc.Backtest(DefaultBacktestConfig())
	if !bt.InitialCash.Equal(decimal.NewFromInt(25000)) {
		t.Errorf("initial cash = %s", bt.InitialCash)
	}
	if !bt.TakerFee.Equal(decimal.NewFromFloat(0.0005)) {
		t.Errorf("taker fee = %s", bt.TakerFee)
	}
	if bt.MaxPosition != 4 {
		t.Errorf("max position = %d", bt.MaxPosition)
	}
	if bt.HaltPolicy != HaltAutoRecover {
		t.Errorf("halt policy = %q", bt.HaltPolicy)
	}
	if bt.MaxDrawdown != 0.20 {
		t.Errorf("unset file field should keep the default, got %f", bt.MaxDrawdown)
	}
	if bt.RiskFreeRate != 0.0001 {
		t.Errorf("risk free rate = %f", bt.RiskFreeRate)
	}

	rk := fc.Risk(DefaultRiskConfig())
	if rk.VolWindow != 30 {
		t.Errorf("vol window = %d", rk.VolWindow)
	}
	if rk.VolThreshold != 0.02 {
		t.Errorf("vol threshold = %f", rk.VolThreshold)
	}
	if rk.MaxPosition != 4 {
		t.Errorf("risk max position = %d", rk.MaxPosition)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("initial_cash: [not a number"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("malformed yaml should fail")
	}
}
