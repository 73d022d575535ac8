// Package config holds the immutable configuration values passed into the
// engine constructors. Defaults can be overridden by environment variables or
// a YAML file; nothing in here mutates after construction.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// HaltPolicy controls how a drawdown circuit breaker behaves after tripping.
type HaltPolicy string

const (
	// HaltSticky keeps the breaker tripped for the remainder of the run.
	// This matches the observed kill-switch behavior and is the default.
	HaltSticky HaltPolicy = "sticky"
	// HaltAutoRecover re-arms the breaker once drawdown falls back under
	// the limit.
	HaltAutoRecover HaltPolicy = "auto_recover"
)

// BacktestConfig configures a single Backtester run.
type BacktestConfig struct {
	InitialCash    decimal.Decimal
	TakerFee       decimal.Decimal // fraction per fill, e.g. 0.0002
	MaxPosition    int64           // absolute position bound
	MaxDrawdown    float64         // fraction, e.g. 0.20
	HaltPolicy     HaltPolicy
	PeriodsPerYear float64
	RiskFreeRate   float64 // per-period
}

// RiskConfig configures a RiskManager.
type RiskConfig struct {
	MaxPosition  int64
	MaxDrawdown  float64
	VolWindow    int // sliding window of per-tick returns
	VolThreshold float64
	HaltPolicy   HaltPolicy
}

// DefaultBacktestConfig returns engine defaults, overridable via environment
// variables (BT_INITIAL_CASH, BT_TAKER_FEE, BT_MAX_POSITION, BT_MAX_DRAWDOWN,
// BT_PERIODS_PER_YEAR, BT_HALT_POLICY).
func DefaultBacktestConfig() BacktestConfig {
	cfg := BacktestConfig{
		InitialCash:    decimal.NewFromInt(100000),
		TakerFee:       decimal.NewFromFloat(0.0002),
		MaxPosition:    10,
		MaxDrawdown:    0.20,
		HaltPolicy:     HaltSticky,
		PeriodsPerYear: 252 * 390, // one-minute bars over a US equity session
		RiskFreeRate:   0,
	}

	if v := parseFloatEnv("BT_INITIAL_CASH", 0); v > 0 {
		cfg.InitialCash = decimal.NewFromFloat(v)
	}
	if v := parseFloatEnv("BT_TAKER_FEE", -1); v >= 0 {
		cfg.TakerFee = decimal.NewFromFloat(v)
	}
	if v := parseIntEnv("BT_MAX_POSITION", 0); v > 0 {
		cfg.MaxPosition = int64(v)
	}
	if v := parseFloatEnv("BT_MAX_DRAWDOWN", 0); v > 0 {
		cfg.MaxDrawdown = v
	}
	if v := parseFloatEnv("BT_PERIODS_PER_YEAR", 0); v > 0 {
		cfg.PeriodsPerYear = v
	}
	if v := os.Getenv("BT_HALT_POLICY"); v == string(HaltAutoRecover) {
		cfg.HaltPolicy = HaltAutoRecover
	}

	return cfg
}

// DefaultRiskConfig returns risk-gate defaults.
//
// VolThreshold compares against the population standard deviation of raw
// per-tick returns. It is not annualized, so its meaning is coupled to the
// tick interval of the input data; retune it when changing timeframes.
func DefaultRiskConfig() RiskConfig {
	cfg := RiskConfig{
		MaxPosition:  10,
		MaxDrawdown:  0.20,
		VolWindow:    50,
		VolThreshold: 0.01,
		HaltPolicy:   HaltSticky,
	}

	if v := parseIntEnv("RISK_MAX_POSITION", 0); v > 0 {
		cfg.MaxPosition = int64(v)
	}
	if v := parseFloatEnv("RISK_MAX_DRAWDOWN", 0); v > 0 {
		cfg.MaxDrawdown = v
	}
	if v := parseIntEnv("RISK_VOL_WINDOW", 0); v > 0 {
		cfg.VolWindow = v
	}
	if v := parseFloatEnv("RISK_VOL_THRESHOLD", 0); v > 0 {
		cfg.VolThreshold = v
	}

	return cfg
}

// FileConfig is the YAML representation of a full run configuration.
type FileConfig struct {
	InitialCash    float64 `yaml:"initial_cash"`
	TakerFee       float64 `yaml:"taker_fee"`
	MaxPosition    int64   `yaml:"max_position"`
	MaxDrawdown    float64 `yaml:"max_drawdown"`
	HaltPolicy     string  `yaml:"halt_policy"`
	PeriodsPerYear float64 `yaml:"periods_per_year"`
	RiskFreeRate   float64 `yaml:"risk_free_rate"`
	VolWindow      int     `yaml:"vol_window"`
	VolThreshold   float64 `yaml:"vol_threshold"`
}

// LoadFile reads a YAML run configuration.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &fc, nil
}

// Backtest merges the file values over the given defaults.
func (fc *FileConfig) Backtest(base BacktestConfig) BacktestConfig {
	if fc.InitialCash > 0 {
		base.InitialCash = decimal.NewFromFloat(fc.InitialCash)
	}
	if fc.TakerFee > 0 {
		base.TakerFee = decimal.NewFromFloat(fc.TakerFee)
	}
	if fc.MaxPosition > 0 {
		base.MaxPosition = fc.MaxPosition
	}
	if fc.MaxDrawdown > 0 {
		base.MaxDrawdown = fc.MaxDrawdown
	}
	if fc.HaltPolicy == string(HaltAutoRecover) {
		base.HaltPolicy = HaltAutoRecover
	}
	if fc.PeriodsPerYear > 0 {
		base.PeriodsPerYear = fc.PeriodsPerYear
	}
	if fc.RiskFreeRate != 0 {
		base.RiskFreeRate = fc.RiskFreeRate
	}
	return base
}

// Risk merges the file values over the given defaults.
func (fc *FileConfig) Risk(base RiskConfig) RiskConfig {
	if fc.MaxPosition > 0 {
		base.MaxPosition = fc.MaxPosition
	}
	if fc.MaxDrawdown > 0 {
		base.MaxDrawdown = fc.MaxDrawdown
	}
	if fc.VolWindow > 0 {
		base.VolWindow = fc.VolWindow
	}
	if fc.VolThreshold > 0 {
		base.VolThreshold = fc.VolThreshold
	}
	if fc.HaltPolicy == string(HaltAutoRecover) {
		base.HaltPolicy = HaltAutoRecover
	}
	return base
}

func parseIntEnv(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseFloatEnv(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
