package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"intrabar/internal/backtest"
	"intrabar/internal/config"
	"intrabar/internal/market"
	"intrabar/internal/metrics"
	"intrabar/internal/regime"
	"intrabar/internal/risk"
	"intrabar/internal/signal"
	"intrabar/internal/strategy"
)

var (
	dataFile   = flag.String("data", "", "Path to CSV file with historical data (required unless -generate-sample)")
	configFile = flag.String("config", "", "Optional YAML run configuration")

	strategyName = flag.String("strategy", "rsi", "Strategy: rsi, ema, zscore, or ensemble")
	tradeQty     = flag.Int64("qty", 1, "Quantity per fill")

	initialCash = flag.Float64("cash", 100000, "Initial cash")
	takerFee    = flag.Float64("fee", 0.0002, "Taker fee rate per fill")
	maxPosition = flag.Int64("max-position", 10, "Absolute position bound")
	maxDrawdown = flag.Float64("max-drawdown", 0.20, "Drawdown circuit breaker limit")

	volWindow    = flag.Int("vol-window", 50, "Risk manager return window")
	volThreshold = flag.Float64("vol-threshold", 0.01, "Risk manager volatility threshold (raw per-tick std)")

	// Strategy parameters
	rsiPeriod     = flag.Int("rsi-period", 14, "RSI period")
	rsiOversold   = flag.Float64("rsi-oversold", 30.0, "RSI oversold threshold")
	rsiOverbought = flag.Float64("rsi-overbought", 70.0, "RSI overbought threshold")
	kerPeriod     = flag.Int("ker-period", 20, "Efficiency ratio period")
	kerThreshold  = flag.Float64("ker-threshold", 0.3, "Efficiency ratio regime threshold")
	shortEMA      = flag.Int("short-ema", 9, "Short EMA period")
	longEMA       = flag.Int("long-ema", 21, "Long EMA period")
	zWindow       = flag.Int("z-window", 30, "Z-score window")
	zEntry        = flag.Float64("z-entry", 2.0, "Z-score entry threshold")
	zExit         = flag.Float64("z-exit", 0.5, "Z-score exit threshold")
	minAgreement  = flag.Float64("min-agreement", 0.5, "Ensemble minimum agreement weight")

	useRegimeFilter = flag.Bool("regime-filter", false, "Gate signals by volatility regime")

	// Output options
	tradesOut      = flag.String("trades-out", "", "Write the trade ledger CSV to this path")
	generateSample = flag.Bool("generate-sample", false, "Generate sample data instead of loading from file")
	sampleTicks    = flag.Int("sample-ticks", 1000, "Number of ticks to generate for sample data")
)

func main() {
	// Optional .env for the BT_*/RISK_* overrides.
	_ = godotenv.Load()

	flag.Parse()

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	btCfg, riskCfg, err := buildConfigs()
	if err != nil {
		return err
	}

	ticks, err := loadTicks()
	if err != nil {
		return err
	}
	if len(ticks) == 0 {
		return fmt.Errorf("no data loaded")
	}
	log.Printf("loaded %d ticks: %s to %s\n",
		len(ticks),
		ticks[0].Timestamp.Format(time.RFC3339),
		ticks[len(ticks)-1].Timestamp.Format(time.RFC3339))

	bt := backtest.New(btCfg)
	res, err := runStrategy(bt, ticks, riskCfg)
	if err != nil {
		return err
	}

	sum := metrics.CalculateAll(res.EquityFloats(), btCfg.PeriodsPerYear, btCfg.RiskFreeRate)
	fmt.Print(backtest.NewReporter().GenerateReport(res, sum))

	if *tradesOut != "" {
		if err := bt.SaveTrades(*tradesOut); err != nil {
			return fmt.Errorf("failed to save trades: %w", err)
		}
		log.Printf("trade ledger written to %s\n", *tradesOut)
	}

	return nil
}

func buildConfigs() (config.BacktestConfig, config.RiskConfig, error) {
	btCfg := config.DefaultBacktestConfig()
	riskCfg := config.DefaultRiskConfig()

	if *configFile != "" {
		fc, err := config.LoadFile(*configFile)
		if err != nil {
			return btCfg, riskCfg, err
		}
		btCfg = fc.Backtest(btCfg)
		riskCfg = fc.Risk(riskCfg)
	}

	// Flags win over file and environment.
	btCfg.InitialCash = decimal.NewFromFloat(*initialCash)
	btCfg.TakerFee = decimal.NewFromFloat(*takerFee)
	btCfg.MaxPosition = *maxPosition
	btCfg.MaxDrawdown = *maxDrawdown
	riskCfg.MaxPosition = *maxPosition
	riskCfg.MaxDrawdown = *maxDrawdown
	riskCfg.VolWindow = *volWindow
	riskCfg.VolThreshold = *volThreshold

	return btCfg, riskCfg, nil
}

func loadTicks() ([]market.Tick, error) {
	loader := backtest.NewDataLoader()

	if *generateSample {
		log.Println("generating sample data")
		return loader.GenerateSampleTicks(time.Now().Add(-30*24*time.Hour), *sampleTicks, 100, time.Minute), nil
	}

	if *dataFile == "" {
		return nil, fmt.Errorf("either -data or -generate-sample is required")
	}
	return loader.LoadFromCSV(*dataFile)
}

func buildGenerators() (map[string]signal.Generator, error) {
	rsiGen, err := signal.NewRSIRegime(signal.RSIRegimeParams{
		Period:       *rsiPeriod,
		Oversold:     *rsiOversold,
		Overbought:   *rsiOverbought,
		KERPeriod:    *kerPeriod,
		KERThreshold: *kerThreshold,
	})
	if err != nil {
		return nil, err
	}
	emaGen, err := signal.NewEMACross(signal.EMACrossParams{Short: *shortEMA, Long: *longEMA})
	if err != nil {
		return nil, err
	}
	zGen, err := signal.NewZScore(signal.ZScoreParams{Window: *zWindow, Entry: *zEntry, Exit: *zExit})
	if err != nil {
		return nil, err
	}
	return map[string]signal.Generator{
		"rsi":    rsiGen,
		"ema":    emaGen,
		"zscore": zGen,
	}, nil
}

func regimeFilter() strategy.RegimeFilter {
	// New entries are suppressed in volatile markets; closes pass through.
	return func(sig signal.Signal, r regime.Regime) bool {
		if sig == signal.Close {
			return true
		}
		return r != regime.Volatile
	}
}

func runStrategy(bt *backtest.Backtester, ticks []market.Tick, riskCfg config.RiskConfig) (*backtest.Results, error) {
	gens, err := buildGenerators()
	if err != nil {
		return nil, err
	}

	var regimes []regime.Regime
	var filter strategy.RegimeFilter
	if *useRegimeFilter {
		classifier, err := regime.NewVolatilityClassifier(*volWindow, *volThreshold/2, *volThreshold)
		if err != nil {
			return nil, err
		}
		regimes, err = classifier.Classify(ticks)
		if err != nil {
			return nil, err
		}
		filter = regimeFilter()
	}

	rm := risk.NewManager(riskCfg)

	if *strategyName == "ensemble" {
		ens, err := strategy.NewEnsemble([]strategy.Source{
			{Generator: gens["rsi"], Weight: 0.4},
			{Generator: gens["ema"], Weight: 0.3},
			{Generator: gens["zscore"], Weight: 0.3},
		}, *minAgreement, rm)
		if err != nil {
			return nil, err
		}
		if err := ens.PrecomputeSignals(ticks); err != nil {
			return nil, err
		}
		for _, st := range ens.Statuses() {
			if !st.Healthy {
				log.Printf("warning: signal source %s degraded: %v\n", st.Name, st.Err)
			}
		}

		for i, tk := range ticks {
			sig, err := ens.SignalAt(i, bt.Position(), bt.Equity(), bt.LastReturn())
			if err != nil {
				return nil, err
			}
			if err := bt.ProcessTick(tk, sig, *tradeQty); err != nil {
				return nil, err
			}
		}
		return bt.Results(), nil
	}

	gen, ok := gens[*strategyName]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (want rsi, ema, zscore, or ensemble)", *strategyName)
	}

	strat := strategy.New(gen, rm, filter)
	if err := strat.PrecomputeSignals(ticks); err != nil {
		return nil, err
	}

	for i, tk := range ticks {
		reg := regime.Unknown
		if regimes != nil {
			reg = regimes[i]
		}
		sig, err := strat.SignalAt(i, bt.Position(), bt.Equity(), bt.LastReturn(), reg)
		if err != nil {
			return nil, err
		}
		if err := bt.ProcessTick(tk, sig, *tradeQty); err != nil {
			return nil, err
		}
	}
	return bt.Results(), nil
}
