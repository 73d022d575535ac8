package backtest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"intrabar/internal/signal"
	"intrabar/internal/testutils"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ticks.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadFromCSVQuoteSchema(t *testing.T) {
	path := writeCSV(t, `timestamp,bid,ask
2024-01-02T09:30:00Z,99.5,100.5
2024-01-02T09:31:00Z,100.0,101.0
`)

	ticks, err := NewDataLoader().LoadFromCSV(path)
	testutils.AssertNoError(t, err, "load")
	testutils.AssertEqual(t, 2, len(ticks), "tick count")

	p, err := ticks[0].RefPrice()
	testutils.AssertNoError(t, err, "ref price")
	testutils.AssertDecimalEqual(t, decimal.NewFromInt(100), p, "bid/ask midpoint")
}

func TestLoadFromCSVBarSchema(t *testing.T) {
	path := writeCSV(t, `time,open,high,low,close,volume
2024-01-02 09:30:00,100,102,99,101,5000
2024-01-02 09:31:00,101,103,100,102,4000
`)

	ticks, err := NewDataLoader().LoadFromCSV(path)
	testutils.AssertNoError(t, err, "load")
	testutils.AssertEqual(t, 2, len(ticks), "tick count")
	testutils.AssertDecimalEqual(t, decimal.NewFromInt(101), ticks[0].Close, "close")
	testutils.AssertDecimalEqual(t, decimal.NewFromInt(5000), ticks[0].Volume, "volume")
}

func TestLoadFromCSVPriceSchema(t *testing.T) {
	path := writeCSV(t, `date,price
2024-01-02,100.25
2024-01-03,100.75
`)

	ticks, err := NewDataLoader().LoadFromCSV(path)
	testutils.AssertNoError(t, err, "load")
	testutils.AssertEqual(t, 2, len(ticks), "tick count")
	testutils.AssertDecimalEqual(t, decimal.NewFromFloat(100.25), ticks[0].Price, "price")
}

func TestLoadFromCSVUnixTimestamps(t *testing.T) {
	path := writeCSV(t, `timestamp,close
1704189000,100
1704189060000,101
`)

	ticks, err := NewDataLoader().LoadFromCSV(path)
	testutils.AssertNoError(t, err, "load")
	testutils.AssertEqual(t, 2, len(ticks), "tick count")
	testutils.AssertEqual(t, int64(1704189000), ticks[0].Timestamp.Unix(), "unix seconds")
	testutils.AssertEqual(t, int64(1704189060), ticks[1].Timestamp.Unix(), "unix milliseconds")
}

func TestLoadFromCSVSortsChronologically(t *testing.T) {
	path := writeCSV(t, `timestamp,close
2024-01-02T09:32:00Z,102
2024-01-02T09:30:00Z,100
2024-01-02T09:31:00Z,101
`)

	ticks, err := NewDataLoader().LoadFromCSV(path)
	testutils.AssertNoError(t, err, "load")
	for i := 1; i < len(ticks); i++ {
		testutils.AssertTrue(t, ticks[i-1].Timestamp.Before(ticks[i].Timestamp), "chronological order")
	}
	testutils.AssertDecimalEqual(t, decimal.NewFromInt(100), ticks[0].Close, "earliest first")
}

func TestLoadFromCSVSkipsBadRows(t *testing.T) {
	path := writeCSV(t, `timestamp,close
2024-01-02T09:30:00Z,100
not-a-time,101
2024-01-02T09:31:00Z,abc
2024-01-02T09:32:00Z,102
`)

	ticks, err := NewDataLoader().LoadFromCSV(path)
	testutils.AssertNoError(t, err, "load")
	testutils.AssertEqual(t, 2, len(ticks), "bad rows skipped")
}

func TestLoadFromCSVMissingColumns(t *testing.T) {
	_, err := NewDataLoader().LoadFromCSV(writeCSV(t, "close\n100\n"))
	testutils.AssertError(t, err, "missing timestamp column")

	_, err = NewDataLoader().LoadFromCSV(writeCSV(t, "timestamp,volume\n2024-01-02T09:30:00Z,100\n"))
	testutils.AssertError(t, err, "missing price column")
}

func TestGenerateSampleTicks(t *testing.T) {
	start := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	ticks := NewDataLoader().GenerateSampleTicks(start, 50, 100, time.Minute)

	testutils.AssertEqual(t, 50, len(ticks), "tick count")
	testutils.AssertEqual(t, start, ticks[0].Timestamp, "start time")
	testutils.AssertEqual(t, start.Add(49*time.Minute), ticks[49].Timestamp, "spacing")

	again := NewDataLoader().GenerateSampleTicks(start, 50, 100, time.Minute)
	for i := range ticks {
		testutils.AssertDecimalEqual(t, ticks[i].Close, again[i].Close, "deterministic series")
	}
}

func TestSaveTrades(t *testing.T) {
	bt := New(testBacktestConfig())
	ticks := testutils.ConstantTicks(2, 100)
	bt.ProcessTick(ticks[0], signal.Buy, 1)
	bt.ProcessTick(ticks[1], signal.Close, 0)

	path := filepath.Join(t.TempDir(), "trades.csv")
	testutils.AssertNoError(t, bt.SaveTrades(path), "save trades")

	data, err := os.ReadFile(path)
	testutils.AssertNoError(t, err, "read back")

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	testutils.AssertEqual(t, 3, len(lines), "header plus two fills")
	testutils.AssertEqual(t, "timestamp,side,price,quantity,fee,pnl,cumulative_pnl", lines[0], "header")
}
