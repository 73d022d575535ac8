package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"intrabar/internal/market"
)

// DataLoader loads time-ordered tick tables for backtesting.
type DataLoader struct{}

// NewDataLoader creates a new data loader.
func NewDataLoader() *DataLoader {
	return &DataLoader{}
}

// LoadFromCSV loads ticks from a CSV file with a header row. Recognized
// columns (case-insensitive): timestamp/time/date, bid, ask, open, high,
// low, close, volume, price, mid. Any one of the three price schemas
// (bid+ask, close, price/mid) is sufficient. Rows that fail to parse are
// skipped; the result is sorted chronologically.
func (dl *DataLoader) LoadFromCSV(filename string) ([]market.Tick, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	tsCol, ok := findColumn(columns, "timestamp", "time", "date")
	if !ok {
		return nil, fmt.Errorf("no timestamp column in header %v", header)
	}
	if _, ok := findColumn(columns, "bid", "close", "price", "mid"); !ok {
		return nil, fmt.Errorf("no price column (bid/ask, close, or price/mid) in header %v", header)
	}

	ticks := make([]market.Tick, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}

		tick, err := dl.parseRecord(record, columns, tsCol)
		if err != nil {
			continue // skip invalid records
		}
		ticks = append(ticks, tick)
	}

	sort.Slice(ticks, func(i, j int) bool {
		return ticks[i].Timestamp.Before(ticks[j].Timestamp)
	})

	return ticks, nil
}

func (dl *DataLoader) parseRecord(record []string, columns map[string]int, tsCol int) (market.Tick, error) {
	if tsCol >= len(record) {
		return market.Tick{}, fmt.Errorf("record too short")
	}

	timestamp, err := dl.parseTimestamp(record[tsCol])
	if err != nil {
		return market.Tick{}, err
	}

	tick := market.Tick{Timestamp: timestamp}
	fields := map[string]*decimal.Decimal{
		"bid":    &tick.Bid,
		"ask":    &tick.Ask,
		"open":   &tick.Open,
		"high":   &tick.High,
		"low":    &tick.Low,
		"close":  &tick.Close,
		"volume": &tick.Volume,
		"price":  &tick.Price,
		"mid":    &tick.Mid,
	}

	for name, dst := range fields {
		col, ok := columns[name]
		if !ok || col >= len(record) || record[col] == "" {
			continue
		}
		v, err := decimal.NewFromString(record[col])
		if err != nil {
			return market.Tick{}, fmt.Errorf("invalid %s value: %w", name, err)
		}
		*dst = v
	}

	if _, err := tick.RefPrice(); err != nil {
		return market.Tick{}, err
	}
	return tick, nil
}

// parseTimestamp parses unix seconds/milliseconds, RFC3339, and common date
// formats.
func (dl *DataLoader) parseTimestamp(s string) (time.Time, error) {
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ts > 10000000000 {
			return time.Unix(ts/1000, (ts%1000)*1000000), nil
		}
		return time.Unix(ts, 0), nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %s", s)
}

// GenerateSampleTicks generates a deterministic synthetic close series for
// demos and tests.
func (dl *DataLoader) GenerateSampleTicks(startTime time.Time, count int, basePrice float64, interval time.Duration) []market.Tick {
	ticks := make([]market.Tick, 0, count)

	currentTime := startTime
	currentPrice := decimal.NewFromFloat(basePrice)

	for i := 0; i < count; i++ {
		change := decimal.NewFromFloat((float64(i%10) - 4.5) * 0.001)
		currentPrice = currentPrice.Add(currentPrice.Mul(change))

		ticks = append(ticks, market.Tick{
			Timestamp: currentTime,
			Close:     currentPrice,
			Volume:    decimal.NewFromFloat(1000 + float64(i%500)),
		})
		currentTime = currentTime.Add(interval)
	}

	return ticks
}

func findColumn(columns map[string]int, names ...string) (int, bool) {
	for _, name := range names {
		if col, ok := columns[name]; ok {
			return col, true
		}
	}
	return 0, false
}
