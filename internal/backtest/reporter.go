package backtest

import (
	"fmt"
	"math"
	"strings"

	"intrabar/internal/metrics"
)

// Reporter generates reports from backtest results.
type Reporter struct{}

// NewReporter creates a new reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// GenerateReport generates a formatted text report.
func (r *Reporter) GenerateReport(res *Results, sum metrics.Summary) string {
	var sb strings.Builder

	sb.WriteString("═══════════════════════════════════════════════════════\n")
	sb.WriteString("           BACKTEST PERFORMANCE REPORT\n")
	sb.WriteString("═══════════════════════════════════════════════════════\n\n")

	sb.WriteString("📊 OVERALL PERFORMANCE\n")
	sb.WriteString("───────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Final Equity:         $%s\n", res.FinalEquity.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("Total P&L:            $%s (%.2f%%)\n",
		res.TotalPnL.StringFixed(2), res.TotalReturn*100))
	sb.WriteString(fmt.Sprintf("Max Drawdown:         %.2f%%\n", math.Abs(sum.MaxDrawdown)*100))
	sb.WriteString(fmt.Sprintf("Sharpe Ratio:         %.2f\n", sum.SharpeRatio))
	sb.WriteString(fmt.Sprintf("Sortino Ratio:        %.2f\n", sum.SortinoRatio))
	sb.WriteString(fmt.Sprintf("Calmar Ratio:         %.2f\n", sum.CalmarRatio))
	sb.WriteString(fmt.Sprintf("Volatility (ann.):    %.2f%%\n", sum.Volatility*100))
	if res.Halted {
		sb.WriteString("⚠  Drawdown circuit breaker tripped during this run\n")
	}
	sb.WriteString("\n")

	sb.WriteString("📈 TRADE STATISTICS\n")
	sb.WriteString("───────────────────────────────────────────────────────\n")
	sb.WriteString(fmt.Sprintf("Total Trades:         %d\n", res.NumTrades))
	sb.WriteString(fmt.Sprintf("Win Rate:             %.2f%%\n", sum.WinRate*100))
	sb.WriteString(fmt.Sprintf("Profit Factor:        %.2f\n", sum.ProfitFactor))
	sb.WriteString(fmt.Sprintf("Final Position:       %d\n", res.FinalPosition))
	sb.WriteString(fmt.Sprintf("Max |Position|:       %d\n", res.MaxAbsPosition))
	sb.WriteString("\n")

	if len(res.Ledger) > 0 {
		sb.WriteString("📋 RECENT FILLS (Last 10)\n")
		sb.WriteString("───────────────────────────────────────────────────────\n")

		start := len(res.Ledger) - 10
		if start < 0 {
			start = 0
		}
		for _, e := range res.Ledger[start:] {
			sb.WriteString(fmt.Sprintf("%s  %-4s %4d @ %-10s pnl %s\n",
				e.Timestamp.Format("2006-01-02 15:04:05"),
				string(e.Side),
				e.Quantity,
				e.Price.StringFixed(2),
				e.PnL.StringFixed(4)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("═══════════════════════════════════════════════════════\n")
	return sb.String()
}
