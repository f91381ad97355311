// Package reporting renders risk manager state for operators: console
// tables for live inspection and Excel workbooks for audit hand-off.
package reporting

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/crypto-risk-gate/internal/risk"
)

// ConsoleReporter prints risk state tables to stdout
type ConsoleReporter struct{}

// NewConsoleReporter creates a new console reporter
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{}
}

// PrintStatus renders the manager status and portfolio risk snapshot
func (r *ConsoleReporter) PrintStatus(status risk.Status, portfolio risk.PortfolioRisk) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("RISK GATE STATUS")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"🚦 State", status.State.String()},
		{"📊 Risk Level", portfolio.RiskLevel.String()},
		{"💰 Portfolio Value", fmt.Sprintf("$%.2f", status.PortfolioValue)},
		{"🏔 Peak Value", fmt.Sprintf("$%.2f", status.PeakValue)},
		{"📉 Drawdown", fmt.Sprintf("%.2f%%", portfolio.CurrentDrawdown*100)},
		{"📉 Daily Loss", fmt.Sprintf("%.2f%%", portfolio.DailyLossPercent*100)},
		{"🔄 Open Positions", fmt.Sprintf("%d", portfolio.OpenPositionCount)},
		{"❌ Loss Streak", fmt.Sprintf("%d", status.ConsecutiveLosses)},
	})

	if portfolio.VaRValid {
		t.AppendRow(table.Row{"⚠️ Value at Risk", fmt.Sprintf("$%.2f", portfolio.ValueAtRisk)})
	} else {
		t.AppendRow(table.Row{"⚠️ Value at Risk", fmt.Sprintf("$%.2f (estimate)", portfolio.ValueAtRisk)})
	}
	if status.HaltReason != "" {
		t.AppendRow(table.Row{"🛑 Halt Reason", status.HaltReason})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 45, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}

// PrintDecisions renders the recent decision audit trail, newest last
func (r *ConsoleReporter) PrintDecisions(decisions []risk.DecisionRecord) {
	if len(decisions) == 0 {
		fmt.Println("No decisions recorded yet.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("DECISION AUDIT")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Time", "Symbol", "Side", "Requested", "Outcome", "Adjusted", "Reason"})

	for _, d := range decisions {
		outcome := "✅ accepted"
		if !d.Accepted {
			outcome = "❌ rejected"
		}
		t.AppendRow(table.Row{
			d.Timestamp.Format(time.TimeOnly),
			d.Symbol,
			string(d.Side),
			fmt.Sprintf("%.6f", d.RequestedQuantity),
			outcome,
			fmt.Sprintf("%.6f", d.AdjustedQuantity),
			string(d.Reason),
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})

	t.Render()
	fmt.Println()
}

// PrintPositions renders open positions with their protective levels
func (r *ConsoleReporter) PrintPositions(status risk.Status) {
	if len(status.OpenPositions) == 0 {
		fmt.Println("No open positions.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("OPEN POSITIONS")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Symbol", "Side", "Quantity", "Entry", "Mark", "Stop", "Target", "Unrealized"})

	for _, p := range status.OpenPositions {
		t.AppendRow(table.Row{
			p.Symbol,
			string(p.Side),
			fmt.Sprintf("%.6f", p.Quantity),
			fmt.Sprintf("$%.2f", p.EntryPrice),
			fmt.Sprintf("$%.2f", p.MarkPrice),
			fmt.Sprintf("$%.2f", p.StopLoss),
			fmt.Sprintf("$%.2f", p.TakeProfit),
			fmt.Sprintf("$%.2f", p.UnrealizedPnL()),
		})
	}

	t.Render()
	fmt.Println()
}
