// Package ui renders the operator's console view. It is a pure consumer of
// the core's outputs: position/account snapshots, the last order record and
// the latest merged candle.
package ui

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/cyrus123live/btc-trading/internal/account"
	"github.com/cyrus123live/btc-trading/pkg/types"
)

// Dashboard renders trading state as console tables
type Dashboard struct {
	symbol string
	out    io.Writer

	mu         sync.Mutex
	lastCandle *types.Candle
}

// NewDashboard creates a dashboard writing to stdout
func NewDashboard(symbol string) *Dashboard {
	return &Dashboard{symbol: symbol, out: os.Stdout}
}

// NewDashboardWithWriter creates a dashboard writing to out
func NewDashboardWithWriter(symbol string, out io.Writer) *Dashboard {
	return &Dashboard{symbol: symbol, out: out}
}

// ObserveCandle records the latest merged candle for display
func (d *Dashboard) ObserveCandle(c types.Candle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastCandle = &c
}

// PrintStartup prints session parameters at launch
func (d *Dashboard) PrintStartup(serverURL, duration, barSize string) {
	t := table.NewWriter()
	t.SetOutputMirror(d.out)
	t.SetTitle("TRADING TERMINAL")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"Symbol", d.symbol},
		{"Server", serverURL},
		{"History", fmt.Sprintf("%s / %s bars", duration, barSize)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 12, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Fprintln(d.out)
}

// PrintSnapshot renders the position and account view. A flat position is
// reported as "no open position" rather than a zero row.
func (d *Dashboard) PrintSnapshot(snap account.Snapshot) {
	t := table.NewWriter()
	t.SetOutputMirror(d.out)
	t.SetTitle("POSITION")
	t.SetStyle(table.StyleRounded)

	if pos, ok := snap.Primary(); ok {
		direction := "LONG"
		if !pos.IsLong() {
			direction = "SHORT"
		}
		t.AppendRows([]table.Row{
			{"Direction", direction},
			{"Size", fmt.Sprintf("%.0f %s", math.Abs(pos.Size), pos.Symbol)},
			{"Avg Cost", fmt.Sprintf("$%.2f", pos.AvgCost)},
			{"Unrealized PnL", formatSigned(pos.UnrealizedPnL)},
			{"Market Value", fmt.Sprintf("$%.2f", pos.MarketValue)},
		})
	} else {
		t.AppendRow(table.Row{"Status", "no open position"})
	}

	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Net Liquidation", fmt.Sprintf("$%.2f", snap.Account.NetLiquidation)},
		{"Available Funds", fmt.Sprintf("$%.2f", snap.Account.AvailableFunds)},
		{"Buying Power", fmt.Sprintf("$%.2f", snap.Account.BuyingPower)},
		{"Margin Used", fmt.Sprintf("$%.2f", snap.Account.MarginUsed)},
	})

	d.mu.Lock()
	if d.lastCandle != nil {
		t.AppendSeparator()
		t.AppendRow(table.Row{"Last Price", fmt.Sprintf("$%.2f", d.lastCandle.Close)})
	}
	d.mu.Unlock()

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Fprintln(d.out)
}

// PrintOrder renders the outcome of a completed order
func (d *Dashboard) PrintOrder(order types.Order) {
	fill := "pending"
	if order.AvgFillPrice != nil {
		fill = fmt.Sprintf("$%.2f", *order.AvgFillPrice)
	}

	t := table.NewWriter()
	t.SetOutputMirror(d.out)
	t.SetTitle("LAST ORDER")
	t.SetStyle(table.StyleRounded)
	t.AppendRows([]table.Row{
		{"Order ID", order.OrderID},
		{"Side", string(order.Side)},
		{"Quantity", order.Quantity},
		{"Status", order.Status},
		{"Avg Fill", fill},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 12, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Fprintln(d.out)
}

func formatSigned(v float64) string {
	if v >= 0 {
		return fmt.Sprintf("+$%.2f", v)
	}
	return fmt.Sprintf("-$%.2f", -v)
}
