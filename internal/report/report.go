// Package report renders symbol state and broker account views as text tables.
package report

import (
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/shreyas-sha3/zen-trade/internal/broker"
	"github.com/shreyas-sha3/zen-trade/internal/execution"
	"github.com/shreyas-sha3/zen-trade/internal/state"
)

// Renderer writes tables, optionally colored for terminals.
type Renderer struct {
	au aurora.Aurora
}

// New returns a renderer; color enables ANSI styling.
func New(color bool) *Renderer {
	return &Renderer{au: aurora.NewAurora(color)}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)
	return table
}

// States renders one row per symbol with its latest price, position and realized gain.
func (r *Renderer) States(w io.Writer, snaps []state.Snapshot) {
	table := newTable(w, "SYMBOL", "LTP", "POSITION", "ENTRY", "QTY", "GAIN %", "LAST BUY", "LAST SELL")
	for _, s := range snaps {
		position := s.Position.String()
		entry := "-"
		if s.Position == state.Long {
			position = r.au.Bold(r.au.Green(s.Position.String())).String()
			entry = s.EntryPrice.StringFixed(2)
		}
		table.Append([]string{
			s.Symbol,
			price(s.LastPrice()),
			position,
			entry,
			fmt.Sprintf("%d", s.TargetQty),
			r.signed(s.GainPct),
			lastMark(s.BuySignals),
			lastMark(s.SellSignals),
		})
	}
	table.Render()
}

// Holdings renders the broker's delivery holdings.
func (r *Renderer) Holdings(w io.Writer, holdings []broker.Holding) {
	table := newTable(w, "SYMBOL", "QTY", "AVG", "LTP", "P&L", "P&L %")
	for _, h := range holdings {
		table.Append([]string{
			h.TradingSymbol,
			fmt.Sprintf("%d", h.Quantity),
			h.AveragePrice.StringFixed(2),
			h.LTP.StringFixed(2),
			r.signed(h.ProfitAndLoss),
			r.signed(h.PnLPercentage),
		})
	}
	table.Render()
}

// Orders renders the day's order book.
func (r *Renderer) Orders(w io.Writer, orders []broker.OrderBookEntry) {
	table := newTable(w, "ORDER ID", "SYMBOL", "SIDE", "QTY", "VARIETY", "STATUS")
	for _, o := range orders {
		table.Append([]string{
			o.OrderID,
			o.TradingSymbol,
			r.side(o.TransactionType),
			o.Quantity,
			o.Variety,
			o.Status,
		})
	}
	table.Render()
}

// Fills renders executed paper fills, oldest first.
func (r *Renderer) Fills(w io.Writer, fills []execution.Fill) {
	table := newTable(w, "TIME", "SYMBOL", "SIDE", "QTY", "PRICE", "VALUE")
	for _, f := range fills {
		table.Append([]string{
			f.Ts.Format("15:04:05"),
			f.Symbol,
			r.side(string(f.Side)),
			fmt.Sprintf("%d", f.Qty),
			f.Price.StringFixed(2),
			f.Price.Mul(decimal.NewFromInt(f.Qty)).StringFixed(2),
		})
	}
	table.Render()
}

func (r *Renderer) side(s string) string {
	switch s {
	case "BUY":
		return r.au.Bold(r.au.Green(s)).String()
	case "SELL":
		return r.au.Bold(r.au.Red(s)).String()
	}
	return s
}

func (r *Renderer) signed(v decimal.Decimal) string {
	s := v.StringFixed(2)
	switch v.Sign() {
	case 1:
		return r.au.Green(s).String()
	case -1:
		return r.au.Red(s).String()
	}
	return s
}

func price(v decimal.Decimal) string {
	if v.IsZero() {
		return "-"
	}
	return v.StringFixed(2)
}

func lastMark(marks []state.SignalMark) string {
	if len(marks) == 0 {
		return "-"
	}
	m := marks[len(marks)-1]
	return fmt.Sprintf("%s @ %s", m.Price.StringFixed(2), m.Ts.Format("15:04:05"))
}
