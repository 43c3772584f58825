package execution

import (
	"context"

	"github.com/shopspring/decimal"
)

// TickSize is the NSE equity price step; trigger prices must be a multiple of it.
var TickSize = decimal.RequireFromString("0.05")

// StopLossAbove returns ref raised by pct percent, rounded up to the next tick.
func StopLossAbove(ref decimal.Decimal, pct decimal.Decimal) decimal.Decimal {
	raw := ref.Mul(decimal.NewFromInt(100).Add(pct)).Div(decimal.NewFromInt(100))
	return raw.Div(TickSize).Ceil().Mul(TickSize)
}

// SeedHedge places the initial short hedge for a symbol: a SELL with a stop-loss pct percent above
// the reference price. It runs synchronously, before streaming starts.
func (e *Executor) SeedHedge(ctx context.Context, symbol, token string, qty int64, ref, pct decimal.Decimal) Outcome {
	stop := StopLossAbove(ref, pct)
	e.log.Info().Str("sym", symbol).Int64("qty", qty).Str("ref", ref.String()).Str("stop", stop.StringFixed(2)).Msg("placing seed hedge")
	return e.Execute(ctx, Order{
		Symbol:   symbol,
		Token:    token,
		Side:     Sell,
		Qty:      qty,
		StopLoss: stop,
		RefPrice: ref,
		GainPct:  decimal.Zero,
	})
}
