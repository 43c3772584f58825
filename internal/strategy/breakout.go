package strategy

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	sig "github.com/shreyas-sha3/zen-trade/internal/signal"
	"github.com/shreyas-sha3/zen-trade/internal/state"
)

// DefaultBreakoutFactor is the multiple of the average tick volume that counts as a breakout.
const DefaultBreakoutFactor = 1.1

// VolumeBreakout enters long on a volume spike below the recent high and exits on a volume
// spike above the entry price. Both legs share the same breakout condition.
type VolumeBreakout struct {
	factor decimal.Decimal
}

// NewVolumeBreakout builds the strategy; a non-positive factor falls back to the default.
func NewVolumeBreakout(factor float64) *VolumeBreakout {
	if factor <= 0 {
		factor = DefaultBreakoutFactor
	}
	return &VolumeBreakout{factor: decimal.NewFromFloat(factor)}
}

// Name returns the identifier for the strategy implementation.
func (s *VolumeBreakout) Name() string { return "VolumeBreakout" }

// OnTick evaluates the tick against the symbol history. The tick's price and volume must already
// be recorded in ss. Nothing happens until the volume history is full.
func (s *VolumeBreakout) OnTick(ss *state.SymbolState, t sig.Tick) *sig.Decision {
	if ss == nil || ss.TickVolumeCount() < ss.Window() {
		return nil
	}

	vols := ss.TickVolumes()
	data := make(stats.Float64Data, len(vols))
	for i, v := range vols {
		data[i] = float64(v)
	}
	avg, err := stats.Mean(data)
	if err != nil {
		return nil
	}
	threshold := decimal.NewFromFloat(avg).Mul(s.factor)
	if !decimal.NewFromInt(t.Volume).GreaterThan(threshold) {
		return nil
	}

	prices := ss.Prices()
	if len(prices) == 0 {
		return nil
	}
	recentHigh := decimal.Max(prices[0], prices[1:]...)
	// The low is reported for context only; no rule gates on it.
	recentLow := decimal.Min(prices[0], prices[1:]...)
	reason := fmt.Sprintf("vol=%d avg=%.2f high=%s low=%s", t.Volume, avg, recentHigh, recentLow)

	switch ss.Position() {
	case state.Flat:
		if !t.Price.LessThan(recentHigh) {
			return nil
		}
		if err := ss.EnterLong(t.Price, t.Ts); err != nil {
			return nil
		}
		return &sig.Decision{
			Symbol:     ss.Symbol(),
			Action:     sig.Buy,
			Price:      t.Price,
			EntryPrice: t.Price,
			ProfitPct:  decimal.Zero,
			GainPct:    ss.RealizedGainPct(),
			Qty:        ss.TargetQty(),
			Ts:         t.Ts,
			Reason:     reason,
		}
	case state.Long:
		entry := ss.EntryPrice()
		if !t.Price.GreaterThan(entry) {
			return nil
		}
		profit, err := ss.ExitLong(t.Price, t.Ts)
		if err != nil {
			return nil
		}
		return &sig.Decision{
			Symbol:     ss.Symbol(),
			Action:     sig.Sell,
			Price:      t.Price,
			EntryPrice: entry,
			ProfitPct:  profit,
			GainPct:    ss.RealizedGainPct(),
			Qty:        ss.TargetQty(),
			Ts:         t.Ts,
			Reason:     reason,
		}
	}
	return nil
}
