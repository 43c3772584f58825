// Package risk holds pre-trade guard rails applied by the execution adapter.
package risk

import "github.com/shopspring/decimal"

// Limits caps order size. A zero MaxNotionalPerTrade disables the check.
type Limits struct {
	MaxNotionalPerTrade decimal.Decimal
}

// Allow reports whether an order of the given notional may be sent.
func (l Limits) Allow(notional decimal.Decimal) bool {
	if !l.MaxNotionalPerTrade.IsPositive() {
		return true
	}
	return notional.LessThanOrEqual(l.MaxNotionalPerTrade)
}
