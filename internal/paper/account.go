package paper

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/shreyas-sha3/zen-trade/internal/execution"
)

var (
	ErrBadQuantity      = errors.New("paper: quantity must be positive")
	ErrBadPrice         = errors.New("paper: price must be positive")
	ErrInsufficientCash = errors.New("paper: insufficient cash for buy")
	ErrPositionLimit    = errors.New("paper: position limit exceeded")
	ErrUnknownSide      = errors.New("paper: unknown order side")
)

type positionState struct {
	Qty     int64 // negative when short
	AvgCost decimal.Decimal
}

// Account tracks virtual cash, realized PnL, and per-symbol positions while trading in paper mode.
// Intraday shorts are allowed: a sell beyond the held quantity opens a short at the fill price.
type Account struct {
	mu                   sync.Mutex
	startingCash         decimal.Decimal
	cash                 decimal.Decimal
	realizedPnL          decimal.Decimal
	maxPositionPerSymbol int64
	positions            map[string]positionState
}

// PositionSnapshot exposes a read-only view of a single symbol position.
type PositionSnapshot struct {
	Qty         int64
	AvgCost     decimal.Decimal
	MarketValue decimal.Decimal
	Unrealized  decimal.Decimal
}

// Snapshot represents a thread-safe view of the account state, optionally marked to market using provided prices.
type Snapshot struct {
	Cash        decimal.Decimal
	RealizedPnL decimal.Decimal
	Equity      decimal.Decimal
	Positions   map[string]PositionSnapshot
}

// NewAccount constructs an account populated with starting cash and optional absolute position cap.
func NewAccount(startingCash decimal.Decimal, maxPositionPerSymbol int64) *Account {
	return &Account{
		startingCash:         startingCash,
		cash:                 startingCash,
		maxPositionPerSymbol: maxPositionPerSymbol,
		positions:            make(map[string]positionState),
	}
}

// StartingCash returns the initial bankroll.
func (a *Account) StartingCash() decimal.Decimal { return a.startingCash }

// MarketFill executes a market order at price, mutating balances if successful. It returns the PnL
// realized by the part of the fill that reduced an existing position.
func (a *Account) MarketFill(symbol string, side execution.Side, qty int64, price decimal.Decimal) (decimal.Decimal, error) {
	if qty <= 0 {
		return decimal.Zero, ErrBadQuantity
	}
	if !price.IsPositive() {
		return decimal.Zero, ErrBadPrice
	}

	var signed int64
	switch side {
	case execution.Buy:
		signed = qty
	case execution.Sell:
		signed = -qty
	default:
		return decimal.Zero, ErrUnknownSide
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	pos := a.positions[symbol]
	notional := price.Mul(decimal.NewFromInt(qty))
	if side == execution.Buy && notional.GreaterThan(a.cash) {
		return decimal.Zero, ErrInsufficientCash
	}
	newQty := pos.Qty + signed
	if a.maxPositionPerSymbol > 0 && abs(newQty) > a.maxPositionPerSymbol {
		return decimal.Zero, ErrPositionLimit
	}

	realized := decimal.Zero
	switch {
	case pos.Qty == 0 || sameSign(pos.Qty, signed):
		total := pos.AvgCost.Mul(decimal.NewFromInt(abs(pos.Qty))).Add(notional)
		pos.AvgCost = total.Div(decimal.NewFromInt(abs(newQty)))
	default:
		closed := min(abs(pos.Qty), qty)
		// A long closes with a sell: (price - avg). A short closes with a buy: (avg - price).
		diff := price.Sub(pos.AvgCost)
		if pos.Qty < 0 {
			diff = diff.Neg()
		}
		realized = diff.Mul(decimal.NewFromInt(closed))
		if newQty != 0 && !sameSign(newQty, pos.Qty) {
			pos.AvgCost = price
		}
	}
	pos.Qty = newQty

	if side == execution.Buy {
		a.cash = a.cash.Sub(notional)
	} else {
		a.cash = a.cash.Add(notional)
	}
	a.realizedPnL = a.realizedPnL.Add(realized)
	if pos.Qty == 0 {
		delete(a.positions, symbol)
	} else {
		a.positions[symbol] = pos
	}
	return realized, nil
}

// Snapshot returns a copy of balances, marked using the supplied prices. Symbols without a mark
// contribute nothing to equity.
func (a *Account) Snapshot(prices map[string]decimal.Decimal) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make(map[string]PositionSnapshot, len(a.positions))
	equity := a.cash
	for sym, pos := range a.positions {
		ps := PositionSnapshot{Qty: pos.Qty, AvgCost: pos.AvgCost}
		if mark, ok := prices[sym]; ok && mark.IsPositive() {
			q := decimal.NewFromInt(pos.Qty)
			ps.MarketValue = mark.Mul(q)
			ps.Unrealized = mark.Sub(pos.AvgCost).Mul(q)
		}
		positions[sym] = ps
		equity = equity.Add(ps.MarketValue)
	}

	return Snapshot{
		Cash:        a.cash,
		RealizedPnL: a.realizedPnL,
		Equity:      equity,
		Positions:   positions,
	}
}

// AvailableCash reports free cash.
func (a *Account) AvailableCash() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash
}

// Position returns the signed position size for the supplied symbol.
func (a *Account) Position(symbol string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[symbol].Qty
}

// RealizedPnL returns total closed-trade profit and loss.
func (a *Account) RealizedPnL() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func sameSign(a, b int64) bool { return (a > 0) == (b > 0) }
