// Package paper simulates the broker for offline runs: fills happen at the latest streamed mark.
package paper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shreyas-sha3/zen-trade/internal/broker"
	"github.com/shreyas-sha3/zen-trade/internal/execution"
)

// Order statuses reported in the paper order book.
const (
	StatusComplete       = "complete"
	StatusTriggerPending = "trigger pending"
	StatusCancelled      = "cancelled"
	StatusRejected       = "rejected"
)

// ErrNoMark is returned when an order or quote needs a price the broker has not seen yet.
var ErrNoMark = errors.New("paper: no mark for token")

type paperOrder struct {
	entry   broker.OrderBookEntry
	token   string
	side    execution.Side
	qty     int64
	trigger decimal.Decimal
}

// Broker implements broker.Broker against an in-process Account.
type Broker struct {
	account  *Account
	recorder FillRecorder
	now      func() time.Time

	mu      sync.Mutex
	scrips  []broker.Scrip
	marks   map[string]decimal.Decimal // by token
	symbols map[string]string          // token -> trading symbol
	orders  []*paperOrder
}

// BrokerOption configures a paper Broker.
type BrokerOption func(*Broker)

// WithRecorder sends every fill to r.
func WithRecorder(r FillRecorder) BrokerOption {
	return func(b *Broker) { b.recorder = r }
}

// WithClock overrides the fill timestamp source.
func WithClock(now func() time.Time) BrokerOption {
	return func(b *Broker) {
		if now != nil {
			b.now = now
		}
	}
}

// WithScrips lists the instruments SearchScrip can find.
func WithScrips(scrips ...broker.Scrip) BrokerOption {
	return func(b *Broker) {
		for _, s := range scrips {
			b.scrips = append(b.scrips, s)
			b.symbols[s.SymbolToken] = s.TradingSymbol
		}
	}
}

// WithMarks seeds prices before the stream delivers any.
func WithMarks(marks map[string]decimal.Decimal) BrokerOption {
	return func(b *Broker) {
		for tok, px := range marks {
			b.marks[tok] = px
		}
	}
}

// NewBroker builds a paper broker over account.
func NewBroker(account *Account, opts ...BrokerOption) *Broker {
	b := &Broker{
		account: account,
		now:     time.Now,
		marks:   make(map[string]decimal.Decimal),
		symbols: make(map[string]string),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Account exposes the simulated account.
func (b *Broker) Account() *Account { return b.account }

// Mark records the latest price for a token and fires any stop orders it triggers.
func (b *Broker) Mark(token string, price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.marks[token] = price
	for _, o := range b.orders {
		if o.token == token && o.entry.Status == StatusTriggerPending && triggered(o, price) {
			b.fillLocked(o, price)
		}
	}
}

// Marks returns the latest prices keyed by trading symbol.
func (b *Broker) Marks() map[string]decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(b.marks))
	for tok, px := range b.marks {
		out[b.symbolLocked(tok)] = px
	}
	return out
}

// PlaceOrder fills market orders at the current mark. Stop-market orders rest until the mark
// crosses the trigger, which may be immediately.
func (b *Broker) PlaceOrder(_ context.Context, p broker.OrderParams) (string, error) {
	qty, err := strconv.ParseInt(p.Quantity, 10, 64)
	if err != nil {
		return "", fmt.Errorf("paper: parse quantity %q: %w", p.Quantity, err)
	}
	side := execution.Side(strings.ToUpper(p.TransactionType))

	o := &paperOrder{
		entry: broker.OrderBookEntry{
			OrderID:         uuid.NewString(),
			Variety:         p.Variety,
			TradingSymbol:   p.TradingSymbol,
			TransactionType: string(side),
			Quantity:        p.Quantity,
		},
		token: p.SymbolToken,
		side:  side,
		qty:   qty,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if p.SymbolToken != "" && p.TradingSymbol != "" {
		b.symbols[p.SymbolToken] = p.TradingSymbol
	}
	mark, ok := b.marks[p.SymbolToken]
	if !ok {
		return "", fmt.Errorf("%w %s", ErrNoMark, p.SymbolToken)
	}

	if p.OrderType == broker.OrderTypeStopLossMarket {
		trigger, err := decimal.NewFromString(p.TriggerPrice)
		if err != nil {
			return "", fmt.Errorf("paper: parse trigger %q: %w", p.TriggerPrice, err)
		}
		o.trigger = trigger
		o.entry.Status = StatusTriggerPending
		b.orders = append(b.orders, o)
		if triggered(o, mark) {
			b.fillLocked(o, mark)
		}
		return o.entry.OrderID, nil
	}

	if _, err := b.account.MarketFill(p.TradingSymbol, side, qty, mark); err != nil {
		o.entry.Status = StatusRejected
		b.orders = append(b.orders, o)
		return "", err
	}
	o.entry.Status = StatusComplete
	b.orders = append(b.orders, o)
	b.recordLocked(o, mark)
	return o.entry.OrderID, nil
}

// A sell stop fires at or below its trigger, a buy stop at or above.
func triggered(o *paperOrder, price decimal.Decimal) bool {
	if o.side == execution.Sell {
		return price.LessThanOrEqual(o.trigger)
	}
	return price.GreaterThanOrEqual(o.trigger)
}

func (b *Broker) fillLocked(o *paperOrder, price decimal.Decimal) {
	if _, err := b.account.MarketFill(o.entry.TradingSymbol, o.side, o.qty, price); err != nil {
		o.entry.Status = StatusRejected
		return
	}
	o.entry.Status = StatusComplete
	b.recordLocked(o, price)
}

func (b *Broker) recordLocked(o *paperOrder, price decimal.Decimal) {
	if b.recorder == nil {
		return
	}
	b.recorder.Record(execution.Fill{
		OrderID: o.entry.OrderID,
		Symbol:  o.entry.TradingSymbol,
		Side:    o.side,
		Qty:     o.qty,
		Price:   price,
		Ts:      b.now(),
	})
}

func (b *Broker) symbolLocked(token string) string {
	if sym, ok := b.symbols[token]; ok {
		return sym
	}
	return token
}

// LTP returns the current marks for tokens. Unknown tokens are an error.
func (b *Broker) LTP(_ context.Context, _ string, tokens []string) ([]broker.Quote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broker.Quote, 0, len(tokens))
	for _, tok := range tokens {
		px, ok := b.marks[tok]
		if !ok {
			return nil, fmt.Errorf("%w %s", ErrNoMark, tok)
		}
		out = append(out, broker.Quote{TradingSymbol: b.symbolLocked(tok), SymbolToken: tok, LTP: px})
	}
	return out, nil
}

// SearchScrip matches configured scrips whose trading symbol starts with query, case-insensitively.
func (b *Broker) SearchScrip(_ context.Context, exchange, query string) ([]broker.Scrip, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := strings.ToUpper(query)
	var out []broker.Scrip
	for _, s := range b.scrips {
		if s.Exchange != "" && exchange != "" && s.Exchange != exchange {
			continue
		}
		if strings.HasPrefix(strings.ToUpper(s.TradingSymbol), q) {
			out = append(out, s)
		}
	}
	return out, nil
}

// AvailableCash reports the account's free cash.
func (b *Broker) AvailableCash(context.Context) (decimal.Decimal, error) {
	return b.account.AvailableCash(), nil
}

// OrderBook lists every order placed this session.
func (b *Broker) OrderBook(context.Context) ([]broker.OrderBookEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broker.OrderBookEntry, len(b.orders))
	for i, o := range b.orders {
		out[i] = o.entry
	}
	return out, nil
}

// CancelOrder cancels a resting stop order.
func (b *Broker) CancelOrder(_ context.Context, _ string, orderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.orders {
		if o.entry.OrderID != orderID {
			continue
		}
		if o.entry.Status != StatusTriggerPending {
			return fmt.Errorf("paper: order %s is %s", orderID, o.entry.Status)
		}
		o.entry.Status = StatusCancelled
		return nil
	}
	return fmt.Errorf("%w: order %s", broker.ErrNotFound, orderID)
}

// Holdings reports long positions marked at the latest prices.
func (b *Broker) Holdings(context.Context) ([]broker.Holding, error) {
	marks := b.Marks()
	snap := b.account.Snapshot(marks)

	syms := make([]string, 0, len(snap.Positions))
	for sym := range snap.Positions {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	var out []broker.Holding
	for _, sym := range syms {
		pos := snap.Positions[sym]
		if pos.Qty <= 0 {
			continue
		}
		h := broker.Holding{
			TradingSymbol: sym,
			Quantity:      pos.Qty,
			AveragePrice:  pos.AvgCost,
			LTP:           marks[sym],
			ProfitAndLoss: pos.Unrealized,
		}
		if pos.AvgCost.IsPositive() && h.LTP.IsPositive() {
			h.PnLPercentage = h.LTP.Sub(pos.AvgCost).Div(pos.AvgCost).Mul(decimal.NewFromInt(100)).Round(2)
		}
		out = append(out, h)
	}
	return out, nil
}

var _ broker.Broker = (*Broker)(nil)
