// Package state owns the per-symbol rolling history and position bookkeeping.
//
// Every mutating method is meant to be called from a single goroutine (the stream driver's
// consumer). Snapshot may be called from anywhere and returns a detached copy.
package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shreyas-sha3/zen-trade/internal/buffer"
)

const (
	// DefaultWindow is the length of every rolling price/volume history.
	DefaultWindow = 30
	// DefaultSignalLog bounds the buy/sell audit logs.
	DefaultSignalLog = 10
)

// Position is the strategy position of one symbol.
type Position int

const (
	// Flat means no open position.
	Flat Position = iota
	// Long means a position was entered on a BUY decision and not yet exited.
	Long
)

func (p Position) String() string {
	if p == Long {
		return "LONG"
	}
	return "FLAT"
}

// Instrument identifies a tracked symbol and the quantity traded for it.
type Instrument struct {
	Symbol string
	Token  string
	Qty    int64
}

// SignalMark records where a decision fired.
type SignalMark struct {
	Ts    time.Time
	Price decimal.Decimal
}

// SymbolState is the rolling history and position of one symbol.
type SymbolState struct {
	mu sync.RWMutex

	symbol string
	token  string

	prices      *buffer.Window[decimal.Decimal]
	times       *buffer.Window[time.Time]
	rawVolumes  *buffer.Window[int64]
	tickVolumes *buffer.Window[int64]
	buySignals  *buffer.Window[SignalMark]
	sellSignals *buffer.Window[SignalMark]

	position   Position
	entryPrice decimal.Decimal
	gainPct    decimal.Decimal
	targetQty  int64
}

func newSymbolState(inst Instrument, window, signalLog int) *SymbolState {
	return &SymbolState{
		symbol:      inst.Symbol,
		token:       inst.Token,
		prices:      buffer.New[decimal.Decimal](window),
		times:       buffer.New[time.Time](window),
		rawVolumes:  buffer.New[int64](window),
		tickVolumes: buffer.New[int64](window),
		buySignals:  buffer.New[SignalMark](signalLog),
		sellSignals: buffer.New[SignalMark](signalLog),
		position:    Flat,
		entryPrice:  decimal.Zero,
		gainPct:     decimal.Zero,
		targetQty:   inst.Qty,
	}
}

// Symbol returns the trading symbol.
func (s *SymbolState) Symbol() string { return s.symbol }

// Token returns the exchange token.
func (s *SymbolState) Token() string { return s.token }

// TargetQty returns the fixed trade quantity.
func (s *SymbolState) TargetQty() int64 { return s.targetQty }

// Position returns the current strategy position.
func (s *SymbolState) Position() Position { return s.position }

// EntryPrice returns the entry of the open long, or zero when flat.
func (s *SymbolState) EntryPrice() decimal.Decimal { return s.entryPrice }

// RealizedGainPct returns the sum of percentage returns over closed trades.
func (s *SymbolState) RealizedGainPct() decimal.Decimal { return s.gainPct }

// Prices returns the price history, oldest first.
func (s *SymbolState) Prices() []decimal.Decimal { return s.prices.Values() }

// TickVolumes returns the incremental volume history, oldest first.
func (s *SymbolState) TickVolumes() []int64 { return s.tickVolumes.Values() }

// TickVolumeCount returns how many incremental volume samples are held.
func (s *SymbolState) TickVolumeCount() int { return s.tickVolumes.Len() }

// Window returns the configured history length.
func (s *SymbolState) Window() int { return s.tickVolumes.Cap() }

// LastRawVolume returns the most recent cumulative day volume, or 0 without a baseline.
func (s *SymbolState) LastRawVolume() int64 {
	v, _ := s.rawVolumes.Last()
	return v
}

// RawVolumeSum returns the sum of the recorded cumulative volume readings.
func (s *SymbolState) RawVolumeSum() int64 {
	var sum int64
	for _, v := range s.rawVolumes.Values() {
		sum += v
	}
	return sum
}

// RecordRawVolume appends a cumulative day volume reading.
func (s *SymbolState) RecordRawVolume(raw int64) {
	s.mu.Lock()
	s.rawVolumes.Push(raw)
	s.mu.Unlock()
}

// RecordTick appends an index-aligned price/timestamp pair.
func (s *SymbolState) RecordTick(price decimal.Decimal, ts time.Time) {
	s.mu.Lock()
	s.prices.Push(price)
	s.times.Push(ts)
	s.mu.Unlock()
}

// RecordVolume appends an incremental volume sample.
func (s *SymbolState) RecordVolume(vol int64) {
	s.mu.Lock()
	s.tickVolumes.Push(vol)
	s.mu.Unlock()
}

// EnterLong moves FLAT to LONG at price. It returns an error when already long.
func (s *SymbolState) EnterLong(price decimal.Decimal, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.position == Long {
		return fmt.Errorf("state: %s already long", s.symbol)
	}
	s.position = Long
	s.entryPrice = price
	s.buySignals.Push(SignalMark{Ts: ts, Price: price})
	return nil
}

// ExitLong moves LONG to FLAT at price, books the percentage return and returns it.
func (s *SymbolState) ExitLong(price decimal.Decimal, ts time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.position != Long {
		return decimal.Zero, fmt.Errorf("state: %s not long", s.symbol)
	}
	profit := decimal.Zero
	if !s.entryPrice.IsZero() {
		profit = price.Sub(s.entryPrice).Div(s.entryPrice).Mul(decimal.NewFromInt(100))
	}
	s.gainPct = s.gainPct.Add(profit)
	s.position = Flat
	s.entryPrice = decimal.Zero
	s.sellSignals.Push(SignalMark{Ts: ts, Price: price})
	return profit, nil
}

// Snapshot is a detached, read-only copy of a SymbolState.
type Snapshot struct {
	Symbol      string
	Token       string
	Position    Position
	EntryPrice  decimal.Decimal
	GainPct     decimal.Decimal
	TargetQty   int64
	Prices      []decimal.Decimal
	Times       []time.Time
	TickVolumes []int64
	BuySignals  []SignalMark
	SellSignals []SignalMark
}

// LastPrice returns the latest recorded price, or zero.
func (s Snapshot) LastPrice() decimal.Decimal {
	if len(s.Prices) == 0 {
		return decimal.Zero
	}
	return s.Prices[len(s.Prices)-1]
}

// Snapshot copies the current state under a read lock.
func (s *SymbolState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Symbol:      s.symbol,
		Token:       s.token,
		Position:    s.position,
		EntryPrice:  s.entryPrice,
		GainPct:     s.gainPct,
		TargetQty:   s.targetQty,
		Prices:      s.prices.Values(),
		Times:       s.times.Values(),
		TickVolumes: s.tickVolumes.Values(),
		BuySignals:  s.buySignals.Values(),
		SellSignals: s.sellSignals.Values(),
	}
}

// Store is the table of SymbolState keyed by symbol. The table itself is fixed at construction.
type Store struct {
	bySymbol map[string]*SymbolState
	byToken  map[string]*SymbolState
	symbols  []string
}

// Option configures Store construction.
type Option func(*storeOptions)

type storeOptions struct {
	window    int
	signalLog int
}

// WithWindow overrides the rolling history length.
func WithWindow(n int) Option {
	return func(o *storeOptions) {
		if n > 0 {
			o.window = n
		}
	}
}

// WithSignalLog overrides the buy/sell log length.
func WithSignalLog(n int) Option {
	return func(o *storeOptions) {
		if n > 0 {
			o.signalLog = n
		}
	}
}

// NewStore creates one SymbolState per instrument. Duplicate symbols or tokens are rejected.
func NewStore(instruments []Instrument, opts ...Option) (*Store, error) {
	o := storeOptions{window: DefaultWindow, signalLog: DefaultSignalLog}
	for _, opt := range opts {
		opt(&o)
	}
	st := &Store{
		bySymbol: make(map[string]*SymbolState, len(instruments)),
		byToken:  make(map[string]*SymbolState, len(instruments)),
	}
	for _, inst := range instruments {
		if inst.Symbol == "" || inst.Token == "" {
			return nil, fmt.Errorf("state: instrument needs symbol and token: %+v", inst)
		}
		if _, dup := st.bySymbol[inst.Symbol]; dup {
			return nil, fmt.Errorf("state: duplicate symbol %s", inst.Symbol)
		}
		if _, dup := st.byToken[inst.Token]; dup {
			return nil, fmt.Errorf("state: duplicate token %s", inst.Token)
		}
		ss := newSymbolState(inst, o.window, o.signalLog)
		st.bySymbol[inst.Symbol] = ss
		st.byToken[inst.Token] = ss
		st.symbols = append(st.symbols, inst.Symbol)
	}
	sort.Strings(st.symbols)
	return st, nil
}

// Get returns the state for symbol.
func (st *Store) Get(symbol string) (*SymbolState, bool) {
	ss, ok := st.bySymbol[symbol]
	return ss, ok
}

// ByToken maps an exchange token to its tracked state.
func (st *Store) ByToken(token string) (*SymbolState, bool) {
	ss, ok := st.byToken[token]
	return ss, ok
}

// Symbols lists tracked symbols in sorted order.
func (st *Store) Symbols() []string {
	out := make([]string, len(st.symbols))
	copy(out, st.symbols)
	return out
}

// Tokens lists tracked exchange tokens in symbol order.
func (st *Store) Tokens() []string {
	out := make([]string, 0, len(st.symbols))
	for _, sym := range st.symbols {
		out = append(out, st.bySymbol[sym].token)
	}
	return out
}

// Snapshot copies every symbol's state, sorted by symbol.
func (st *Store) Snapshot() []Snapshot {
	out := make([]Snapshot, 0, len(st.symbols))
	for _, sym := range st.symbols {
		out = append(out, st.bySymbol[sym].Snapshot())
	}
	return out
}
