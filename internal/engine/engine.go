// Package engine drives quotes from the feed through normalization, the strategy and execution.
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/shreyas-sha3/zen-trade/internal/exchange"
	"github.com/shreyas-sha3/zen-trade/internal/execution"
	"github.com/shreyas-sha3/zen-trade/internal/metrics"
	sig "github.com/shreyas-sha3/zen-trade/internal/signal"
	"github.com/shreyas-sha3/zen-trade/internal/state"
	"github.com/shreyas-sha3/zen-trade/internal/strategy"
)

const defaultBuffer = 1024

// Source produces raw quotes until ctx ends. exchange.Feed satisfies it.
type Source interface {
	Run(ctx context.Context, out chan<- sig.RawQuote) error
}

// Marker receives every accepted price, keyed by token. The paper broker uses it to fill orders.
type Marker interface {
	Mark(token string, price decimal.Decimal)
}

// Option configures an Engine.
type Option func(*Engine)

// WithBuffer sets the quote channel capacity between the feed and the consumer.
func WithBuffer(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.buffer = n
		}
	}
}

// WithMarker forwards accepted prices to m.
func WithMarker(m Marker) Option {
	return func(e *Engine) { e.marker = m }
}

// Engine owns the single consumer goroutine: it is the only writer of the state store.
type Engine struct {
	store  *state.Store
	source Source
	norm   *exchange.Normalizer
	strat  strategy.Strategy
	exec   *execution.Executor
	marker Marker
	log    zerolog.Logger
	buffer int
}

// New wires an engine over a bootstrapped store.
func New(store *state.Store, source Source, strat strategy.Strategy, exec *execution.Executor, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		source: source,
		norm:   exchange.NewNormalizer(store),
		strat:  strat,
		exec:   exec,
		log:    log,
		buffer: defaultBuffer,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot copies every symbol's state for administrative readers.
func (e *Engine) Snapshot() []state.Snapshot { return e.store.Snapshot() }

// Store exposes the state store.
func (e *Engine) Store() *state.Store { return e.store }

// Run consumes quotes until ctx ends or the source stops. A source that stops on its own has its
// remaining quotes processed first; its error, if any, is returned.
func (e *Engine) Run(ctx context.Context) error {
	quotes := make(chan sig.RawQuote, e.buffer)
	sourceDone := make(chan error, 1)
	go func() { sourceDone <- e.source.Run(ctx, quotes) }()

	stopped := e.exec.Start(ctx)
	defer func() {
		e.exec.Close()
		<-stopped
	}()

	e.log.Info().Strs("symbols", e.store.Symbols()).Str("strategy", e.strat.Name()).Bool("async", e.exec.Async()).Msg("stream started")
	for {
		select {
		case <-ctx.Done():
			<-sourceDone
			e.log.Info().Msg("stream stopped")
			return nil
		case err := <-sourceDone:
			for drained := false; !drained; {
				select {
				case q := <-quotes:
					e.handle(ctx, q)
				default:
					drained = true
				}
			}
			if err != nil && ctx.Err() == nil {
				return fmt.Errorf("feed: %w", err)
			}
			e.log.Info().Msg("stream closed")
			return nil
		case q := <-quotes:
			e.handle(ctx, q)
		}
	}
}

// handle runs one quote through the pipeline. A panic is contained to the quote that caused it.
func (e *Engine) handle(ctx context.Context, q sig.RawQuote) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Str("token", q.Token).Interface("panic", r).Msg("tick handler recovered")
		}
	}()

	tick, err := e.norm.Normalize(q)
	if err != nil {
		metrics.TicksDropped.WithLabelValues(exchange.DropReason(err)).Inc()
		return
	}
	ss, ok := e.store.Get(tick.Symbol)
	if !ok {
		return
	}
	ss.RecordTick(tick.Price, tick.Ts)
	metrics.TicksTotal.WithLabelValues(tick.Symbol).Inc()
	if e.marker != nil {
		e.marker.Mark(ss.Token(), tick.Price)
	}
	if tick.Volume <= 0 {
		return
	}
	ss.RecordVolume(tick.Volume)
	e.log.Debug().Str("sym", tick.Symbol).Str("px", tick.Price.StringFixed(2)).Int64("vol", tick.Volume).Msg("tick")

	d := e.strat.OnTick(ss, tick)
	if d == nil {
		return
	}
	e.onDecision(ctx, ss, d)
}

func (e *Engine) onDecision(ctx context.Context, ss *state.SymbolState, d *sig.Decision) {
	side := execution.SideOf(d.Action)
	metrics.DecisionsTotal.WithLabelValues(d.Symbol, string(side)).Inc()
	gain, _ := d.GainPct.Float64()
	metrics.RealizedGainPct.WithLabelValues(d.Symbol).Set(gain)

	e.log.Info().
		Str("sym", d.Symbol).
		Str("side", string(side)).
		Str("px", d.Price.StringFixed(2)).
		Str("entry", d.EntryPrice.StringFixed(2)).
		Str("profit_pct", d.ProfitPct.StringFixed(2)).
		Str("gain_pct", d.GainPct.StringFixed(2)).
		Int64("qty", d.Qty).
		Str("reason", d.Reason).
		Msg("decision")

	// The ledger line carries the gain as it stood before this order, so a SELL excludes its own profit.
	ledgerGain := d.GainPct
	if d.Action == sig.Sell {
		ledgerGain = ledgerGain.Sub(d.ProfitPct)
	}
	order := execution.Order{
		Symbol:   d.Symbol,
		Token:    ss.Token(),
		Side:     side,
		Qty:      d.Qty,
		RefPrice: d.Price,
		GainPct:  ledgerGain,
	}
	if err := e.exec.Submit(ctx, order); err != nil {
		e.log.Error().Str("sym", d.Symbol).Err(err).Msg("order not submitted")
	}
}
