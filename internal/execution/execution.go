// Package execution translates strategy decisions into broker orders and records the outcome.
package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/shreyas-sha3/zen-trade/internal/broker"
	"github.com/shreyas-sha3/zen-trade/internal/metrics"
	"github.com/shreyas-sha3/zen-trade/internal/risk"
	sig "github.com/shreyas-sha3/zen-trade/internal/signal"
)

// Side enumerates order directions used by the executor.
type Side string

const (
	// Buy indicates a long order.
	Buy Side = "BUY"
	// Sell indicates a short or closing order.
	Sell Side = "SELL"
)

// SideOf maps a strategy action onto an order side.
func SideOf(a sig.Action) Side {
	if a == sig.Sell {
		return Sell
	}
	return Buy
}

var (
	ErrZeroQuantity = errors.New("execution: zero quantity")
	ErrRiskLimit    = errors.New("execution: notional above per-trade limit")
	ErrClosed       = errors.New("execution: executor closed")
)

// Order represents a placement request the executor can process.
type Order struct {
	Symbol   string
	Token    string
	Side     Side
	Qty      int64
	StopLoss decimal.Decimal // zero for a plain market order
	RefPrice decimal.Decimal // last known price, used for the risk check
	GainPct  decimal.Decimal // cumulative realized gain written to the ledger
}

// Fill is a completed order as seen by the executor or a simulated venue.
type Fill struct {
	OrderID string          `json:"order_id"`
	Symbol  string          `json:"symbol"`
	Side    Side            `json:"side"`
	Qty     int64           `json:"qty"`
	Price   decimal.Decimal `json:"price"`
	Ts      time.Time       `json:"ts"`
}

// Outcome reports what happened to one order.
type Outcome struct {
	OrderID string
	Err     error
}

// OK reports whether the broker accepted the order.
func (o Outcome) OK() bool { return o.Err == nil && o.OrderID != "" }

// Ledger records accepted orders.
type Ledger interface {
	Append(ts time.Time, symbol string, gainPct decimal.Decimal) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithLimits installs pre-trade risk limits.
func WithLimits(l risk.Limits) Option {
	return func(e *Executor) { e.limits = l }
}

// WithExchange overrides the exchange segment orders are routed to.
func WithExchange(exchange string) Option {
	return func(e *Executor) {
		if exchange != "" {
			e.exchange = exchange
		}
	}
}

// WithClock overrides the ledger clock.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithAsync makes Submit hand orders to a single background worker through a queue of the given
// size. A full queue blocks the submitter, so no decision is lost and orders keep their order.
func WithAsync(queueSize int) Option {
	return func(e *Executor) {
		if queueSize <= 0 {
			queueSize = 64
		}
		e.queue = make(chan Order, queueSize)
	}
}

// Executor submits orders to a broker and appends accepted ones to the ledger.
type Executor struct {
	broker   broker.Broker
	ledger   Ledger
	log      zerolog.Logger
	limits   risk.Limits
	exchange string
	now      func() time.Time

	queue     chan Order
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// NewExecutor wires the broker and ledger together.
func NewExecutor(b broker.Broker, l Ledger, log zerolog.Logger, opts ...Option) *Executor {
	e := &Executor{
		broker:   b,
		ledger:   l,
		log:      log,
		exchange: broker.ExchangeNSE,
		now:      time.Now,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Async reports whether Submit is queued.
func (e *Executor) Async() bool { return e.queue != nil }

// Params builds the broker request for an order: a market intraday order, or a stop-loss market
// order when a stop is given.
func (e *Executor) Params(o Order) broker.OrderParams {
	p := broker.OrderParams{
		Variety:         broker.VarietyNormal,
		TradingSymbol:   o.Symbol,
		SymbolToken:     o.Token,
		TransactionType: string(o.Side),
		Exchange:        e.exchange,
		OrderType:       broker.OrderTypeMarket,
		ProductType:     broker.ProductIntraday,
		Duration:        broker.DurationDay,
		Price:           "0",
		Quantity:        fmt.Sprintf("%d", o.Qty),
	}
	if o.StopLoss.IsPositive() {
		p.Variety = broker.VarietyStopLoss
		p.OrderType = broker.OrderTypeStopLossMarket
		p.TriggerPrice = o.StopLoss.StringFixed(2)
	}
	return p
}

// Execute places one order synchronously. Failures are logged and returned in the outcome, never
// retried; accepted orders are appended to the ledger.
func (e *Executor) Execute(ctx context.Context, o Order) Outcome {
	log := e.log.With().Str("sym", o.Symbol).Str("side", string(o.Side)).Int64("qty", o.Qty).Logger()

	if o.Qty <= 0 {
		return e.fail(log, o, ErrZeroQuantity)
	}
	if !e.limits.Allow(o.RefPrice.Mul(decimal.NewFromInt(o.Qty))) {
		return e.fail(log, o, ErrRiskLimit)
	}

	metrics.OrdersTotal.WithLabelValues(o.Symbol, string(o.Side)).Inc()
	params := e.Params(o)
	id, err := e.broker.PlaceOrder(ctx, params)
	if err == nil && id == "" {
		err = broker.ErrEmptyOrderID
	}
	if err != nil {
		return e.fail(log, o, err)
	}

	log.Info().Str("order_id", id).Str("type", params.OrderType).Str("trigger", params.TriggerPrice).Msg("order placed")
	if e.ledger != nil {
		if err := e.ledger.Append(e.now(), o.Symbol, o.GainPct); err != nil {
			log.Error().Err(err).Msg("ledger append failed")
		}
	}
	return Outcome{OrderID: id}
}

func (e *Executor) fail(log zerolog.Logger, o Order, err error) Outcome {
	metrics.OrderFailures.WithLabelValues(o.Symbol, string(o.Side)).Inc()
	log.Error().Err(err).Msg("execution failed")
	return Outcome{Err: err}
}

// Submit executes the order inline, or enqueues it when the executor is async. Queued orders are
// executed with the context given to Start.
func (e *Executor) Submit(ctx context.Context, o Order) error {
	if e.queue == nil {
		e.Execute(ctx, o)
		return nil
	}
	select {
	case <-e.done:
		return ErrClosed
	default:
	}
	select {
	case e.queue <- o:
		return nil
	case <-e.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start launches the async worker. It is a no-op for synchronous executors. The returned channel
// closes once the worker has drained the queue after Close; orders drained after ctx ends still run
// with ctx's values but without its cancellation.
func (e *Executor) Start(ctx context.Context) <-chan struct{} {
	e.startOnce.Do(func() {
		if e.queue == nil {
			close(e.stopped)
			return
		}
		go func() {
			defer close(e.stopped)
			for {
				select {
				case o := <-e.queue:
					e.Execute(ctx, o)
				case <-e.done:
					drainCtx := context.WithoutCancel(ctx)
					for {
						select {
						case o := <-e.queue:
							e.Execute(drainCtx, o)
						default:
							return
						}
					}
				}
			}
		}()
	})
	return e.stopped
}

// Close stops accepting orders; queued orders are still executed by the worker.
func (e *Executor) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}
