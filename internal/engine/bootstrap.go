package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/shreyas-sha3/zen-trade/internal/broker"
	"github.com/shreyas-sha3/zen-trade/internal/config"
	"github.com/shreyas-sha3/zen-trade/internal/execution"
	"github.com/shreyas-sha3/zen-trade/internal/state"
)

// ErrNoSymbols is returned when bootstrap has nothing to trade.
var ErrNoSymbols = errors.New("engine: no symbols configured")

// BootstrapOptions controls instrument setup before streaming.
type BootstrapOptions struct {
	Symbols     []config.SymbolSpec
	Exchange    string
	Window      int
	SignalLog   int
	SeedHedge   bool
	StopLossPct decimal.Decimal
}

// Bootstrap resolves the configured symbols, sizes each one from the available cash split evenly
// across symbols, builds the state store and, when asked, places the seed hedge for every symbol.
// Any failure before the store exists aborts startup; seed hedge failures are only logged.
func Bootstrap(ctx context.Context, b broker.Broker, exec *execution.Executor, opts BootstrapOptions, log zerolog.Logger) (*state.Store, error) {
	if len(opts.Symbols) == 0 {
		return nil, ErrNoSymbols
	}
	exchange := opts.Exchange
	if exchange == "" {
		exchange = broker.ExchangeNSE
	}

	scrips := make([]broker.Scrip, 0, len(opts.Symbols))
	tokens := make([]string, 0, len(opts.Symbols))
	for _, spec := range opts.Symbols {
		scrip := broker.Scrip{Exchange: exchange, TradingSymbol: spec.Name, SymbolToken: spec.Token}
		if spec.Token == "" {
			var err error
			scrip, err = broker.ResolveEquity(ctx, b, exchange, spec.Name)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: %w", spec.Name, err)
			}
		}
		log.Info().Str("sym", scrip.TradingSymbol).Str("token", scrip.SymbolToken).Msg("symbol resolved")
		scrips = append(scrips, scrip)
		tokens = append(tokens, scrip.SymbolToken)
	}

	quotes, err := b.LTP(ctx, exchange, tokens)
	if err != nil {
		return nil, fmt.Errorf("fetch ltp: %w", err)
	}
	ltp := make(map[string]decimal.Decimal, len(quotes))
	for _, q := range quotes {
		ltp[q.SymbolToken] = q.LTP
	}

	cash, err := b.AvailableCash(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch cash: %w", err)
	}
	perSymbol := cash.Div(decimal.NewFromInt(int64(len(scrips))))

	instruments := make([]state.Instrument, 0, len(scrips))
	for _, s := range scrips {
		ref, ok := ltp[s.SymbolToken]
		if !ok || !ref.IsPositive() {
			return nil, fmt.Errorf("no reference price for %s (%s)", s.TradingSymbol, s.SymbolToken)
		}
		qty := TargetQty(perSymbol, ref)
		if qty == 0 {
			log.Warn().Str("sym", s.TradingSymbol).Str("px", ref.String()).Str("budget", perSymbol.StringFixed(2)).Msg("budget below one share")
		}
		instruments = append(instruments, state.Instrument{Symbol: s.TradingSymbol, Token: s.SymbolToken, Qty: qty})
	}

	store, err := state.NewStore(instruments, state.WithWindow(opts.Window), state.WithSignalLog(opts.SignalLog))
	if err != nil {
		return nil, err
	}

	if opts.SeedHedge && exec != nil {
		for _, inst := range instruments {
			out := exec.SeedHedge(ctx, inst.Symbol, inst.Token, inst.Qty, ltp[inst.Token], opts.StopLossPct)
			if !out.OK() {
				log.Warn().Str("sym", inst.Symbol).Err(out.Err).Msg("seed hedge not placed")
			}
		}
	}
	return store, nil
}

// TargetQty is the whole number of shares budget buys at price.
func TargetQty(budget, price decimal.Decimal) int64 {
	if !price.IsPositive() || !budget.IsPositive() {
		return 0
	}
	return budget.Div(price).Floor().IntPart()
}
