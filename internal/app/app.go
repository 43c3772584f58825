// Package app assembles the trading process from configuration.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/shreyas-sha3/zen-trade/internal/broker"
	"github.com/shreyas-sha3/zen-trade/internal/broker/smartapi"
	"github.com/shreyas-sha3/zen-trade/internal/config"
	"github.com/shreyas-sha3/zen-trade/internal/engine"
	"github.com/shreyas-sha3/zen-trade/internal/exchange"
	"github.com/shreyas-sha3/zen-trade/internal/execution"
	"github.com/shreyas-sha3/zen-trade/internal/ledger"
	"github.com/shreyas-sha3/zen-trade/internal/paper"
	"github.com/shreyas-sha3/zen-trade/internal/risk"
	"github.com/shreyas-sha3/zen-trade/internal/strategy"
)

const equitySuffix = "-EQ"

// fillsCapacity pre-sizes the in-memory fill ledger of a paper session.
const fillsCapacity = 256

// App is a fully wired trading process.
type App struct {
	Config *config.Config
	Broker broker.Broker
	Paper  *paper.Broker // nil unless the broker provider is paper
	Fills  *paper.Ledger // paper fills of this session, nil for live brokers
	Engine *engine.Engine

	closers []func() error
}

// needsCredentials reports whether any live SmartAPI surface is configured.
func needsCredentials(cfg *config.Config) bool {
	return cfg.Broker.Provider == config.ProviderSmartAPI || cfg.Feed.Provider == config.ProviderSmartAPI
}

// Brokerage is the configured broker. Paper and Fills are set only for the paper provider, where
// Paper is also the Broker.
type Brokerage struct {
	Broker broker.Broker
	Paper  *paper.Broker
	Fills  *paper.Ledger
	Close  func() error
}

// NewBroker builds the configured broker. Paper fills are kept in memory and, when a fills path is
// configured, also appended to a JSONL file.
func NewBroker(cfg *config.Config, creds config.Credentials) (*Brokerage, error) {
	if cfg.Broker.Provider != config.ProviderPaper {
		c := smartapi.NewClient(cfg.Broker.BaseURL, creds.APIKey, creds.AuthToken, time.Duration(cfg.Broker.TimeoutMs)*time.Millisecond)
		return &Brokerage{Broker: c, Close: func() error { return nil }}, nil
	}

	fills := paper.NewLedger(fillsCapacity)
	var recorder paper.FillRecorder = fills
	closer := func() error { return nil }
	if cfg.Paper.FillsPath != "" {
		rec, err := paper.NewJSONLRecorder(cfg.Paper.FillsPath)
		if err != nil {
			return nil, fmt.Errorf("open fills: %w", err)
		}
		recorder = paper.Tee{rec, fills}
		closer = rec.Close
	}
	opts := []paper.BrokerOption{paper.WithRecorder(recorder)}

	var scrips []broker.Scrip
	marks := make(map[string]decimal.Decimal)
	for _, spec := range cfg.SymbolSpecs() {
		sym := spec.Name
		if !strings.HasSuffix(sym, equitySuffix) {
			sym += equitySuffix
		}
		tok := spec.Token
		if tok == "" {
			tok = paper.SyntheticToken(sym)
		}
		scrips = append(scrips, broker.Scrip{Exchange: cfg.Broker.Exchange, TradingSymbol: sym, SymbolToken: tok})
		marks[tok] = decimal.New(exchange.StubOpeningPaise(tok), -2)
	}
	opts = append(opts, paper.WithScrips(scrips...), paper.WithMarks(marks))

	account := paper.NewAccount(decimal.NewFromFloat(cfg.Paper.StartingCash), cfg.Paper.MaxPositionPerSymbol)
	pb := paper.NewBroker(account, opts...)
	return &Brokerage{Broker: pb, Paper: pb, Fills: fills, Close: closer}, nil
}

// New loads credentials when needed, builds the broker and executor, bootstraps the symbols and
// wires the stream. Seed hedges are placed here, before New returns.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	var creds config.Credentials
	if needsCredentials(cfg) {
		var err error
		creds, err = config.LoadCredentials(cfg.Broker.Env)
		if err != nil {
			return nil, err
		}
	}

	strat, err := strategy.Build(cfg.Strategy.Mode, strategy.Params{BreakoutFactor: cfg.Strategy.BreakoutFactor})
	if err != nil {
		return nil, err
	}

	bk, err := NewBroker(cfg, creds)
	if err != nil {
		return nil, err
	}
	b, pb := bk.Broker, bk.Paper
	a := &App{Config: cfg, Broker: b, Paper: pb, Fills: bk.Fills, closers: []func() error{bk.Close}}

	l, err := ledger.NewFileLedger(cfg.Execution.LedgerPath)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	execOpts := []execution.Option{
		execution.WithExchange(cfg.Broker.Exchange),
		execution.WithLimits(risk.Limits{MaxNotionalPerTrade: decimal.NewFromFloat(cfg.Risk.MaxNotionalPerTrade)}),
	}
	if cfg.Execution.Async {
		execOpts = append(execOpts, execution.WithAsync(cfg.Execution.QueueSize))
	}
	exec := execution.NewExecutor(b, l, log.With().Str("component", "execution").Logger(), execOpts...)

	store, err := engine.Bootstrap(ctx, b, exec, engine.BootstrapOptions{
		Symbols:     bootstrapSymbols(cfg),
		Exchange:    cfg.Broker.Exchange,
		Window:      cfg.Strategy.Window,
		SignalLog:   cfg.Strategy.SignalLog,
		SeedHedge:   !cfg.Execution.SkipSeedHedge,
		StopLossPct: decimal.NewFromFloat(cfg.Execution.StopLossPct),
	}, log.With().Str("component", "bootstrap").Logger())
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	feed := exchange.NewFeed(cfg.Feed.Provider, store.Tokens(), log.With().Str("component", "feed").Logger(),
		exchange.WithURL(cfg.Feed.URL),
		exchange.WithCredentials(exchange.Credentials{
			AuthToken:  creds.AuthToken,
			APIKey:     creds.APIKey,
			ClientCode: creds.ClientCode,
			FeedToken:  creds.FeedToken,
		}),
		exchange.WithSubscription(cfg.Feed.CorrelationID, cfg.Feed.Mode, cfg.Feed.ExchangeType),
		exchange.WithHeartbeat(time.Duration(cfg.Feed.HeartbeatMs)*time.Millisecond),
		exchange.WithBackoff(exchange.Backoff{
			Min:    time.Duration(cfg.Feed.Backoff.MinMs) * time.Millisecond,
			Max:    time.Duration(cfg.Feed.Backoff.MaxMs) * time.Millisecond,
			Factor: cfg.Feed.Backoff.Factor,
			Jitter: cfg.Feed.Backoff.Jitter,
		}),
		exchange.WithStub(time.Duration(cfg.Feed.StubIntervalMs)*time.Millisecond, cfg.Feed.StubSeed),
	)

	engOpts := []engine.Option{engine.WithBuffer(cfg.Feed.Buffer)}
	if pb != nil {
		engOpts = append(engOpts, engine.WithMarker(pb))
	}
	a.Engine = engine.New(store, feed, strat, exec, log.With().Str("component", "engine").Logger(), engOpts...)
	return a, nil
}

// Paper symbols resolve through synthetic scrips, so they are looked up by their equity name.
func bootstrapSymbols(cfg *config.Config) []config.SymbolSpec {
	specs := cfg.SymbolSpecs()
	if cfg.Broker.Provider != config.ProviderPaper {
		return specs
	}
	out := make([]config.SymbolSpec, len(specs))
	for i, s := range specs {
		if !strings.HasSuffix(s.Name, equitySuffix) {
			s.Name += equitySuffix
		}
		out[i] = s
	}
	return out
}

// Run streams until ctx ends.
func (a *App) Run(ctx context.Context) error {
	return a.Engine.Run(ctx)
}

// Close releases files opened by New.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
