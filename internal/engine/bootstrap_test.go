package engine

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shreyas-sha3/zen-trade/internal/broker"
	"github.com/shreyas-sha3/zen-trade/internal/config"
	"github.com/shreyas-sha3/zen-trade/internal/execution"
	"github.com/shreyas-sha3/zen-trade/internal/paper"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newPaper() (*paper.Broker, *paper.Ledger) {
	fills := paper.NewLedger(4)
	b := paper.NewBroker(paper.NewAccount(dec("100000"), 0),
		paper.WithRecorder(fills),
		paper.WithScrips(broker.Scrip{Exchange: "NSE", TradingSymbol: "BPCL-EQ", SymbolToken: "526"}),
		paper.WithMarks(map[string]decimal.Decimal{"526": dec("310.55"), "3045": dec("800")}),
	)
	return b, fills
}

func TestBootstrapSizesAndSeeds(t *testing.T) {
	ctx := context.Background()
	b, fills := newPaper()
	exec := execution.NewExecutor(b, nil, zerolog.Nop())

	store, err := Bootstrap(ctx, b, exec, BootstrapOptions{
		Symbols:     []config.SymbolSpec{{Name: "BPCL"}, {Name: "SBIN-EQ", Token: "3045"}},
		Window:      5,
		SignalLog:   2,
		SeedHedge:   true,
		StopLossPct: decimal.NewFromInt(1),
	}, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"BPCL-EQ", "SBIN-EQ"}, store.Symbols())
	bpcl, ok := store.Get("BPCL-EQ")
	require.True(t, ok)
	assert.Equal(t, int64(161), bpcl.TargetQty())
	assert.Equal(t, 5, bpcl.Window())
	sbin, _ := store.ByToken("3045")
	assert.Equal(t, int64(62), sbin.TargetQty())

	book, err := b.OrderBook(ctx)
	require.NoError(t, err)
	require.Len(t, book, 2)
	for _, o := range book {
		assert.Equal(t, "SELL", o.TransactionType)
		assert.Equal(t, broker.VarietyStopLoss, o.Variety)
	}
	assert.Len(t, fills.Snapshot(), 2)
	assert.Equal(t, int64(-161), b.Account().Position("BPCL-EQ"))
}

func TestBootstrapWithoutSeed(t *testing.T) {
	b, fills := newPaper()
	store, err := Bootstrap(context.Background(), b, nil, BootstrapOptions{
		Symbols: []config.SymbolSpec{{Name: "BPCL-EQ"}},
	}, zerolog.Nop())
	require.NoError(t, err)
	ss, _ := store.Get("BPCL-EQ")
	assert.Equal(t, int64(322), ss.TargetQty())
	assert.Empty(t, fills.Snapshot())
}

func TestBootstrapErrors(t *testing.T) {
	ctx := context.Background()
	b, _ := newPaper()

	_, err := Bootstrap(ctx, b, nil, BootstrapOptions{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoSymbols)

	_, err = Bootstrap(ctx, b, nil, BootstrapOptions{Symbols: []config.SymbolSpec{{Name: "TCS"}}}, zerolog.Nop())
	assert.ErrorIs(t, err, broker.ErrNotFound)

	_, err = Bootstrap(ctx, b, nil, BootstrapOptions{Symbols: []config.SymbolSpec{{Name: "INFY-EQ", Token: "1594"}}}, zerolog.Nop())
	assert.ErrorIs(t, err, paper.ErrNoMark)
}

func TestTargetQty(t *testing.T) {
	assert.Equal(t, int64(3), TargetQty(dec("1000"), dec("300")))
	assert.Equal(t, int64(0), TargetQty(dec("100"), dec("300")))
	assert.Equal(t, int64(0), TargetQty(dec("100"), decimal.Zero))
}
