package paper

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/shreyas-sha3/zen-trade/internal/broker"
)

func newTestBroker(t *testing.T) (*Broker, *Ledger) {
	t.Helper()
	fills := NewLedger(4)
	b := NewBroker(NewAccount(d("100000"), 0),
		WithRecorder(fills),
		WithScrips(
			broker.Scrip{Exchange: "NSE", TradingSymbol: "BPCL-EQ", SymbolToken: "526"},
			broker.Scrip{Exchange: "NSE", TradingSymbol: "BPCL-BE", SymbolToken: "9999"},
		),
		WithMarks(map[string]decimal.Decimal{"526": d("310.55")}),
	)
	return b, fills
}

func marketOrder(side string, qty string) broker.OrderParams {
	return broker.OrderParams{
		Variety:         broker.VarietyNormal,
		TradingSymbol:   "BPCL-EQ",
		SymbolToken:     "526",
		TransactionType: side,
		Exchange:        broker.ExchangeNSE,
		OrderType:       broker.OrderTypeMarket,
		ProductType:     broker.ProductIntraday,
		Duration:        broker.DurationDay,
		Price:           "0",
		Quantity:        qty,
	}
}

func stopOrder(qty, trigger string) broker.OrderParams {
	p := marketOrder("SELL", qty)
	p.Variety = broker.VarietyStopLoss
	p.OrderType = broker.OrderTypeStopLossMarket
	p.TriggerPrice = trigger
	return p
}

func TestPaperMarketOrdersFillAtMark(t *testing.T) {
	ctx := context.Background()
	b, fills := newTestBroker(t)

	id, err := b.PlaceOrder(ctx, marketOrder("BUY", "10"))
	if err != nil || id == "" {
		t.Fatalf("buy failed: id=%q err=%v", id, err)
	}

	b.Mark("526", d("320"))
	if _, err := b.PlaceOrder(ctx, marketOrder("SELL", "10")); err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	if got := b.Account().RealizedPnL(); !got.Equal(d("94.5")) {
		t.Fatalf("expected realized 94.5, got %s", got)
	}
	recorded := fills.Snapshot()
	if len(recorded) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(recorded))
	}
	if !recorded[0].Price.Equal(d("310.55")) || !recorded[1].Price.Equal(d("320")) {
		t.Fatalf("unexpected fill prices %s %s", recorded[0].Price, recorded[1].Price)
	}

	book, err := b.OrderBook(ctx)
	if err != nil {
		t.Fatalf("OrderBook error: %v", err)
	}
	if len(book) != 2 || book[1].Status != StatusComplete {
		t.Fatalf("unexpected order book %+v", book)
	}
}

func TestPaperStopOrderTriggersAndCancels(t *testing.T) {
	ctx := context.Background()
	b, fills := newTestBroker(t)

	id, err := b.PlaceOrder(ctx, stopOrder("5", "300.00"))
	if err != nil {
		t.Fatalf("stop order failed: %v", err)
	}
	if len(fills.Snapshot()) != 0 {
		t.Fatalf("stop below the mark must rest")
	}

	b.Mark("526", d("299.50"))
	if len(fills.Snapshot()) != 1 {
		t.Fatalf("stop did not fire at 299.50")
	}
	if pos := b.Account().Position("BPCL-EQ"); pos != -5 {
		t.Fatalf("expected short 5, got %d", pos)
	}
	if err := b.CancelOrder(ctx, broker.VarietyStopLoss, id); err == nil {
		t.Fatalf("filled orders cannot be cancelled")
	}

	resting, err := b.PlaceOrder(ctx, stopOrder("5", "250.00"))
	if err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
	if err := b.CancelOrder(ctx, broker.VarietyStopLoss, resting); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	b.Mark("526", d("240"))
	if len(fills.Snapshot()) != 1 {
		t.Fatalf("cancelled stop must not fill")
	}

	if err := b.CancelOrder(ctx, broker.VarietyStopLoss, "missing"); !errors.Is(err, broker.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPaperStopAboveMarkFillsImmediately(t *testing.T) {
	b, fills := newTestBroker(t)

	if _, err := b.PlaceOrder(context.Background(), stopOrder("2", "313.70")); err != nil {
		t.Fatalf("stop order failed: %v", err)
	}
	recorded := fills.Snapshot()
	if len(recorded) != 1 || !recorded[0].Price.Equal(d("310.55")) {
		t.Fatalf("expected an immediate fill at the mark, got %+v", recorded)
	}
}

func TestPaperQueries(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBroker(t)

	scrips, err := b.SearchScrip(ctx, "NSE", "bpcl")
	if err != nil || len(scrips) != 2 {
		t.Fatalf("expected 2 scrips, got %d (%v)", len(scrips), err)
	}
	eq, err := broker.ResolveEquity(ctx, b, "NSE", "BPCL")
	if err != nil || eq.SymbolToken != "526" {
		t.Fatalf("unexpected equity %+v (%v)", eq, err)
	}

	quotes, err := b.LTP(ctx, "NSE", []string{"526"})
	if err != nil || len(quotes) != 1 || quotes[0].TradingSymbol != "BPCL-EQ" {
		t.Fatalf("unexpected quotes %+v (%v)", quotes, err)
	}

	if _, err := b.LTP(ctx, "NSE", []string{"1"}); !errors.Is(err, ErrNoMark) {
		t.Fatalf("expected ErrNoMark from LTP, got %v", err)
	}
	_, err = b.PlaceOrder(ctx, broker.OrderParams{SymbolToken: "1", TradingSymbol: "X", TransactionType: "BUY", Quantity: "1"})
	if !errors.Is(err, ErrNoMark) {
		t.Fatalf("expected ErrNoMark from PlaceOrder, got %v", err)
	}

	if _, err := b.PlaceOrder(ctx, marketOrder("BUY", "4")); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	b.Mark("526", d("320"))
	holdings, err := b.Holdings(ctx)
	if err != nil || len(holdings) != 1 {
		t.Fatalf("expected one holding, got %+v (%v)", holdings, err)
	}
	if holdings[0].Quantity != 4 || !holdings[0].PnLPercentage.Equal(d("3.04")) {
		t.Fatalf("unexpected holding %+v", holdings[0])
	}

	cash, err := b.AvailableCash(ctx)
	if err != nil || !cash.Equal(d("98757.8")) {
		t.Fatalf("expected cash 98757.8, got %s (%v)", cash, err)
	}
}

func TestPaperDeliveryOrderFills(t *testing.T) {
	b, fills := newTestBroker(t)

	id, s, err := broker.PlaceDelivery(context.Background(), b, "NSE", "bpcl", "BUY", 3)
	if err != nil || id == "" {
		t.Fatalf("PlaceDelivery failed: id=%q err=%v", id, err)
	}
	if s.TradingSymbol != "BPCL-EQ" {
		t.Fatalf("resolved %s, expected BPCL-EQ", s.TradingSymbol)
	}
	if got := fills.Snapshot(); len(got) != 1 || got[0].Qty != 3 {
		t.Fatalf("unexpected fills %+v", got)
	}
}

func TestSyntheticToken(t *testing.T) {
	a := SyntheticToken("BPCL-EQ")
	if a != SyntheticToken("BPCL-EQ") {
		t.Fatalf("token must be stable")
	}
	if a == SyntheticToken("SBIN-EQ") {
		t.Fatalf("tokens must differ per symbol")
	}
	if len(a) != 6 {
		t.Fatalf("expected a 6 digit token, got %q", a)
	}
}
