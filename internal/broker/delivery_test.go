package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type placingBroker struct {
	searchOnly
	placed []OrderParams
	id     string
}

func (b *placingBroker) PlaceOrder(_ context.Context, p OrderParams) (string, error) {
	b.placed = append(b.placed, p)
	return b.id, nil
}

func TestPlaceDeliveryBuildsMarketDeliveryOrder(t *testing.T) {
	b := &placingBroker{
		searchOnly: searchOnly{scrips: []Scrip{{TradingSymbol: "SBIN-EQ", SymbolToken: "3045"}}},
		id:         "231016000000007",
	}
	id, s, err := PlaceDelivery(context.Background(), b, ExchangeNSE, "sbin", "sell", 3)
	require.NoError(t, err)
	assert.Equal(t, "231016000000007", id)
	assert.Equal(t, "SBIN-EQ", s.TradingSymbol)

	require.Len(t, b.placed, 1)
	p := b.placed[0]
	assert.Equal(t, ProductDelivery, p.ProductType)
	assert.Equal(t, OrderTypeMarket, p.OrderType)
	assert.Equal(t, VarietyNormal, p.Variety)
	assert.Equal(t, "SELL", p.TransactionType)
	assert.Equal(t, ExchangeNSE, p.Exchange)
	assert.Equal(t, "3045", p.SymbolToken)
	assert.Equal(t, "3", p.Quantity)
	assert.Empty(t, p.TriggerPrice)
}

func TestPlaceDeliveryRejectsBadInput(t *testing.T) {
	b := &placingBroker{searchOnly: searchOnly{scrips: []Scrip{{TradingSymbol: "SBIN-EQ", SymbolToken: "3045"}}}, id: "x"}

	_, _, err := PlaceDelivery(context.Background(), b, ExchangeNSE, "SBIN", "HOLD", 1)
	assert.ErrorIs(t, err, ErrBadOrder)
	_, _, err = PlaceDelivery(context.Background(), b, ExchangeNSE, "SBIN", "BUY", 0)
	assert.ErrorIs(t, err, ErrBadOrder)
	assert.Empty(t, b.placed)

	b.searchOnly.scrips = nil
	_, _, err = PlaceDelivery(context.Background(), b, ExchangeNSE, "SBIN", "BUY", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlaceDeliveryEmptyOrderID(t *testing.T) {
	b := &placingBroker{searchOnly: searchOnly{scrips: []Scrip{{TradingSymbol: "SBIN-EQ", SymbolToken: "3045"}}}}
	_, _, err := PlaceDelivery(context.Background(), b, ExchangeNSE, "SBIN", "BUY", 1)
	assert.ErrorIs(t, err, ErrEmptyOrderID)
}
