package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrBadOrder is returned for a manual order with an unknown side or a non-positive quantity.
var ErrBadOrder = errors.New("broker: bad order")

// DeliveryOrder builds a DAY market order for the delivery (CNC) product.
func DeliveryOrder(s Scrip, side string, qty int64) OrderParams {
	return OrderParams{
		Variety:         VarietyNormal,
		TradingSymbol:   s.TradingSymbol,
		SymbolToken:     s.SymbolToken,
		TransactionType: side,
		Exchange:        s.Exchange,
		OrderType:       OrderTypeMarket,
		ProductType:     ProductDelivery,
		Duration:        DurationDay,
		Price:           "0",
		Quantity:        fmt.Sprintf("%d", qty),
	}
}

// PlaceDelivery resolves name to its equity series on exchange and places a delivery market order.
func PlaceDelivery(ctx context.Context, b Broker, exchange, name, side string, qty int64) (string, Scrip, error) {
	side = strings.ToUpper(side)
	if side != "BUY" && side != "SELL" {
		return "", Scrip{}, fmt.Errorf("%w: side %q", ErrBadOrder, side)
	}
	if qty <= 0 {
		return "", Scrip{}, fmt.Errorf("%w: quantity %d", ErrBadOrder, qty)
	}
	s, err := ResolveEquity(ctx, b, exchange, name)
	if err != nil {
		return "", Scrip{}, err
	}
	if s.Exchange == "" {
		s.Exchange = exchange
	}
	id, err := b.PlaceOrder(ctx, DeliveryOrder(s, side, qty))
	if err != nil {
		return "", s, fmt.Errorf("place %s %s: %w", side, s.TradingSymbol, err)
	}
	if id == "" {
		return "", s, ErrEmptyOrderID
	}
	return id, s, nil
}
