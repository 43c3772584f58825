// Package broker defines the order-placement and account collaborator the trading core calls into.
package broker

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Order shape constants.
const (
	VarietyNormal   = "NORMAL"
	VarietyStopLoss = "STOPLOSS"

	OrderTypeMarket         = "MARKET"
	OrderTypeStopLossMarket = "STOPLOSS_MARKET"

	ProductIntraday = "INTRADAY"
	ProductDelivery = "DELIVERY"

	DurationDay = "DAY"

	ExchangeNSE = "NSE"
)

var (
	// ErrEmptyOrderID is returned when the broker acknowledges an order without an id.
	ErrEmptyOrderID = errors.New("broker: empty order id")
	// ErrNotFound is returned when a lookup yields no match.
	ErrNotFound = errors.New("broker: not found")
)

// OrderParams is the order request sent to the broker.
type OrderParams struct {
	Variety         string `json:"variety"`
	TradingSymbol   string `json:"tradingsymbol"`
	SymbolToken     string `json:"symboltoken"`
	TransactionType string `json:"transactiontype"`
	Exchange        string `json:"exchange"`
	OrderType       string `json:"ordertype"`
	ProductType     string `json:"producttype"`
	Duration        string `json:"duration"`
	Price           string `json:"price"`
	TriggerPrice    string `json:"triggerprice,omitempty"`
	Quantity        string `json:"quantity"`
}

// Scrip is a tradable instrument found by a search.
type Scrip struct {
	Exchange      string `json:"exchange"`
	TradingSymbol string `json:"tradingsymbol"`
	SymbolToken   string `json:"symboltoken"`
}

// Quote is a last-traded-price snapshot.
type Quote struct {
	TradingSymbol string
	SymbolToken   string
	LTP           decimal.Decimal
}

// OrderBookEntry is one order in the day's order book.
type OrderBookEntry struct {
	OrderID         string `json:"orderid"`
	Variety         string `json:"variety"`
	TradingSymbol   string `json:"tradingsymbol"`
	TransactionType string `json:"transactiontype"`
	Quantity        string `json:"quantity"`
	Status          string `json:"status"`
}

// Holding is one delivery holding.
type Holding struct {
	TradingSymbol string          `json:"tradingsymbol"`
	Quantity      int64           `json:"quantity"`
	AveragePrice  decimal.Decimal `json:"averageprice"`
	LTP           decimal.Decimal `json:"ltp"`
	ProfitAndLoss decimal.Decimal `json:"profitandloss"`
	PnLPercentage decimal.Decimal `json:"pnlpercentage"`
}

// Broker is the remote order/account API. Every call may fail.
type Broker interface {
	PlaceOrder(ctx context.Context, p OrderParams) (string, error)
	LTP(ctx context.Context, exchange string, tokens []string) ([]Quote, error)
	SearchScrip(ctx context.Context, exchange, query string) ([]Scrip, error)
	AvailableCash(ctx context.Context) (decimal.Decimal, error)
	OrderBook(ctx context.Context) ([]OrderBookEntry, error)
	CancelOrder(ctx context.Context, variety, orderID string) error
	Holdings(ctx context.Context) ([]Holding, error)
}
