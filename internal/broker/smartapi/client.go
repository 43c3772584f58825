// Package smartapi is a REST client for the Angel One SmartAPI order and account endpoints.
package smartapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shreyas-sha3/zen-trade/internal/broker"
)

// DefaultBaseURL is the production REST host.
const DefaultBaseURL = "https://apiconnect.angelone.in"

const (
	pathPlaceOrder  = "/rest/secure/angelbroking/order/v1/placeOrder"
	pathCancelOrder = "/rest/secure/angelbroking/order/v1/cancelOrder"
	pathOrderBook   = "/rest/secure/angelbroking/order/v1/getOrderBook"
	pathSearchScrip = "/rest/secure/angelbroking/order/v1/searchScrip"
	pathQuote       = "/rest/secure/angelbroking/market/v1/quote/"
	pathRMS         = "/rest/secure/angelbroking/user/v1/getRMS"
	pathHoldings    = "/rest/secure/angelbroking/portfolio/v1/getAllHolding"
)

// APIError is a well-formed error response from SmartAPI.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Operation string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("smartapi %s: status %d code %q: %s", e.Operation, e.Status, e.Code, e.Message)
}

// Client talks to SmartAPI with an already issued session token.
type Client struct {
	Base      string
	APIKey    string
	AuthToken string
	LocalIP   string
	PublicIP  string
	MAC       string
	Http      *http.Client
}

var _ broker.Broker = (*Client)(nil)

// NewClient builds a client; the token may be given with or without its "Bearer " prefix.
func NewClient(base, apiKey, authToken string, timeout time.Duration) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		Base:      strings.TrimSuffix(base, "/"),
		APIKey:    apiKey,
		AuthToken: strings.TrimPrefix(authToken, "Bearer "),
		LocalIP:   "127.0.0.1",
		PublicIP:  "127.0.0.1",
		MAC:       "00:00:00:00:00:00",
		Http:      &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Status    bool            `json:"status"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorcode"`
	Data      json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("smartapi %s: encode: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, reader)
	if err != nil {
		return fmt.Errorf("smartapi %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.AuthToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-UserType", "USER")
	req.Header.Set("X-SourceID", "WEB")
	req.Header.Set("X-ClientLocalIP", c.LocalIP)
	req.Header.Set("X-ClientPublicIP", c.PublicIP)
	req.Header.Set("X-MACAddress", c.MAC)
	req.Header.Set("X-PrivateKey", c.APIKey)

	resp, err := c.Http.Do(req)
	if err != nil {
		return fmt.Errorf("smartapi %s: %w", op, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Operation: op}
		}
		return fmt.Errorf("smartapi %s: decode: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK || !env.Status {
		return &APIError{Status: resp.StatusCode, Code: env.ErrorCode, Message: env.Message, Operation: op}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("smartapi %s: decode data: %w", op, err)
	}
	return nil
}

// PlaceOrder submits an order and returns its id.
func (c *Client) PlaceOrder(ctx context.Context, p broker.OrderParams) (string, error) {
	var out struct {
		Script  string `json:"script"`
		OrderID string `json:"orderid"`
	}
	if err := c.do(ctx, "placeOrder", http.MethodPost, pathPlaceOrder, p, &out); err != nil {
		return "", err
	}
	if out.OrderID == "" {
		return "", broker.ErrEmptyOrderID
	}
	return out.OrderID, nil
}

// LTP fetches last traded prices for tokens on one exchange.
func (c *Client) LTP(ctx context.Context, exchange string, tokens []string) ([]broker.Quote, error) {
	body := map[string]any{
		"mode":           "LTP",
		"exchangeTokens": map[string][]string{exchange: tokens},
	}
	var out struct {
		Fetched []struct {
			TradingSymbol string          `json:"tradingSymbol"`
			SymbolToken   string          `json:"symbolToken"`
			LTP           decimal.Decimal `json:"ltp"`
		} `json:"fetched"`
	}
	if err := c.do(ctx, "quote", http.MethodPost, pathQuote, body, &out); err != nil {
		return nil, err
	}
	quotes := make([]broker.Quote, 0, len(out.Fetched))
	for _, f := range out.Fetched {
		quotes = append(quotes, broker.Quote{TradingSymbol: f.TradingSymbol, SymbolToken: f.SymbolToken, LTP: f.LTP})
	}
	return quotes, nil
}

// SearchScrip looks instruments up by name.
func (c *Client) SearchScrip(ctx context.Context, exchange, query string) ([]broker.Scrip, error) {
	body := map[string]string{"exchange": exchange, "searchscrip": query}
	var out []broker.Scrip
	if err := c.do(ctx, "searchScrip", http.MethodPost, pathSearchScrip, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AvailableCash returns the free cash reported by the RMS limits endpoint.
func (c *Client) AvailableCash(ctx context.Context) (decimal.Decimal, error) {
	var out struct {
		AvailableCash decimal.Decimal `json:"availablecash"`
	}
	if err := c.do(ctx, "getRMS", http.MethodGet, pathRMS, nil, &out); err != nil {
		return decimal.Zero, err
	}
	return out.AvailableCash, nil
}

// OrderBook lists the day's orders.
func (c *Client) OrderBook(ctx context.Context) ([]broker.OrderBookEntry, error) {
	var out []broker.OrderBookEntry
	if err := c.do(ctx, "getOrderBook", http.MethodGet, pathOrderBook, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, variety, orderID string) error {
	if variety == "" {
		variety = broker.VarietyNormal
	}
	body := map[string]string{"variety": variety, "orderid": orderID}
	return c.do(ctx, "cancelOrder", http.MethodPost, pathCancelOrder, body, nil)
}

// Holdings lists delivery holdings.
func (c *Client) Holdings(ctx context.Context) ([]broker.Holding, error) {
	var out struct {
		Holdings []broker.Holding `json:"holdings"`
	}
	if err := c.do(ctx, "getAllHolding", http.MethodGet, pathHoldings, nil, &out); err != nil {
		return nil, err
	}
	return out.Holdings, nil
}
