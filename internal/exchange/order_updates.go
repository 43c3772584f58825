package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/shreyas-sha3/zen-trade/internal/metrics"
)

// DefaultOrderUpdatesURL is the SmartAPI order-status websocket.
const DefaultOrderUpdatesURL = "wss://tns.angelone.in/smart-order-update"

// OrderUpdate is one order status push.
type OrderUpdate struct {
	Status          string // push-level status code, e.g. AB00
	OrderID         string
	TransactionType string
	TradingSymbol   string
	Quantity        string
	OrderStatus     string
	FilledShares    string
}

// String renders the update the way the console prints it.
func (u OrderUpdate) String() string {
	return fmt.Sprintf("[Order Update] %s %s | Qty: %s | Status: %s | Filled: %s/%s",
		u.TransactionType, u.TradingSymbol, u.Quantity, u.OrderStatus, u.FilledShares, u.Quantity)
}

// looseString accepts a JSON string or number; the push mixes both for counts.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	*s = looseString(strings.TrimSpace(string(b)))
	return nil
}

type orderUpdateMessage struct {
	Status    string `json:"order-status"`
	OrderData struct {
		OrderID         looseString `json:"orderid"`
		TransactionType looseString `json:"transactiontype"`
		TradingSymbol   looseString `json:"tradingsymbol"`
		Quantity        looseString `json:"quantity"`
		OrderStatus     looseString `json:"orderstatus"`
		FilledShares    looseString `json:"filledshares"`
	} `json:"orderData"`
}

// decodeOrderUpdate parses one push. ok is false for frames that carry no order, such as the
// connection acknowledgement.
func decodeOrderUpdate(b []byte) (OrderUpdate, bool, error) {
	var m orderUpdateMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return OrderUpdate{}, false, err
	}
	if m.OrderData.TradingSymbol == "" {
		return OrderUpdate{}, false, nil
	}
	return OrderUpdate{
		Status:          m.Status,
		OrderID:         string(m.OrderData.OrderID),
		TransactionType: string(m.OrderData.TransactionType),
		TradingSymbol:   string(m.OrderData.TradingSymbol),
		Quantity:        string(m.OrderData.Quantity),
		OrderStatus:     string(m.OrderData.OrderStatus),
		FilledShares:    string(m.OrderData.FilledShares),
	}, true, nil
}

// OrderStream follows the order-status websocket, reconnecting on the feed's backoff schedule.
type OrderStream struct {
	url       string
	authToken string
	heartbeat time.Duration
	backoff   Backoff
	log       zerolog.Logger
}

// NewOrderStream builds a stream for url; an empty url selects DefaultOrderUpdatesURL. The token
// may be given with or without its "Bearer " prefix.
func NewOrderStream(url, authToken string, heartbeat time.Duration, backoff Backoff, log zerolog.Logger) *OrderStream {
	if url == "" {
		url = DefaultOrderUpdatesURL
	}
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &OrderStream{
		url:       url,
		authToken: strings.TrimPrefix(authToken, "Bearer "),
		heartbeat: heartbeat,
		backoff:   backoff,
		log:       log,
	}
}

// Run logs every order update and hands it to handle, which may be nil, until ctx ends.
func (s *OrderStream) Run(ctx context.Context, handle func(OrderUpdate)) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		received, err := s.consume(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			attempt = 0
		}
		attempt++
		wait := s.backoff.Next(attempt)
		s.log.Warn().Err(err).Dur("retry_in", wait).Int("attempt", attempt).Msg("order websocket closed, retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *OrderStream) consume(ctx context.Context, handle func(OrderUpdate)) (bool, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.authToken)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	s.log.Info().Msg("order status websocket connected")

	readTimeout := readTimeoutFactor * s.heartbeat
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
					s.log.Warn().Err(err).Msg("order websocket heartbeat failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()
	go func() {
		<-pingCtx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	received := false
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info().Msg("order status websocket closed")
				return received, ctx.Err()
			}
			s.log.Error().Err(err).Msg("order websocket error")
			return received, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		received = true
		if bytes.Equal(message, []byte("pong")) {
			continue
		}

		u, ok, err := decodeOrderUpdate(message)
		if err != nil {
			s.log.Warn().Err(err).Int("len", len(message)).Msg("failed to decode order update")
			continue
		}
		if !ok {
			continue
		}
		metrics.OrderUpdates.WithLabelValues(u.OrderStatus).Inc()
		s.log.Info().
			Str("order_id", u.OrderID).
			Str("sym", u.TradingSymbol).
			Str("status", u.OrderStatus).
			Msg(u.String())
		if handle != nil {
			handle(u)
		}
	}
}
