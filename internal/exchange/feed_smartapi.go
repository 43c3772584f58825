package exchange

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shreyas-sha3/zen-trade/internal/metrics"
	"github.com/shreyas-sha3/zen-trade/internal/signal"
)

// SmartAPI subscription modes.
const (
	ModeLTP       = 1
	ModeQuote     = 2
	ModeSnapQuote = 3
)

// SmartAPI exchange segments.
const (
	ExchangeNSECM = 1
	ExchangeNSEFO = 2
	ExchangeBSECM = 3
)

const (
	actionSubscribe = 1

	ltpPacketSize   = 51
	quotePacketSize = 123
	tokenFieldSize  = 25

	readTimeoutFactor = 3
)

var errShortPacket = errors.New("exchange: short smartapi packet")

type smartSubscribeRequest struct {
	CorrelationID string               `json:"correlationID"`
	Action        int                  `json:"action"`
	Params        smartSubscribeParams `json:"params"`
}

type smartSubscribeParams struct {
	Mode      int              `json:"mode"`
	TokenList []smartTokenList `json:"tokenList"`
}

type smartTokenList struct {
	ExchangeType int      `json:"exchangeType"`
	Tokens       []string `json:"tokens"`
}

func (f *Feed) runSmartAPI(ctx context.Context, out chan<- signal.RawQuote) error {
	if len(f.snapshotTokens()) == 0 {
		return fmt.Errorf("smartapi feed requires at least one token")
	}

	attempt := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delivered, err := f.consumeSmartAPIStream(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered {
			attempt = 0
		}
		attempt++
		wait := f.backoff.Next(attempt)
		metrics.FeedReconnects.Inc()
		f.log.Warn().Err(err).Dur("retry_in", wait).Int("attempt", attempt).Msg("smartapi feed disconnected, retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// consumeSmartAPIStream runs one websocket session. It reports whether any quote was delivered,
// which resets the reconnect schedule.
func (f *Feed) consumeSmartAPIStream(ctx context.Context, out chan<- signal.RawQuote) (bool, error) {
	header := http.Header{}
	header.Set("Authorization", f.creds.AuthToken)
	header.Set("x-api-key", f.creds.APIKey)
	header.Set("x-client-code", f.creds.ClientCode)
	header.Set("x-feed-token", f.creds.FeedToken)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, header)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	tokens := f.snapshotTokens()
	f.log.Info().Str("provider", ProviderSmartAPI).Strs("tokens", tokens).Msg("websocket connection opened")

	sub := smartSubscribeRequest{
		CorrelationID: f.correlationID,
		Action:        actionSubscribe,
		Params: smartSubscribeParams{
			Mode:      f.mode,
			TokenList: []smartTokenList{{ExchangeType: f.exchangeType, Tokens: tokens}},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	readTimeout := readTimeoutFactor * f.heartbeat
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(f.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
					f.log.Warn().Err(err).Msg("smartapi heartbeat failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	// Unblock ReadMessage when the context ends.
	go func() {
		<-pingCtx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	delivered := false
	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				f.log.Info().Msg("websocket connection closed")
				return delivered, ctx.Err()
			}
			f.log.Error().Err(err).Msg("websocket error")
			return delivered, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msgType == websocket.TextMessage {
			if !bytes.Equal(message, []byte("pong")) {
				f.log.Debug().Bytes("msg", message).Msg("smartapi text frame")
			}
			continue
		}

		q, err := decodeSmartPacket(message)
		if err != nil {
			f.log.Warn().Err(err).Int("len", len(message)).Msg("failed to decode smartapi packet")
			continue
		}

		select {
		case out <- q:
			delivered = true
			metrics.QuotesTotal.WithLabelValues(q.Token).Inc()
		case <-ctx.Done():
			return delivered, ctx.Err()
		}
	}
}

// decodeSmartPacket parses the little-endian binary layout of LTP, QUOTE and SNAP_QUOTE packets.
// Only the fields the normalizer needs are extracted; LTP packets carry no day volume.
func decodeSmartPacket(b []byte) (signal.RawQuote, error) {
	if len(b) < ltpPacketSize {
		return signal.RawQuote{}, errShortPacket
	}
	q := signal.RawQuote{
		Mode:              int(b[0]),
		ExchangeType:      int(b[1]),
		Token:             string(bytes.TrimRight(b[2:2+tokenFieldSize], "\x00")),
		Sequence:          int64(binary.LittleEndian.Uint64(b[27:35])),
		ExchangeTimestamp: int64(binary.LittleEndian.Uint64(b[35:43])),
		LastTradedPrice:   int64(binary.LittleEndian.Uint64(b[43:51])),
	}
	if q.Mode >= ModeQuote {
		if len(b) < quotePacketSize {
			return signal.RawQuote{}, errShortPacket
		}
		q.VolumeTradedForDay = int64(binary.LittleEndian.Uint64(b[67:75]))
	}
	return q, nil
}
