package exchange

import (
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/shreyas-sha3/zen-trade/internal/signal"
)

func encodeQuotePacket(token string, seq, ts, ltp, dayVolume int64) []byte {
	b := make([]byte, quotePacketSize)
	b[0] = ModeQuote
	b[1] = ExchangeNSECM
	copy(b[2:2+tokenFieldSize], token)
	binary.LittleEndian.PutUint64(b[27:35], uint64(seq))
	binary.LittleEndian.PutUint64(b[35:43], uint64(ts))
	binary.LittleEndian.PutUint64(b[43:51], uint64(ltp))
	binary.LittleEndian.PutUint64(b[67:75], uint64(dayVolume))
	return b
}

func TestFeedRunEmitsStubQuotes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(ProviderStub, []string{"526"}, zerolog.Nop(), WithStub(10*time.Millisecond, 7))
	quotes := make(chan signal.RawQuote, 1)

	go func() {
		_ = feed.Run(ctx, quotes)
	}()

	select {
	case q := <-quotes:
		if q.Token != "526" {
			t.Fatalf("unexpected token %s", q.Token)
		}
		if q.LastTradedPrice <= 0 || q.VolumeTradedForDay <= 0 {
			t.Fatalf("expected positive price and volume, got %+v", q)
		}
		cancel()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for quote")
	}
}

func TestSetTokensDedupes(t *testing.T) {
	feed := NewFeed(ProviderStub, []string{"526", " ", "526", "1660"}, zerolog.Nop())
	got := feed.snapshotTokens()
	if len(got) != 2 || got[0] != "526" || got[1] != "1660" {
		t.Fatalf("unexpected tokens %v", got)
	}
}

func TestCorrelationIDLength(t *testing.T) {
	if id := newCorrelationID(); len(id) != 10 {
		t.Fatalf("expected 10 chars, got %q", id)
	}
}

func TestDecodeSmartPacket(t *testing.T) {
	q, err := decodeSmartPacket(encodeQuotePacket("526", 9, 1_700_000_000_000, 31055, 123456))
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if q.Token != "526" || q.Sequence != 9 || q.LastTradedPrice != 31055 || q.VolumeTradedForDay != 123456 {
		t.Fatalf("unexpected quote %+v", q)
	}
	if q.ExchangeTimestamp != 1_700_000_000_000 {
		t.Fatalf("unexpected timestamp %d", q.ExchangeTimestamp)
	}

	if _, err := decodeSmartPacket(make([]byte, 10)); !errors.Is(err, errShortPacket) {
		t.Fatalf("expected short packet error, got %v", err)
	}

	truncated := encodeQuotePacket("526", 1, 1, 1, 1)[:ltpPacketSize+4]
	if _, err := decodeSmartPacket(truncated); !errors.Is(err, errShortPacket) {
		t.Fatalf("expected short quote packet error, got %v", err)
	}
}

func TestDecodeLTPPacketHasNoVolume(t *testing.T) {
	b := encodeQuotePacket("526", 1, 1, 500, 999)[:ltpPacketSize]
	b[0] = ModeLTP
	q, err := decodeSmartPacket(b)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if q.VolumeTradedForDay != 0 {
		t.Fatalf("ltp packet should not carry volume, got %d", q.VolumeTradedForDay)
	}
}

func TestSmartAPIFeedSubscribesAndStreams(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotSub smartSubscribeRequest
	var gotAuth atomic.Value
	subscribed := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("x-feed-token"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if err := conn.ReadJSON(&gotSub); err != nil {
			return
		}
		close(subscribed)
		_ = conn.WriteMessage(websocket.TextMessage, []byte("pong"))
		_ = conn.WriteMessage(websocket.BinaryMessage, encodeQuotePacket("526", 1, 1_700_000_000_000, 5000, 100))
		// Answer heartbeats until the client goes away.
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == "ping" {
				_ = conn.WriteMessage(websocket.TextMessage, []byte("pong"))
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(
		ProviderSmartAPI,
		[]string{"526"},
		zerolog.Nop(),
		WithURL("ws"+strings.TrimPrefix(server.URL, "http")),
		WithCredentials(Credentials{AuthToken: "jwt", APIKey: "key", ClientCode: "C1", FeedToken: "feed"}),
		WithSubscription("abc12abc12", ModeQuote, ExchangeNSECM),
		WithHeartbeat(50*time.Millisecond),
	)

	quotes := make(chan signal.RawQuote, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- feed.Run(ctx, quotes) }()

	select {
	case q := <-quotes:
		if q.Token != "526" || q.LastTradedPrice != 5000 || q.VolumeTradedForDay != 100 {
			t.Fatalf("unexpected quote %+v", q)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for quote")
	}

	<-subscribed
	if gotSub.CorrelationID != "abc12abc12" || gotSub.Action != actionSubscribe || gotSub.Params.Mode != ModeQuote {
		t.Fatalf("unexpected subscription %+v", gotSub)
	}
	if len(gotSub.Params.TokenList) != 1 || gotSub.Params.TokenList[0].Tokens[0] != "526" {
		t.Fatalf("unexpected token list %+v", gotSub.Params.TokenList)
	}
	if gotAuth.Load() != "feed" {
		t.Fatalf("feed token header not sent")
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop after cancel")
	}
}

func TestSmartAPIFeedReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var connections atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub smartSubscribeRequest
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		n := connections.Add(1)
		if n == 1 {
			// Drop the first session right away.
			return
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, encodeQuotePacket("526", int64(n), 1, 5000, 100))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewFeed(
		ProviderSmartAPI,
		[]string{"526"},
		zerolog.Nop(),
		WithURL("ws"+strings.TrimPrefix(server.URL, "http")),
		WithBackoff(Backoff{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond, Factor: 2}),
	)
	quotes := make(chan signal.RawQuote, 1)
	go func() { _ = feed.Run(ctx, quotes) }()

	select {
	case q := <-quotes:
		if q.Sequence < 2 {
			t.Fatalf("expected quote from a reconnected session, got seq %d", q.Sequence)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reconnect")
	}
}
