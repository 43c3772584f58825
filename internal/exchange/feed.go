// Package exchange hosts market data transports and the tick normalizer.
package exchange

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shreyas-sha3/zen-trade/internal/metrics"
	"github.com/shreyas-sha3/zen-trade/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic quotes (useful for tests and paper runs).
	ProviderStub = "stub"
	// ProviderSmartAPI streams quotes from the Angel One SmartAPI websocket (v2).
	ProviderSmartAPI = "smartapi"
)

const (
	defaultSmartAPIURL   = "wss://smartapisocket.angelone.in/smart-stream"
	defaultHeartbeat     = 10 * time.Second
	defaultStubInterval  = 500 * time.Millisecond
	defaultExchangeType  = ExchangeNSECM
	defaultSubscribeMode = ModeQuote
)

// Credentials authenticate the streaming session.
type Credentials struct {
	AuthToken  string
	APIKey     string
	ClientCode string
	FeedToken  string
}

// Feed represents a pluggable market data stream implementation.
type Feed struct {
	provider      string
	tokens        []string
	log           zerolog.Logger
	url           string
	creds         Credentials
	correlationID string
	mode          int
	exchangeType  int
	heartbeat     time.Duration
	backoff       Backoff
	stubInterval  time.Duration
	stubSeed      int64
	mu            sync.RWMutex
}

// Option configures Feed construction parameters.
type Option func(*Feed)

// WithURL overrides the websocket endpoint.
func WithURL(url string) Option {
	return func(f *Feed) {
		if url != "" {
			f.url = url
		}
	}
}

// WithCredentials injects the session credentials sent on the websocket handshake.
func WithCredentials(c Credentials) Option {
	return func(f *Feed) { f.creds = c }
}

// WithSubscription sets the correlation id, subscription mode and exchange segment.
func WithSubscription(correlationID string, mode, exchangeType int) Option {
	return func(f *Feed) {
		if correlationID != "" {
			f.correlationID = correlationID
		}
		if mode > 0 {
			f.mode = mode
		}
		if exchangeType > 0 {
			f.exchangeType = exchangeType
		}
	}
}

// WithHeartbeat overrides the ping cadence.
func WithHeartbeat(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.heartbeat = d
		}
	}
}

// WithBackoff overrides the reconnect schedule.
func WithBackoff(b Backoff) Option {
	return func(f *Feed) { f.backoff = b }
}

// WithStub tunes the synthetic feed cadence and random seed.
func WithStub(interval time.Duration, seed int64) Option {
	return func(f *Feed) {
		if interval > 0 {
			f.stubInterval = interval
		}
		f.stubSeed = seed
	}
}

// NewFeed constructs a feed backed by the requested provider for the given exchange tokens.
func NewFeed(provider string, tokens []string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider:      strings.ToLower(provider),
		log:           log,
		url:           defaultSmartAPIURL,
		correlationID: newCorrelationID(),
		mode:          defaultSubscribeMode,
		exchangeType:  defaultExchangeType,
		heartbeat:     defaultHeartbeat,
		backoff:       DefaultBackoff(),
		stubInterval:  defaultStubInterval,
		stubSeed:      1,
	}
	f.SetTokens(tokens)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// newCorrelationID returns the 10 character id SmartAPI expects on subscriptions.
func newCorrelationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// SetTokens replaces the subscribed token list, keeping order and dropping blanks and duplicates.
func (f *Feed) SetTokens(tokens []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[string]struct{}, len(tokens))
	f.tokens = f.tokens[:0]
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		f.tokens = append(f.tokens, tok)
	}
}

func (f *Feed) snapshotTokens() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.tokens))
	copy(out, f.tokens)
	return out
}

// Run pushes raw quotes onto the provided channel until the context is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- signal.RawQuote) error {
	switch f.provider {
	case ProviderSmartAPI:
		return f.runSmartAPI(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

// StubOpeningPaise is the price, in paise, the stub feed starts a token at.
func StubOpeningPaise(token string) int64 {
	base, _ := strconv.ParseInt(token, 10, 64)
	return 10_000 + (base%500)*100
}

// runStub emits a random walk per token with a cumulative day volume that mostly grows
// steadily and occasionally spikes, which is enough to exercise the breakout strategy.
func (f *Feed) runStub(ctx context.Context, out chan<- signal.RawQuote) error {
	ticker := time.NewTicker(f.stubInterval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(f.stubSeed))
	tokens := f.snapshotTokens()
	prices := make(map[string]int64, len(tokens))
	volumes := make(map[string]int64, len(tokens))
	for _, tok := range tokens {
		prices[tok] = StubOpeningPaise(tok)
	}

	var seq int64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			for _, tok := range tokens {
				seq++
				prices[tok] += int64(rng.Intn(41) - 20)
				if prices[tok] < 100 {
					prices[tok] = 100
				}
				step := int64(80 + rng.Intn(40))
				if rng.Intn(10) == 0 {
					step *= 2
				}
				volumes[tok] += step
				q := signal.RawQuote{
					Token:              tok,
					ExchangeType:       f.exchangeType,
					Mode:               f.mode,
					Sequence:           seq,
					ExchangeTimestamp:  ts.UnixMilli(),
					LastTradedPrice:    prices[tok],
					VolumeTradedForDay: volumes[tok],
				}
				select {
				case out <- q:
					metrics.QuotesTotal.WithLabelValues(tok).Inc()
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
