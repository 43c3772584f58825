package exchange

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shreyas-sha3/zen-trade/internal/signal"
	"github.com/shreyas-sha3/zen-trade/internal/state"
)

// Data-quality outcomes of Normalize. They mean "not ready": callers drop the quote silently.
var (
	ErrUnknownToken  = errors.New("exchange: token not tracked")
	ErrPriceNotReady = errors.New("exchange: price not ready")
	ErrNoBaseline    = errors.New("exchange: first volume observation")
)

// Normalizer turns raw quotes into canonical ticks using the per-symbol volume baseline.
// It appends to the raw volume history, so it must run on the store's single writer goroutine.
type Normalizer struct {
	store *state.Store
}

// NewNormalizer binds a normalizer to the store holding the volume baselines.
func NewNormalizer(store *state.Store) *Normalizer {
	return &Normalizer{store: store}
}

// Normalize converts a raw quote into a Tick. Prices arrive in paise.
func (n *Normalizer) Normalize(q signal.RawQuote) (signal.Tick, error) {
	ss, ok := n.store.ByToken(q.Token)
	if !ok {
		return signal.Tick{}, ErrUnknownToken
	}
	if q.LastTradedPrice <= 0 {
		return signal.Tick{}, ErrPriceNotReady
	}

	prev := ss.LastRawVolume()
	var delta int64
	if q.VolumeTradedForDay > prev {
		delta = q.VolumeTradedForDay - prev
	}
	ss.RecordRawVolume(q.VolumeTradedForDay)

	// With no earlier reading the whole cumulative volume would show up as one spike.
	if ss.RawVolumeSum() == delta {
		return signal.Tick{}, ErrNoBaseline
	}

	return signal.Tick{
		Symbol: ss.Symbol(),
		Ts:     time.UnixMilli(q.ExchangeTimestamp),
		Price:  decimal.New(q.LastTradedPrice, -2),
		Volume: delta,
	}, nil
}

// DropReason maps a Normalize error onto a short metrics label.
func DropReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownToken):
		return "unknown_token"
	case errors.Is(err, ErrPriceNotReady):
		return "price_not_ready"
	case errors.Is(err, ErrNoBaseline):
		return "no_baseline"
	default:
		return "other"
	}
}
