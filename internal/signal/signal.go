// Package signal standardizes payloads shared between data ingestion, strategy, and execution layers.
package signal

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawQuote is one market data message as delivered by the streaming transport, before normalization.
type RawQuote struct {
	Token              string
	ExchangeType       int
	Mode               int
	Sequence           int64
	ExchangeTimestamp  int64 // epoch milliseconds
	LastTradedPrice    int64 // paise
	VolumeTradedForDay int64 // cumulative for the session
}

// Tick is the canonical market update consumed by strategies.
type Tick struct {
	Symbol string
	Ts     time.Time
	Price  decimal.Decimal
	Volume int64 // incremental since the previous observation, never negative
}

// Action is the direction of a strategy decision.
type Action int

const (
	// Buy enters a long position.
	Buy Action = iota + 1
	// Sell exits a long position.
	Sell
)

func (a Action) String() string {
	switch a {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Decision is what a strategy emits once it has mutated the symbol's position.
type Decision struct {
	Symbol     string
	Action     Action
	Price      decimal.Decimal
	EntryPrice decimal.Decimal // entry of the closed trade for Sell, equal to Price for Buy
	ProfitPct  decimal.Decimal // zero for Buy
	GainPct    decimal.Decimal // cumulative realized gain after the decision
	Qty        int64
	Ts         time.Time
	Reason     string
}
