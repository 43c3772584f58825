// Package strategy contains trading decision logic wired onto normalized ticks.
package strategy

import (
	"fmt"
	"strings"

	sig "github.com/shreyas-sha3/zen-trade/internal/signal"
	"github.com/shreyas-sha3/zen-trade/internal/state"
)

// Strategy decides on a tick using, and mutating, the symbol's state. A nil decision means no action.
type Strategy interface {
	OnTick(ss *state.SymbolState, t sig.Tick) *sig.Decision
	Name() string
}

// Params expresses tunable knobs required by strategy constructors.
type Params struct {
	BreakoutFactor float64
}

// Build returns a strategy implementation matching the configured mode. An empty mode selects the
// volume breakout.
func Build(mode string, params Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "volume_breakout", "breakout":
		return NewVolumeBreakout(params.BreakoutFactor), nil
	default:
		return nil, fmt.Errorf("strategy: unknown mode %q", mode)
	}
}
