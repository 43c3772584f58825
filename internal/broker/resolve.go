package broker

import (
	"context"
	"fmt"
	"strings"
)

// equitySuffix marks the cash-equity series of an NSE listing.
const equitySuffix = "-EQ"

// ResolveEquity finds the equity series of name on exchange. A name that already carries the
// suffix must match exactly.
func ResolveEquity(ctx context.Context, b Broker, exchange, name string) (Scrip, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	scrips, err := b.SearchScrip(ctx, exchange, strings.TrimSuffix(name, equitySuffix))
	if err != nil {
		return Scrip{}, fmt.Errorf("search %s: %w", name, err)
	}
	for _, s := range scrips {
		if !strings.HasSuffix(s.TradingSymbol, equitySuffix) {
			continue
		}
		if strings.HasSuffix(name, equitySuffix) && s.TradingSymbol != name {
			continue
		}
		return s, nil
	}
	return Scrip{}, fmt.Errorf("no %s symbol for %q: %w", equitySuffix, name, ErrNotFound)
}
