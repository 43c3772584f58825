// Package ledger writes the append-only audit trail of executed orders.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout renders local time like C's %c ("Fri Oct 16 09:15:02 2026").
const TimestampLayout = "Mon Jan _2 15:04:05 2006"

// FileLedger appends one line per placed order. The file is opened and closed on every write,
// relying on O_APPEND for single-line atomicity between writers.
type FileLedger struct {
	path string
}

// NewFileLedger returns a ledger writing to path, creating parent directories.
func NewFileLedger(path string) (*FileLedger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ledger: %w", err)
		}
	}
	return &FileLedger{path: path}, nil
}

// Path returns the ledger file location.
func (l *FileLedger) Path() string { return l.path }

// Line formats one ledger entry, newline included.
func Line(ts time.Time, symbol string, gainPct decimal.Decimal) string {
	return fmt.Sprintf("[%s]PLACED:[%s] | GAINS:%s%%\n", ts.Local().Format(TimestampLayout), symbol, gainPct.StringFixed(2))
}

// Append writes one entry.
func (l *FileLedger) Append(ts time.Time, symbol string, gainPct decimal.Decimal) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open: %w", err)
	}
	if _, err := f.WriteString(Line(ts, symbol, gainPct)); err != nil {
		_ = f.Close()
		return fmt.Errorf("ledger: write: %w", err)
	}
	return f.Close()
}
