package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/shreyas-sha3/zen-trade/internal/app"
	"github.com/shreyas-sha3/zen-trade/internal/config"
	"github.com/shreyas-sha3/zen-trade/internal/paper"
	"github.com/shreyas-sha3/zen-trade/internal/report"
)

func TestPaperFlowProducesOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Broker.Provider = config.ProviderPaper
	cfg.Feed.Provider = config.ProviderStub
	cfg.Feed.StubIntervalMs = 1
	cfg.Strategy.Window = 5
	cfg.Execution.LedgerPath = filepath.Join(dir, "trades.txt")
	cfg.Paper.FillsPath = filepath.Join(dir, "fills.jsonl")
	cfg.Symbols = []string{"BPCL", "SBIN:3045"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config invalid: %v", err)
	}

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	a, err := app.New(ctx, &cfg, logger)
	if err != nil {
		t.Fatalf("app.New returned error: %v", err)
	}
	defer a.Close()

	seeded, err := a.Broker.OrderBook(ctx)
	if err != nil || len(seeded) != 2 {
		t.Fatalf("expected two seed hedges before streaming, got %d (%v)", len(seeded), err)
	}

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- a.Run(runCtx) }()

	for {
		book, _ := a.Broker.OrderBook(ctx)
		if len(book) > 2 {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatalf("timed out waiting for a strategy order")
		case <-time.After(10 * time.Millisecond):
		}
	}
	stop()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	data, err := os.ReadFile(cfg.Execution.LedgerPath)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected seed and strategy ledger lines, got %q", data)
	}
	if !strings.Contains(lines[0], "PLACED:[") || !strings.Contains(lines[0], "GAINS:0.00%") {
		t.Fatalf("unexpected ledger line %q", lines[0])
	}
	if !strings.Contains(buf.String(), `"message":"decision"`) {
		t.Fatalf("expected a decision log line, got %s", buf.String())
	}

	book, err := a.Broker.OrderBook(ctx)
	if err != nil {
		t.Fatalf("order book: %v", err)
	}
	complete := 0
	for _, o := range book {
		if o.Status == paper.StatusComplete {
			complete++
		}
	}
	fills := a.Fills.Snapshot()
	if len(fills) != complete {
		t.Fatalf("expected one in-memory fill per completed order, got %d fills for %d orders", len(fills), complete)
	}
	jsonl, err := os.ReadFile(cfg.Paper.FillsPath)
	if err != nil {
		t.Fatalf("read fills: %v", err)
	}
	if got := strings.Count(string(jsonl), "\n"); got != len(fills) {
		t.Fatalf("expected %d JSONL fills, got %d", len(fills), got)
	}

	var table strings.Builder
	report.New(false).Fills(&table, fills)
	for _, f := range fills {
		if !strings.Contains(table.String(), f.Symbol) {
			t.Fatalf("fill %s missing from table:\n%s", f.OrderID, table.String())
		}
	}
	table.Reset()
	report.New(false).States(&table, a.Engine.Snapshot())
	if !strings.Contains(table.String(), "BPCL-EQ") || !strings.Contains(table.String(), "SBIN-EQ") {
		t.Fatalf("unexpected state table:\n%s", table.String())
	}
}
