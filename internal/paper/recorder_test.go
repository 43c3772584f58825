package paper

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shreyas-sha3/zen-trade/internal/execution"
)

func TestJSONLRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fills", "fills.jsonl")

	recorder, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	mem := NewLedger(1)
	tee := Tee{recorder, mem}
	fill := execution.Fill{OrderID: "p-1", Symbol: "BPCL-EQ", Side: execution.Buy, Qty: 3, Price: d("310.55")}
	tee.Record(fill)
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	recorder.Record(fill)

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		t.Fatalf("expected one line in recorder output")
	}
	var decoded execution.Fill
	if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if decoded.Symbol != fill.Symbol || decoded.Side != fill.Side || !decoded.Price.Equal(fill.Price) {
		t.Fatalf("unexpected decoded fill %+v", decoded)
	}
	if scanner.Scan() {
		t.Fatalf("record after close must be dropped")
	}
	if len(mem.Snapshot()) != 1 {
		t.Fatalf("tee did not forward to the in-memory ledger")
	}
}
