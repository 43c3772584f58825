package signal

import "testing"

func TestActionString(t *testing.T) {
	cases := map[Action]string{
		Buy:       "BUY",
		Sell:      "SELL",
		Action(0): "UNKNOWN",
	}
	for action, expected := range cases {
		if got := action.String(); got != expected {
			t.Fatalf("expected %s got %s", expected, got)
		}
	}
}
