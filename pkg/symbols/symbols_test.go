package symbols

import "testing"

func TestAPI(t *testing.T) {
	tests := []struct{ in, want string }{
		{"EUR/USDT", "EURUSDT"},
		{"eurusdt", "EURUSDT"},
		{" btc/usd ", "BTCUSD"},
		{Any, Any},
	}
	for _, tt := range tests {
		if got := API(tt.in); got != tt.want {
			t.Errorf("API(%q)=%q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplit(t *testing.T) {
	tests := []struct{ in, base, quote string }{
		{"EURUSDT", "EUR", "USDT"},
		{"EURUSD", "EUR", "USD"},
		{"BTCUSDT", "BTC", "USDT"},
		{"GBPJPY", "GBP", "JPY"},
		{"ABCXYZ", "ABC", "XYZ"}, // fallback: last three letters
	}
	for _, tt := range tests {
		base, quote := Split(tt.in)
		if base != tt.base || quote != tt.quote {
			t.Errorf("Split(%q)=(%q,%q), want (%q,%q)", tt.in, base, quote, tt.base, tt.quote)
		}
	}
}

func TestUI(t *testing.T) {
	if got := UI("EURUSDT"); got != "EUR/USDT" {
		t.Fatalf("UI=%q", got)
	}
}
