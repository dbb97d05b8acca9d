package broker

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestStakeRange(t *testing.T) {
	cases := []struct {
		currency string
		lo, hi   int64
	}{
		{"RUB", 100, 50000},
		{"rub", 100, 50000},
		{"USD", 1, 700},
		{"", 100, 50000},
		{"JPY", 100, 50000},
	}
	for _, c := range cases {
		lo, hi := StakeRange(c.currency)
		if !lo.Equal(decimal.NewFromInt(c.lo)) || !hi.Equal(decimal.NewFromInt(c.hi)) {
			t.Errorf("StakeRange(%q) = %s..%s, want %d..%d", c.currency, lo, hi, c.lo, c.hi)
		}
	}
}

func TestClampStake(t *testing.T) {
	cases := []struct {
		currency string
		in       string
		want     string
	}{
		{"RUB", "50", "100"},
		{"RUB", "250", "250"},
		{"RUB", "99999", "50000"},
		{"USD", "0.5", "1"},
		{"USD", "701", "700"},
	}
	for _, c := range cases {
		got := ClampStake(c.currency, decimal.RequireFromString(c.in))
		if !got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("ClampStake(%s, %s) = %s, want %s", c.currency, c.in, got, c.want)
		}
	}
}

func TestSprintAllowed(t *testing.T) {
	cases := []struct {
		symbol  string
		minutes int
		want    bool
	}{
		{"BTCUSDT", 5, true},
		{"BTCUSDT", 4, false},
		{"BTCUSDT", 500, true},
		{"BTCUSDT", 501, false},
		{"EURUSD", 1, true},
		{"EURUSD", 2, false},
		{"EURUSD", 3, true},
		{"EURUSD", 500, true},
		{"EURUSD", 501, false},
	}
	for _, c := range cases {
		if got := SprintAllowed(c.symbol, c.minutes); got != c.want {
			t.Errorf("SprintAllowed(%s, %d) = %v, want %v", c.symbol, c.minutes, got, c.want)
		}
	}
}

func TestNormalizeSprint(t *testing.T) {
	if m, ok := NormalizeSprint("EURUSD", 9999); !ok || m != 500 {
		t.Errorf("NormalizeSprint(EURUSD, 9999) = %d, %v, want 500, true", m, ok)
	}
	if m, ok := NormalizeSprint("EURUSD", 0); !ok || m != 1 {
		t.Errorf("NormalizeSprint(EURUSD, 0) = %d, %v, want 1, true", m, ok)
	}
	if _, ok := NormalizeSprint("EURUSD", 2); ok {
		t.Error("NormalizeSprint should reject 2 minutes for EURUSD")
	}
	if _, ok := NormalizeSprint("BTCUSDT", 1); ok {
		t.Error("NormalizeSprint should reject 1 minute for BTCUSDT")
	}
}
