package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in       string
		showPlus bool
		want     string
	}{
		{"1234.5", false, "1 234,50"},
		{"1234.5", true, "+1 234,50"},
		{"-987654.321", false, "-987 654,32"},
		{"0", true, "0,00"},
		{"100", false, "100,00"},
		{"1000000", false, "1 000 000,00"},
	}
	for _, tt := range tests {
		d := decimal.RequireFromString(tt.in)
		if got := FormatAmount(d, tt.showPlus); got != tt.want {
			t.Errorf("FormatAmount(%s, %v)=%q, want %q", tt.in, tt.showPlus, got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	d := decimal.RequireFromString("1234.5")
	if got := Format(d, "rub", false); got != "1 234,50 ₽" {
		t.Fatalf("Format=%q", got)
	}
	if got := Format(d, "GBP", false); got != "1 234,50 GBP" {
		t.Fatalf("Format unknown code=%q", got)
	}
}
