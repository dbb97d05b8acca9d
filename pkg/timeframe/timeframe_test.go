package timeframe

import (
	"testing"
	"time"
)

func TestMinutes(t *testing.T) {
	tests := []struct {
		tf   string
		want int
	}{
		{"M1", 1},
		{"m5", 5},
		{"M30", 30},
		{"H1", 60},
		{"H4", 240},
		{"D1", 1440},
		{"W1", 10080},
		{"", 1},
		{"X3", 1},
		{"M0", 1},
	}
	for _, tt := range tests {
		if got := Minutes(tt.tf); got != tt.want {
			t.Errorf("Minutes(%q)=%d, want %d", tt.tf, got, tt.want)
		}
	}
}

func TestDurationUnknownIsZero(t *testing.T) {
	if d := Duration("nope"); d != 0 {
		t.Fatalf("Duration(nope)=%v, want 0", d)
	}
	if d := Duration("M15"); d != 15*time.Minute {
		t.Fatalf("Duration(M15)=%v", d)
	}
}

func TestNextBoundary(t *testing.T) {
	now := time.Date(2025, 3, 10, 14, 37, 12, 0, time.UTC)
	next := NextBoundary(now, "M15")
	want := time.Date(2025, 3, 10, 14, 45, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("NextBoundary=%v, want %v", next, want)
	}
}

func TestValid(t *testing.T) {
	for _, tf := range []string{"M1", "H4", Any} {
		if !Valid(tf) {
			t.Errorf("Valid(%q)=false", tf)
		}
	}
	for _, tf := range []string{"", "Q7", "M"} {
		if Valid(tf) {
			t.Errorf("Valid(%q)=true", tf)
		}
	}
}

func TestKnown(t *testing.T) {
	for _, tf := range []string{"M1", "m5", "H4", "W1"} {
		if !Known(tf) {
			t.Errorf("Known(%q)=false", tf)
		}
	}
	for _, tf := range []string{"M7", "H2", Any, ""} {
		if Known(tf) {
			t.Errorf("Known(%q)=true", tf)
		}
	}
}
