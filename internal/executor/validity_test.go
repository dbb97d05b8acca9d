package executor

import (
	"errors"
	"testing"
	"time"

	"github.com/qqdanya/intradevor-sub000/internal/broker"
	"github.com/qqdanya/intradevor-sub000/internal/signal"
)

func event(candleAge, lead time.Duration, tf string) signal.Event {
	now := time.Now()
	return signal.Event{
		Direction: signal.Up,
		Version:   1,
		Arrived:   now.Add(-candleAge),
		Meta: signal.Meta{
			Symbol:         "EURUSD",
			Timeframe:      tf,
			CandleTime:     now.Add(-candleAge),
			NextCandleTime: now.Add(lead),
		},
	}
}

func TestValidateSprint(t *testing.T) {
	now := time.Now()
	if err := Validate(event(2*time.Second, time.Minute, "M1"), broker.Sprint, now); err != nil {
		t.Errorf("2s-old sprint signal: %v", err)
	}
	err := Validate(event(10*time.Second, time.Minute, "M1"), broker.Sprint, now)
	if !errors.Is(err, ErrStale) {
		t.Errorf("10s-old sprint signal: err = %v, want ErrStale", err)
	}
}

func TestValidateClassic(t *testing.T) {
	now := time.Now()
	if err := Validate(event(time.Minute, 2*time.Minute, "M5"), broker.Classic, now); err != nil {
		t.Errorf("fresh classic signal: %v", err)
	}
	if err := Validate(event(3*time.Minute, 10*time.Minute, "M5"), broker.Classic, now); !errors.Is(err, ErrStale) {
		t.Errorf("3m-old classic signal: err = %v, want ErrStale", err)
	}
	if err := Validate(event(time.Minute, 10*time.Second, "M5"), broker.Classic, now); !errors.Is(err, ErrStale) {
		t.Errorf("10s lead before next candle: err = %v, want ErrStale", err)
	}
	if err := Validate(event(time.Minute, 2*time.Minute, "M1"), broker.Classic, now); !errors.Is(err, ErrStale) {
		t.Errorf("M1 classic: err = %v, want ErrStale (no classic expiry)", err)
	}
}

func TestClassicTimeframeAllowed(t *testing.T) {
	for tf, want := range map[string]bool{
		"M5": true, "M15": true, "M30": true, "H1": true, "H4": true,
		"M1": false, "M3": false, "D1": false, "*": false,
	} {
		if got := ClassicTimeframeAllowed(tf); got != want {
			t.Errorf("ClassicTimeframeAllowed(%s) = %v, want %v", tf, got, want)
		}
	}
}
