package executor

import (
	"errors"
	"fmt"
	"time"

	"github.com/qqdanya/intradevor-sub000/internal/broker"
	"github.com/qqdanya/intradevor-sub000/internal/signal"
	"github.com/qqdanya/intradevor-sub000/pkg/timeframe"
)

// ErrStale marks a signal too old to act on. Staleness is a silent skip at
// the engine boundary, never a fault.
var ErrStale = errors.New("executor: signal stale")

// Freshness windows per trade type.
const (
	// SprintMaxAge bounds sprint signals: a sprint entry drifts off its
	// level within seconds.
	SprintMaxAge = 5 * time.Second
	// ClassicMaxAge bounds classic signals, which target a candle boundary
	// and tolerate more delivery delay.
	ClassicMaxAge = 120 * time.Second
	// ClassicMinLead is the minimum remaining time before the next candle
	// for a classic entry to still make sense.
	ClassicMinLead = 30 * time.Second
)

// classicTimeframes lists the expiries the venue settles classic trades on.
var classicTimeframes = map[string]bool{
	"M5": true, "M15": true, "M30": true, "H1": true, "H4": true,
}

// ClassicTimeframeAllowed reports whether the venue offers classic expiry
// for the timeframe.
func ClassicTimeframeAllowed(tf string) bool {
	return classicTimeframes[timeframe.Normalize(tf)]
}

// Validate checks a signal against the freshness rules of the trade type.
// now is injected for tests.
func Validate(ev signal.Event, tt broker.TradeType, now time.Time) error {
	age := now.Sub(ev.Meta.CandleTime)
	if ev.Meta.CandleTime.IsZero() {
		age = now.Sub(ev.Arrived)
	}
	switch tt {
	case broker.Sprint:
		if age > SprintMaxAge {
			return fmt.Errorf("%w: sprint signal aged %s", ErrStale, age.Round(time.Millisecond))
		}
	case broker.Classic:
		if age > ClassicMaxAge {
			return fmt.Errorf("%w: classic signal aged %s", ErrStale, age.Round(time.Second))
		}
		if !ClassicTimeframeAllowed(ev.Meta.Timeframe) {
			return fmt.Errorf("%w: timeframe %s has no classic expiry", ErrStale, ev.Meta.Timeframe)
		}
		if !ev.Meta.NextCandleTime.IsZero() {
			if lead := ev.Meta.NextCandleTime.Sub(now); lead < ClassicMinLead {
				return fmt.Errorf("%w: only %s left before next candle", ErrStale, lead.Round(time.Second))
			}
		}
	default:
		return fmt.Errorf("unknown trade type %q", tt)
	}
	return nil
}
