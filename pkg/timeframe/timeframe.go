// Package timeframe parses chart timeframe codes (M1, M15, H4, D1, W1).
package timeframe

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Any matches every timeframe when used as a subscription key.
const Any = "*"

// Minutes converts a timeframe code to minutes. Unknown codes fall back to 1.
func Minutes(tf string) int {
	m, err := parse(tf)
	if err != nil {
		return 1
	}
	return m
}

// Duration converts a timeframe code to a duration. Unknown codes yield zero,
// so callers can tell "no timeframe" apart from a real interval.
func Duration(tf string) time.Duration {
	m, err := parse(tf)
	if err != nil {
		return 0
	}
	return time.Duration(m) * time.Minute
}

// Valid reports whether tf is a parseable timeframe code or the wildcard.
func Valid(tf string) bool {
	if tf == Any {
		return true
	}
	_, err := parse(tf)
	return err == nil
}

// chartTimeframes are the codes signal producers actually chart on.
var chartTimeframes = map[string]bool{
	"M1": true, "M5": true, "M15": true, "M30": true,
	"H1": true, "H4": true, "D1": true, "W1": true,
}

// Known reports whether tf is one of the charted timeframe codes. Stricter
// than Valid: M7 parses but nobody charts it.
func Known(tf string) bool {
	return chartTimeframes[Normalize(tf)]
}

// Normalize upper-cases a timeframe code, preserving the wildcard.
func Normalize(tf string) string {
	tf = strings.TrimSpace(tf)
	if tf == Any {
		return Any
	}
	return strings.ToUpper(tf)
}

// NextBoundary returns the start of the next candle for tf after now.
func NextBoundary(now time.Time, tf string) time.Time {
	step := Duration(tf)
	if step <= 0 {
		step = time.Minute
	}
	base := now.Truncate(step)
	return base.Add(step)
}

func parse(tf string) (int, error) {
	tf = strings.ToUpper(strings.TrimSpace(tf))
	if len(tf) < 2 {
		return 0, fmt.Errorf("timeframe %q too short", tf)
	}
	n, err := strconv.Atoi(tf[1:])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("timeframe %q has a bad multiplier", tf)
	}
	switch tf[0] {
	case 'M':
		return n, nil
	case 'H':
		return n * 60, nil
	case 'D':
		return n * 60 * 24, nil
	case 'W':
		return n * 60 * 24 * 7, nil
	}
	return 0, fmt.Errorf("timeframe %q has an unknown unit", tf)
}
