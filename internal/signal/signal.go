// Package signal distributes directional predictions to strategy consumers.
//
// The bus keeps one versioned state per (symbol, timeframe) key. Every push
// bumps the key version, even when it carries no usable direction, so "no
// signal yet" and "signal cleared" stay distinguishable from "signal present".
package signal

import "time"

// Direction of a predicted move.
type Direction int

const (
	None Direction = 0
	Up   Direction = 1
	Down Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	}
	return "NONE"
}

// Usable reports whether the direction can drive a trade.
func (d Direction) Usable() bool { return d == Up || d == Down }

// ParseDirection accepts the wire spellings seen from signal producers.
func ParseDirection(raw string) Direction {
	switch raw {
	case "1", "up", "UP", "Up", "buy", "long":
		return Up
	case "2", "down", "DOWN", "Down", "sell", "short":
		return Down
	}
	return None
}

// Meta carries the origin of a signal alongside its direction. Wildcard
// subscribers use Symbol/Timeframe to learn which concrete pair fired.
type Meta struct {
	Symbol     string
	Timeframe  string
	Indicator  string
	CandleTime time.Time
	// NextCandleTime anchors classic-trade expiry; zero when unknown.
	NextCandleTime time.Time
	TimeframeSec   int
}

// Event is one observed signal: an immutable value handed to waiters.
type Event struct {
	Direction Direction
	Version   uint64
	Arrived   time.Time
	Meta      Meta
}
