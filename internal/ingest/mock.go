package ingest

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/qqdanya/intradevor-sub000/internal/metrics"
	"github.com/qqdanya/intradevor-sub000/internal/signal"
	"github.com/qqdanya/intradevor-sub000/pkg/timeframe"
)

// Mock pushes random signals straight onto the bus. It stands in for the
// producer during demo runs and local development.
type Mock struct {
	Bus        *signal.Bus
	Symbols    []string
	Timeframes []string
	Indicators []string
	// Interval paces pushes; default 5s.
	Interval time.Duration
	Log      zerolog.Logger
}

func (m *Mock) defaults() {
	if len(m.Symbols) == 0 {
		m.Symbols = []string{"EURUSD", "GBPUSD", "USDJPY", "AUDUSD", "BTCUSDT"}
	}
	if len(m.Timeframes) == 0 {
		m.Timeframes = []string{"M1", "M5", "M15"}
	}
	if len(m.Indicators) == 0 {
		m.Indicators = []string{"ConnorsRSI", "SuperArrows", "Randomchik"}
	}
	if m.Interval <= 0 {
		m.Interval = 5 * time.Second
	}
}

// Run emits signals until ctx ends.
func (m *Mock) Run(ctx context.Context) error {
	m.defaults()
	log := m.Log.With().Str("component", "mock-feed").Logger()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	log.Info().Dur("interval", m.Interval).Msg("mock signal feed running")

	for {
		select {
		case <-ticker.C:
			m.emit(rng)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Mock) emit(rng *rand.Rand) {
	symbol := m.Symbols[rng.Intn(len(m.Symbols))]
	tf := m.Timeframes[rng.Intn(len(m.Timeframes))]
	indicator := m.Indicators[rng.Intn(len(m.Indicators))]
	dir := signal.Up
	if rng.Intn(2) == 1 {
		dir = signal.Down
	}

	now := time.Now()
	candle := now.Truncate(timeframe.Duration(tf))
	next := candle.Add(timeframe.Duration(tf))
	m.Bus.Push(symbol, tf, dir, indicator, candle, next)
	metrics.SignalsReceived.WithLabelValues(symbol, tf).Inc()
}
