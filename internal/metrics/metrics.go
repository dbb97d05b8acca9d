// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	SignalsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signals_received_total",
			Help: "Signals accepted onto the bus",
		},
		[]string{"symbol", "timeframe"},
	)
	SignalsDroppedStale = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signals_dropped_stale_total",
			Help: "Signals dropped at ingest for exceeding the freshness window",
		},
	)
	SignalWaitDelays = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signal_wait_delays_total",
			Help: "Waits that exceeded their grace delay before a signal arrived",
		},
	)

	TradesPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trades_placed_total",
			Help: "Trades accepted by the venue",
		},
		[]string{"bot", "symbol"},
	)
	TradesSettled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trades_settled_total",
			Help: "Settled trades by outcome",
		},
		[]string{"bot", "outcome"},
	)
	TradesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trades_rejected_total",
			Help: "Placements refused by the venue or dropped before dispatch",
		},
		[]string{"bot", "reason"},
	)
	TradeSlotsUsed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trade_slots_used",
			Help: "Concurrent trades currently holding a slot",
		},
	)

	PayoutFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payout_fetches_total",
			Help: "Payout lookups by source",
		},
		[]string{"source"}, // cache | venue | error
	)

	BotsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bots_running",
			Help: "Bots currently in the running state",
		},
	)
)

// Register installs every engine metric plus the standard Go and process
// collectors onto the default registry. Call once at startup.
func Register() {
	prometheus.MustRegister(
		SignalsReceived,
		SignalsDroppedStale,
		SignalWaitDelays,
		TradesPlaced,
		TradesSettled,
		TradesRejected,
		TradeSlotsUsed,
		PayoutFetches,
		BotsRunning,
	)
	prometheus.MustRegister(collectors.NewGoCollector())
	prometheus.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}
