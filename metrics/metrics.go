// Package metrics registers and exposes the process's Prometheus metrics:
// gauges and counters for market state, strategy output, and P&L.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Market state.
	MidPrice          = promauto.NewGauge(prometheus.GaugeOpts{Name: "asmm_mid_price", Help: "Current mid price of the quoted instrument."})
	VolatilityCurrent = promauto.NewGauge(prometheus.GaugeOpts{Name: "asmm_volatility_current", Help: "Current annualised volatility estimate."})
	InventoryNet      = promauto.NewGauge(prometheus.GaugeOpts{Name: "asmm_inventory_net", Help: "Current signed inventory."})

	// Strategy state.
	ReservationPrice = promauto.NewGauge(prometheus.GaugeOpts{Name: "asmm_reservation_price", Help: "Current A-S reservation price."})
	HalfSpreadBps    = promauto.NewGauge(prometheus.GaugeOpts{Name: "asmm_half_spread_bps", Help: "Current half-spread in basis points."})
	SpreadMultiplier = promauto.NewGauge(prometheus.GaugeOpts{Name: "asmm_spread_multiplier", Help: "Current inventory-driven spread inflation multiplier."})

	// Fills and quotes.
	QuotesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{Name: "asmm_quotes_generated_total", Help: "Quotes generated, by side."}, []string{"side"})
	Fills           = promauto.NewCounterVec(prometheus.CounterOpts{Name: "asmm_fills_total", Help: "Simulated fills, by side."}, []string{"side"})
	TicksDropped    = promauto.NewCounterVec(prometheus.CounterOpts{Name: "asmm_ticks_dropped_total", Help: "Ticks dropped, by reason."}, []string{"reason"})

	// P&L.
	RealizedPnL   = promauto.NewGauge(prometheus.GaugeOpts{Name: "asmm_realized_pnl", Help: "Total realized P&L across instruments."})
	UnrealizedPnL = promauto.NewGauge(prometheus.GaugeOpts{Name: "asmm_unrealized_pnl", Help: "Total unrealized P&L across instruments."})
	TotalPnL      = promauto.NewGauge(prometheus.GaugeOpts{Name: "asmm_total_pnl", Help: "Realized + unrealized P&L."})

	// Risk.
	KillSwitchTriggered = promauto.NewCounter(prometheus.CounterOpts{Name: "asmm_kill_switch_triggered_total", Help: "Number of times the kill-switch has halted quoting."})

	// Persistence.
	PersistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "asmm_persistence_failures_total", Help: "Best-effort persistence write failures, by table."}, []string{"table"})
	PersistenceWrites   = promauto.NewCounterVec(prometheus.CounterOpts{Name: "asmm_persistence_writes_total", Help: "Rows flushed to the persistence sink, by table."}, []string{"table"})

	// Latency, mirrored from the internal ring buffers for external
	// percentile queries.
	OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "asmm_operation_latency_seconds",
		Help:    "Latency of instrumented operations.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 2, 20),
	}, []string{"operation"})
)

// UpdateMarketMetrics sets the market-level gauges in one call.
func UpdateMarketMetrics(mid, volatility, inventory float64) {
	MidPrice.Set(mid)
	VolatilityCurrent.Set(volatility)
	InventoryNet.Set(inventory)
}

// UpdateStrategyMetrics sets the strategy-level gauges in one call.
func UpdateStrategyMetrics(reservationPrice, halfSpreadBps, spreadMultiplier float64) {
	ReservationPrice.Set(reservationPrice)
	HalfSpreadBps.Set(halfSpreadBps)
	SpreadMultiplier.Set(spreadMultiplier)
}

// UpdatePnLMetrics sets the P&L gauges in one call.
func UpdatePnLMetrics(realized, unrealized float64) {
	RealizedPnL.Set(realized)
	UnrealizedPnL.Set(unrealized)
	TotalPnL.Set(realized + unrealized)
}

// IncrementQuotesGenerated increments the per-side quote counter.
func IncrementQuotesGenerated(side string) { QuotesGenerated.WithLabelValues(side).Inc() }

// IncrementFills increments the per-side fill counter.
func IncrementFills(side string) { Fills.WithLabelValues(side).Inc() }

// IncrementTicksDropped increments the drop counter for a reason
// (e.g. "invalid_tick", "unknown_instrument").
func IncrementTicksDropped(reason string) { TicksDropped.WithLabelValues(reason).Inc() }

// RecordPersistenceFailure increments the failure counter for a table.
func RecordPersistenceFailure(table string) { PersistenceFailures.WithLabelValues(table).Inc() }

// RecordPersistenceWrite adds n rows to the write counter for a table.
func RecordPersistenceWrite(table string, n int) { PersistenceWrites.WithLabelValues(table).Add(float64(n)) }

// ObserveOperationLatency records d against the named operation's
// histogram, mirroring internal/latency.Registry's ring for external
// scraping.
func ObserveOperationLatency(operation string, d time.Duration) {
	OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
}

// StartServer serves the /metrics endpoint on addr in the background.
func StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}
