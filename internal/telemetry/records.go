// Package telemetry batches pipeline events into a time-series sink: a
// background worker drains a bounded queue and flushes batched inserts per
// table, at a size threshold, once a second, or on shutdown. The hot path only ever
// enqueues; it never blocks on or waits for the write.
package telemetry

import "time"

// MarketTickRecord is one row of the market_ticks table.
type MarketTickRecord struct {
	Time         time.Time
	Symbol       string
	Bid          float64
	BidSize      float64
	Ask          float64
	AskSize      float64
	Spread       float64
	MidPrice     float64
	SimulationID string
}

// QuoteRecord is one row of the quotes table.
type QuoteRecord struct {
	Time          time.Time
	Symbol        string
	OurBid        float64
	OurAsk        float64
	OurSpread     float64
	SpreadBps     float64
	MarketMid     float64
	Position      float64
	AvgEntryPrice float64
	Volatility    float64
	SimulationID  string
}

// TradingStatsRecord is one row of the trading_stats table. VWAP and
// WindowVolatility are computed over a bounded rolling tick history,
// independent of the online estimator driving the quoter.
type TradingStatsRecord struct {
	Time             time.Time
	Symbol           string
	Position         float64
	AvgEntryPrice    float64
	RealizedPnL      float64
	UnrealizedPnL    float64
	TotalPnL         float64
	FillCount        int64
	QuoteCount       int64
	FillRate         float64
	VWAP             float64
	WindowVolatility float64
	SimulationID     string
}

// SessionStatus is the lifecycle state of a simulation_sessions row.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionHalted    SessionStatus = "halted"
)

// SessionRecord is one row of the simulation_sessions table. AlgorithmParams
// and FinalStats are stored as opaque JSON-encoded strings.
type SessionRecord struct {
	SimulationID    string
	StartTime       time.Time
	EndTime         time.Time
	DurationSeconds float64
	Symbol          string
	AlgorithmParams string
	FinalStats      string
	Status          SessionStatus
}
