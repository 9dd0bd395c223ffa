package telemetry

import "context"

// Sink is the persistence boundary the pipeline drives. The Enqueue
// methods must return immediately without blocking the hot path; a Sink
// implementation owns its own background flushing. StartSession,
// EndSession and Close are called once per run, outside the hot path, and
// may block briefly.
type Sink interface {
	EnqueueTick(MarketTickRecord)
	EnqueueQuote(QuoteRecord)
	EnqueueStats(TradingStatsRecord)
	StartSession(SessionRecord) error
	EndSession(ctx context.Context, simulationID string, status SessionStatus, durationSeconds float64, finalStats string) error
	Close(ctx context.Context) error
}

// NoopSink discards every record. It is used by tests and by callers that
// want the pipeline's ledger/telemetry ordering guarantees exercised
// without a live ClickHouse instance: ledger state is identical whether
// persistence is disabled or failing.
type NoopSink struct{}

func (NoopSink) EnqueueTick(MarketTickRecord)   {}
func (NoopSink) EnqueueQuote(QuoteRecord)       {}
func (NoopSink) EnqueueStats(TradingStatsRecord) {}
func (NoopSink) StartSession(SessionRecord) error { return nil }
func (NoopSink) EndSession(context.Context, string, SessionStatus, float64, string) error {
	return nil
}
func (NoopSink) Close(context.Context) error { return nil }
