package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"asmm-engine/internal/config"
	"asmm-engine/internal/logging"
	"asmm-engine/metrics"
)

const (
	tableTicks    = "market_ticks"
	tableQuotes   = "quotes"
	tableStats    = "trading_stats"
	tableSessions = "simulation_sessions"
)

// queueDepth bounds each table's pending-row channel. On overflow the
// oldest queued row is dropped rather than blocking the caller.
const queueDepth = 4096

// ClickHouseSink batches rows per table and flushes them through
// clickhouse-go/v2's PrepareBatch. Each table gets its own bounded channel
// and its own background flusher goroutine so a slow table never starves
// the others.
type ClickHouseSink struct {
	conn      driver.Conn
	batchSize int
	log       *logging.Logger

	ticks  chan MarketTickRecord
	quotes chan QuoteRecord
	stats  chan TradingStatsRecord

	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]SessionRecord
}

// NewClickHouseSink dials ClickHouse, verifies connectivity, and starts the
// per-table background flushers. batchSize is the configured flush
// threshold (default 50).
func NewClickHouseSink(cfg config.ClickHouseConfig, batchSize int, log *logging.Logger) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		Compression:     &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := conn.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	if batchSize <= 0 {
		batchSize = 50
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &ClickHouseSink{
		conn:      conn,
		batchSize: batchSize,
		log:       log,
		ticks:     make(chan MarketTickRecord, queueDepth),
		quotes:    make(chan QuoteRecord, queueDepth),
		stats:     make(chan TradingStatsRecord, queueDepth),
		cancel:    cancel,
		sessions:  make(map[string]SessionRecord),
	}

	s.wg.Add(3)
	go s.flushTicks(ctx)
	go s.flushQuotes(ctx)
	go s.flushStats(ctx)

	return s, nil
}

func dropOldestAndSend[T any](ch chan T, rec T) {
	select {
	case ch <- rec:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- rec:
	default:
	}
}

// EnqueueTick queues a market_ticks row, dropping the oldest queued row on
// overflow.
func (s *ClickHouseSink) EnqueueTick(r MarketTickRecord) { dropOldestAndSend(s.ticks, r) }

// EnqueueQuote queues a quotes row.
func (s *ClickHouseSink) EnqueueQuote(r QuoteRecord) { dropOldestAndSend(s.quotes, r) }

// EnqueueStats queues a trading_stats row.
func (s *ClickHouseSink) EnqueueStats(r TradingStatsRecord) { dropOldestAndSend(s.stats, r) }

// StartSession inserts the initial simulation_sessions row with
// status="running", blocking briefly since this happens once at startup,
// not on the hot path.
func (s *ClickHouseSink) StartSession(r SessionRecord) error {
	r.Status = SessionRunning
	s.mu.Lock()
	s.sessions[r.SimulationID] = r
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeSession(ctx, r)
}

// EndSession updates the session row's terminal status. Like StartSession
// this is a rare, non-hot-path call.
func (s *ClickHouseSink) EndSession(ctx context.Context, simulationID string, status SessionStatus, durationSeconds float64, finalStats string) error {
	s.mu.Lock()
	r, ok := s.sessions[simulationID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("telemetry: unknown simulation %q", simulationID)
	}
	r.Status = status
	r.EndTime = time.Now().UTC()
	r.DurationSeconds = durationSeconds
	r.FinalStats = finalStats
	return s.writeSession(ctx, r)
}

func (s *ClickHouseSink) writeSession(ctx context.Context, r SessionRecord) error {
	err := s.conn.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %s (simulation_id, start_time, end_time, duration_seconds, symbol, algorithm_params, final_stats, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tableSessions),
		r.SimulationID, r.StartTime, r.EndTime, r.DurationSeconds, r.Symbol, r.AlgorithmParams, r.FinalStats, string(r.Status),
	)
	if err != nil {
		metrics.RecordPersistenceFailure(tableSessions)
		if s.log != nil {
			s.log.LogError("telemetry: write simulation_sessions", err)
		}
		return err
	}
	metrics.RecordPersistenceWrite(tableSessions, 1)
	return nil
}

func (s *ClickHouseSink) flushTicks(ctx context.Context) {
	defer s.wg.Done()
	buf := make([]MarketTickRecord, 0, s.batchSize)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.sendTicks(context.Background(), buf)
			return
		case r := <-s.ticks:
			buf = append(buf, r)
			if len(buf) >= s.batchSize {
				s.sendTicks(ctx, buf)
				buf = buf[:0]
			}
		case <-ticker.C:
			if len(buf) > 0 {
				s.sendTicks(ctx, buf)
				buf = buf[:0]
			}
		}
	}
}

func (s *ClickHouseSink) sendTicks(ctx context.Context, rows []MarketTickRecord) {
	if len(rows) == 0 {
		return
	}
	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf(
		`INSERT INTO %s (time, symbol, bid, bid_size, ask, ask_size, spread, mid_price, simulation_id)`, tableTicks))
	if s.appendBatchErr(tableTicks, err) {
		return
	}
	for _, r := range rows {
		if err := batch.Append(r.Time, r.Symbol, r.Bid, r.BidSize, r.Ask, r.AskSize, r.Spread, r.MidPrice, r.SimulationID); err != nil {
			s.fail(tableTicks, err)
			return
		}
	}
	s.send(tableTicks, batch, len(rows))
}

func (s *ClickHouseSink) flushQuotes(ctx context.Context) {
	defer s.wg.Done()
	buf := make([]QuoteRecord, 0, s.batchSize)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.sendQuotes(context.Background(), buf)
			return
		case r := <-s.quotes:
			buf = append(buf, r)
			if len(buf) >= s.batchSize {
				s.sendQuotes(ctx, buf)
				buf = buf[:0]
			}
		case <-ticker.C:
			if len(buf) > 0 {
				s.sendQuotes(ctx, buf)
				buf = buf[:0]
			}
		}
	}
}

func (s *ClickHouseSink) sendQuotes(ctx context.Context, rows []QuoteRecord) {
	if len(rows) == 0 {
		return
	}
	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf(
		`INSERT INTO %s (time, symbol, our_bid, our_ask, our_spread, spread_bps, market_mid, position, avg_entry_price, volatility, simulation_id)`, tableQuotes))
	if s.appendBatchErr(tableQuotes, err) {
		return
	}
	for _, r := range rows {
		if err := batch.Append(r.Time, r.Symbol, r.OurBid, r.OurAsk, r.OurSpread, r.SpreadBps, r.MarketMid, r.Position, r.AvgEntryPrice, r.Volatility, r.SimulationID); err != nil {
			s.fail(tableQuotes, err)
			return
		}
	}
	s.send(tableQuotes, batch, len(rows))
}

func (s *ClickHouseSink) flushStats(ctx context.Context) {
	defer s.wg.Done()
	buf := make([]TradingStatsRecord, 0, s.batchSize)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.sendStats(context.Background(), buf)
			return
		case r := <-s.stats:
			buf = append(buf, r)
			if len(buf) >= s.batchSize {
				s.sendStats(ctx, buf)
				buf = buf[:0]
			}
		case <-ticker.C:
			if len(buf) > 0 {
				s.sendStats(ctx, buf)
				buf = buf[:0]
			}
		}
	}
}

func (s *ClickHouseSink) sendStats(ctx context.Context, rows []TradingStatsRecord) {
	if len(rows) == 0 {
		return
	}
	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf(
		`INSERT INTO %s (time, symbol, position, avg_entry_price, realized_pnl, unrealized_pnl, total_pnl, fill_count, quote_count, fill_rate, vwap, window_volatility, simulation_id)`, tableStats))
	if s.appendBatchErr(tableStats, err) {
		return
	}
	for _, r := range rows {
		if err := batch.Append(r.Time, r.Symbol, r.Position, r.AvgEntryPrice, r.RealizedPnL, r.UnrealizedPnL, r.TotalPnL, r.FillCount, r.QuoteCount, r.FillRate, r.VWAP, r.WindowVolatility, r.SimulationID); err != nil {
			s.fail(tableStats, err)
			return
		}
	}
	s.send(tableStats, batch, len(rows))
}

func (s *ClickHouseSink) appendBatchErr(table string, err error) bool {
	if err != nil {
		s.fail(table, err)
		return true
	}
	return false
}

func (s *ClickHouseSink) send(table string, batch driver.Batch, n int) {
	if err := batch.Send(); err != nil {
		s.fail(table, err)
		return
	}
	metrics.RecordPersistenceWrite(table, n)
}

func (s *ClickHouseSink) fail(table string, err error) {
	metrics.RecordPersistenceFailure(table)
	if s.log != nil {
		s.log.LogError("telemetry: flush "+table, err)
	}
}

// Close cancels the background flushers, waits for their final drain, and
// closes the underlying connection.
func (s *ClickHouseSink) Close(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.New("telemetry: close timed out draining flushers")
	}
	return s.conn.Close()
}

// EncodeJSON is a small helper for encoding AlgorithmParams/FinalStats as
// opaque JSON strings for storage.
func EncodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
