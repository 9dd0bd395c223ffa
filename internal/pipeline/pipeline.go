// Package pipeline drives the per-tick state machine: ingest tick, update
// the volatility estimator, quote every Kth tick, apply risk inflation and
// the kill-switch, sample a simulated fill, mark P&L, and emit telemetry —
// all on a single cooperative loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"asmm-engine/internal/asmm"
	"asmm-engine/internal/latency"
	"asmm-engine/internal/logging"
	"asmm-engine/internal/marketdata"
	"asmm-engine/internal/pnl"
	"asmm-engine/internal/quoting"
	"asmm-engine/internal/risk"
	"asmm-engine/internal/telemetry"
	"asmm-engine/internal/transport"
	"asmm-engine/internal/volatility"
	"asmm-engine/metrics"
)

// State is the pipeline's lifecycle state.
type State int

const (
	Running State = iota
	Halted
)

func (s State) String() string {
	if s == Halted {
		return "halted"
	}
	return "running"
}

// Config carries the pipeline's cadence and fill-sampling tuning.
type Config struct {
	Symbol               string
	QuoteEveryK          int
	TelemetryEveryK      int
	StatusEveryK         int
	CompetitiveTolerance float64 // epsilon, default 1e-3
	BaseFillProbability  float64 // p, default 0.05
	MakerFeeBps          float64 // signed; negative denotes a rebate
	HistoryWindow        int     // ticks considered for VWAP/windowed volatility
	Seed                 int64
}

// DefaultConfig returns the pipeline's built-in configuration defaults.
func DefaultConfig() Config {
	return Config{
		Symbol:               "BTCUSDT",
		QuoteEveryK:          10,
		TelemetryEveryK:      10,
		StatusEveryK:         100,
		CompetitiveTolerance: 1e-3,
		BaseFillProbability:  0.05,
		MakerFeeBps:          -1.0,
		HistoryWindow:        100,
		Seed:                 1,
	}
}

// FillProber draws an independent per-side fill decision from a quoted
// price and the prevailing market price. backtest.FillModel implements
// this; when supplied it replaces the pipeline's own competitive-quote
// sampling in sampleFill.
type FillProber interface {
	Draws(ourPrice, marketPrice float64, side quoting.Side) bool
}

// Deps groups the pipeline's owned collaborators, all constructed by the
// caller so the pipeline itself never wires up its own dependencies.
type Deps struct {
	Source  transport.Source
	Quoter  *asmm.Quoter
	Vol     *volatility.EWMA
	Risk    *risk.Supervisor
	Tracker *pnl.Tracker
	Latency *latency.Registry
	History *marketdata.Store
	// Matcher, if set, replaces the built-in competitive-quote fill
	// sampling with two independent aggressiveness-based draws (one per
	// side). Used by the backtest binary; live runs leave this nil.
	Matcher FillProber
	Sink    telemetry.Sink
	Log     *logging.Logger
}

// Pipeline owns the quoter, risk supervisor, ledger/P&L tracker, volatility
// estimator, and latency registry exclusively; no other goroutine touches
// this state.
type Pipeline struct {
	cfg  Config
	deps Deps
	rng  *rand.Rand

	state State
	count uint64

	quoteCount uint64
	fillCount  uint64

	simulationID string
	startedAt    time.Time
	orderSeq     uint64

	// paramUpdates/riskUpdates carry config hot-reload changes from the
	// fsnotify watcher goroutine into the pipeline's single-writer loop.
	// Buffered at 1: a reload that arrives before the previous one is
	// applied simply supersedes it.
	paramUpdates chan asmm.Params
	riskUpdates  chan risk.Config
}

// New constructs a Pipeline in the Running state.
func New(cfg Config, deps Deps) *Pipeline {
	return &Pipeline{
		cfg:          cfg,
		deps:         deps,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
		state:        Running,
		simulationID: uuid.NewString(),
		paramUpdates: make(chan asmm.Params, 1),
		riskUpdates:  make(chan risk.Config, 1),
	}
}

// QueueParamUpdate submits new A-S parameters to be applied at the start of
// the next tick. Safe to call from any goroutine (e.g. a config Watcher).
func (p *Pipeline) QueueParamUpdate(params asmm.Params) {
	select {
	case p.paramUpdates <- params:
	default:
		select {
		case <-p.paramUpdates:
		default:
		}
		p.paramUpdates <- params
	}
}

// QueueRiskUpdate submits new risk supervisor tuning to be applied at the
// start of the next tick. Safe to call from any goroutine.
func (p *Pipeline) QueueRiskUpdate(cfg risk.Config) {
	select {
	case p.riskUpdates <- cfg:
	default:
		select {
		case <-p.riskUpdates:
		default:
		}
		p.riskUpdates <- cfg
	}
}

func (p *Pipeline) applyPendingUpdates() {
	select {
	case params := <-p.paramUpdates:
		if err := p.deps.Quoter.SetParams(params); err != nil && p.deps.Log != nil {
			p.deps.Log.LogError("pipeline: apply reloaded strategy params", err)
		}
	default:
	}
	select {
	case cfg := <-p.riskUpdates:
		if err := p.deps.Risk.SetConfig(cfg); err != nil && p.deps.Log != nil {
			p.deps.Log.LogError("pipeline: apply reloaded risk config", err)
		}
	default:
	}
}

// State returns the pipeline's current lifecycle state.
func (p *Pipeline) State() State { return p.state }

// SimulationID returns the UUID assigned to this run, used to tag every
// telemetry row and the simulation_sessions record.
func (p *Pipeline) SimulationID() string { return p.simulationID }

// Run drives the event loop until the source closes, the context is
// cancelled, or the kill-switch fires. It always returns nil on a clean
// halt/completion; only construction-time failures propagate to the
// process boundary elsewhere.
func (p *Pipeline) Run(ctx context.Context) error {
	p.startedAt = time.Now().UTC()
	if err := p.deps.Sink.StartSession(telemetry.SessionRecord{
		SimulationID:    p.simulationID,
		StartTime:       p.startedAt,
		Symbol:          p.cfg.Symbol,
		AlgorithmParams: telemetry.EncodeJSON(p.deps.Quoter.Params()),
		Status:          telemetry.SessionRunning,
	}); err != nil && p.deps.Log != nil {
		p.deps.Log.LogError("pipeline: start session", err)
	}

	status := telemetry.SessionCompleted
	for {
		p.applyPendingUpdates()

		tick, err := p.deps.Source.Next(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			if errors.Is(err, transport.ErrProtocol) {
				metrics.IncrementTicksDropped("protocol_error")
				if p.deps.Log != nil {
					p.deps.Log.LogError("pipeline: protocol error", err)
				}
				continue
			}
			if p.deps.Log != nil {
				p.deps.Log.LogError("pipeline: transport error", err)
			}
			break
		}

		if p.state == Halted {
			break
		}

		if halted := p.processTick(tick); halted {
			status = telemetry.SessionHalted
			break
		}
	}

	duration := time.Since(p.startedAt).Seconds()
	summary := map[string]any{
		"realized":    p.deps.Tracker.Realized(),
		"unrealized":  p.deps.Tracker.Unrealized(),
		"fill_count":  p.fillCount,
		"quote_count": p.quoteCount,
	}
	endCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.deps.Sink.EndSession(endCtx, p.simulationID, status, duration, telemetry.EncodeJSON(summary)); err != nil && p.deps.Log != nil {
		p.deps.Log.LogError("pipeline: end session", err)
	}
	if err := p.deps.Sink.Close(endCtx); err != nil && p.deps.Log != nil {
		p.deps.Log.LogError("pipeline: close sink", err)
	}
	return nil
}

// processTick runs one full pass of the per-tick sequence and reports
// whether the kill-switch fired.
func (p *Pipeline) processTick(tick quoting.Tick) bool {
	scope := p.deps.Latency.Start("pipeline_tick")
	defer scope.Stop()

	if !tick.Valid() {
		metrics.IncrementTicksDropped("invalid_tick")
		return false
	}
	if !tick.Instrument.Valid() {
		metrics.IncrementTicksDropped("unknown_instrument")
		return false
	}

	p.count++
	mid := tick.Mid()

	p.deps.Vol.Update(mid)
	_ = p.deps.Quoter.SetVolatility(p.deps.Vol.Current())

	if p.deps.History != nil {
		p.deps.History.Add(tick)
	}

	if p.count%uint64(p.cfg.QuoteEveryK) == 0 {
		if p.emitQuote(tick, mid) {
			return true
		}
	}

	if p.count%uint64(p.cfg.TelemetryEveryK) == 0 {
		p.emitTelemetry(tick, mid)
	}

	if p.cfg.StatusEveryK > 0 && p.count%uint64(p.cfg.StatusEveryK) == 0 && p.deps.Log != nil {
		p.deps.Log.Info("status",
			zap.Uint64("ticks", p.count),
			zap.Uint64("quotes", p.quoteCount),
			zap.Uint64("fills", p.fillCount),
			zap.Float64("total_pnl", p.deps.Tracker.Total()),
		)
	}

	return false
}

func (p *Pipeline) emitQuote(tick quoting.Tick, mid float64) (halted bool) {
	position := p.deps.Tracker.Position(tick.Instrument)
	quote := p.deps.Quoter.Quote(tick, position.Qty)

	if p.deps.Risk.ShouldHalt(p.deps.Tracker.Total()) {
		p.state = Halted
		metrics.KillSwitchTriggered.Inc()
		if p.deps.Log != nil {
			p.deps.Log.LogHalt(p.cfg.Symbol, p.deps.Tracker.Total(), p.deps.Risk.KillFloor())
		}
		return true
	}

	base := quote
	p.deps.Risk.InflateForInventory(&quote, position.Qty)
	p.orderSeq++
	quote.OrderID = fmt.Sprintf("%s-%d", p.cfg.Symbol, p.orderSeq)
	p.quoteCount++

	metrics.IncrementQuotesGenerated("bid")
	metrics.IncrementQuotesGenerated("ask")
	if p.deps.Log != nil {
		p.deps.Log.LogQuote(p.cfg.Symbol, quote.Bid, quote.Ask, quote.SpreadBps())
	}

	p.sampleFill(tick, quote)

	p.deps.Tracker.UpdateMark(tick.Instrument, mid)

	reservation := p.deps.Quoter.ReservationPrice(mid, position.Qty)
	metrics.UpdateMarketMetrics(mid, p.deps.Vol.Current(), position.Qty)
	metrics.UpdateStrategyMetrics(reservation, quote.SpreadBps()/2, spreadMultiplier(quote, base))
	metrics.UpdatePnLMetrics(p.deps.Tracker.Realized(), p.deps.Tracker.Unrealized())

	p.deps.Sink.EnqueueQuote(telemetry.QuoteRecord{
		Time:          tick.Timestamp,
		Symbol:        p.cfg.Symbol,
		OurBid:        quote.Bid,
		OurAsk:        quote.Ask,
		OurSpread:     quote.Ask - quote.Bid,
		SpreadBps:     quote.SpreadBps(),
		MarketMid:     mid,
		Position:      position.Qty,
		AvgEntryPrice: position.Avg,
		Volatility:    p.deps.Vol.Current(),
		SimulationID:  p.simulationID,
	})

	return false
}

// sampleFill decides whether either side of quote fills against tick. With
// no Matcher configured it uses the competitive-quote model: a single
// uniform draw is checked against disjoint tail regions on each side, not
// two independent draws. With a Matcher configured (the backtest binary)
// it instead draws one independent aggressiveness-based sample per side.
func (p *Pipeline) sampleFill(tick quoting.Tick, quote quoting.Quote) {
	if p.deps.Matcher != nil {
		if p.deps.Matcher.Draws(quote.Bid, tick.Bid, quoting.Buy) {
			p.recordFill(tick, quote, quoting.Buy, quote.Bid, quote.BidSize)
		}
		if p.deps.Matcher.Draws(quote.Ask, tick.Ask, quoting.Sell) {
			p.recordFill(tick, quote, quoting.Sell, quote.Ask, quote.AskSize)
		}
		return
	}

	eps := p.cfg.CompetitiveTolerance
	bidCompetitive := tick.Bid > 0 && math.Abs(quote.Bid-tick.Bid)/tick.Bid < eps
	askCompetitive := tick.Ask > 0 && math.Abs(quote.Ask-tick.Ask)/tick.Ask < eps

	u := p.rng.Float64()
	prob := p.cfg.BaseFillProbability

	if bidCompetitive && u < prob {
		p.recordFill(tick, quote, quoting.Buy, quote.Bid, quote.BidSize)
	}
	if askCompetitive && u > 1-prob {
		p.recordFill(tick, quote, quoting.Sell, quote.Ask, quote.AskSize)
	}
}

func (p *Pipeline) recordFill(tick quoting.Tick, quote quoting.Quote, side quoting.Side, price, size float64) {
	fee := price * size * p.cfg.MakerFeeBps / 10000
	fill := quoting.Fill{
		Timestamp:  tick.Timestamp,
		Instrument: tick.Instrument,
		Side:       side,
		Price:      price,
		Size:       size,
		OrderID:    quote.OrderID,
		Fee:        fee,
	}
	p.deps.Tracker.UpdateFill(fill)
	p.fillCount++
	metrics.IncrementFills(side.String())
	if p.deps.Log != nil {
		p.deps.Log.LogFill(p.cfg.Symbol, side.String(), price, size, fee)
	}
}

func (p *Pipeline) emitTelemetry(tick quoting.Tick, mid float64) {
	position := p.deps.Tracker.Position(tick.Instrument)

	p.deps.Sink.EnqueueTick(telemetry.MarketTickRecord{
		Time:         tick.Timestamp,
		Symbol:       p.cfg.Symbol,
		Bid:          tick.Bid,
		BidSize:      tick.BidQty,
		Ask:          tick.Ask,
		AskSize:      tick.AskQty,
		Spread:       tick.Ask - tick.Bid,
		MidPrice:     mid,
		SimulationID: p.simulationID,
	})

	total := p.deps.Tracker.Total()
	fillRate := 0.0
	if p.quoteCount > 0 {
		fillRate = float64(p.fillCount) / float64(p.quoteCount)
	}
	var vwap, windowVol float64
	if p.deps.History != nil {
		vwap = p.deps.History.VWAP(tick.Instrument, p.cfg.HistoryWindow)
		windowVol = p.deps.History.WindowVolatility(tick.Instrument, p.cfg.HistoryWindow, volatility.SecondsPerYear)
	}
	p.deps.Sink.EnqueueStats(telemetry.TradingStatsRecord{
		Time:             tick.Timestamp,
		Symbol:           p.cfg.Symbol,
		Position:         position.Qty,
		AvgEntryPrice:    position.Avg,
		RealizedPnL:      p.deps.Tracker.Realized(),
		UnrealizedPnL:    p.deps.Tracker.Unrealized(),
		TotalPnL:         total,
		FillCount:        int64(p.fillCount),
		QuoteCount:       int64(p.quoteCount),
		FillRate:         fillRate,
		VWAP:             vwap,
		WindowVolatility: windowVol,
		SimulationID:     p.simulationID,
	})
}

func spreadMultiplier(inflated, base quoting.Quote) float64 {
	raw := base.Ask - base.Bid
	if raw <= 0 {
		return 1
	}
	return (inflated.Ask - inflated.Bid) / raw
}

