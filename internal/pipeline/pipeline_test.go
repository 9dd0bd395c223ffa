package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asmm-engine/internal/asmm"
	"asmm-engine/internal/backtest"
	"asmm-engine/internal/instrument"
	"asmm-engine/internal/latency"
	"asmm-engine/internal/marketdata"
	"asmm-engine/internal/pnl"
	"asmm-engine/internal/quoting"
	"asmm-engine/internal/risk"
	"asmm-engine/internal/telemetry"
	"asmm-engine/internal/transport"
	"asmm-engine/internal/volatility"
)

// fakeSource yields a fixed slice of ticks then reports transport.ErrClosed.
type fakeSource struct {
	ticks []quoting.Tick
	i     int
}

func (f *fakeSource) Next(ctx context.Context) (quoting.Tick, error) {
	if f.i >= len(f.ticks) {
		return quoting.Tick{}, transport.ErrClosed
	}
	t := f.ticks[f.i]
	f.i++
	return t, nil
}

func (f *fakeSource) Close() error { return nil }

func mkTick(mid float64) quoting.Tick {
	return quoting.Tick{
		Timestamp:  time.Now().UTC(),
		Instrument: instrument.BTC,
		Bid:        mid - 0.5,
		Ask:        mid + 0.5,
		BidQty:     1,
		AskQty:     1,
	}
}

func newTestDeps(t *testing.T, ticks []quoting.Tick) (*Pipeline, *fakeSource) {
	t.Helper()
	q, err := asmm.New(asmm.DefaultParams())
	require.NoError(t, err)
	sup, err := risk.New(risk.DefaultConfig())
	require.NoError(t, err)
	src := &fakeSource{ticks: ticks}

	p := New(DefaultConfig(), Deps{
		Source:  src,
		Quoter:  q,
		Vol:     volatility.New(volatility.DefaultConfig()),
		Risk:    sup,
		Tracker: pnl.New(),
		Latency: latency.NewRegistry(nil),
		History: marketdata.NewStore(),
		Sink:    telemetry.NoopSink{},
		Log:     nil,
	})
	return p, src
}

func TestPipelineRunsToCompletionOnSourceClose(t *testing.T) {
	ticks := make([]quoting.Tick, 0, 100)
	for i := 0; i < 100; i++ {
		ticks = append(ticks, mkTick(45000+float64(i)*0.01))
	}
	p, _ := newTestDeps(t, ticks)
	err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Running, p.State())
}

func TestPipelineHaltsOnKillFloor(t *testing.T) {
	q, err := asmm.New(asmm.DefaultParams())
	require.NoError(t, err)
	sup, err := risk.New(risk.Config{MaxInventory: 0.1, MaxSpreadMultiplier: 3.0, KillFloor: -1})
	require.NoError(t, err)

	tracker := pnl.New()
	// force a large realized loss directly so the very first quote tick halts.
	tracker.UpdateFill(quoting.Fill{Instrument: instrument.BTC, Side: quoting.Buy, Price: 100, Size: 1})
	tracker.UpdateFill(quoting.Fill{Instrument: instrument.BTC, Side: quoting.Sell, Price: 50, Size: 1})

	ticks := make([]quoting.Tick, 0, 20)
	for i := 0; i < 20; i++ {
		ticks = append(ticks, mkTick(45000))
	}
	src := &fakeSource{ticks: ticks}

	cfg := DefaultConfig()
	cfg.QuoteEveryK = 1
	p := New(cfg, Deps{
		Source:  src,
		Quoter:  q,
		Vol:     volatility.New(volatility.DefaultConfig()),
		Risk:    sup,
		Tracker: tracker,
		Latency: latency.NewRegistry(nil),
		Sink:    telemetry.NoopSink{},
	})

	err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Halted, p.State())
	assert.Less(t, src.i, len(ticks)) // loop broke before exhausting the source
}

func TestPipelineDropsInvalidTicksWithoutMutatingLedger(t *testing.T) {
	invalid := quoting.Tick{Instrument: instrument.BTC, Bid: 0, Ask: 0}
	p, _ := newTestDeps(t, []quoting.Tick{invalid})
	err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.deps.Tracker.Total())
}

func TestPipelineIgnoresUnknownInstrument(t *testing.T) {
	unknown := quoting.Tick{Instrument: instrument.UNKNOWN, Bid: 100, Ask: 101}
	p, _ := newTestDeps(t, []quoting.Tick{unknown})
	err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), p.quoteCount)
}

func TestPipelineRespectsContextCancellation(t *testing.T) {
	ticks := make([]quoting.Tick, 0, 5)
	for i := 0; i < 5; i++ {
		ticks = append(ticks, mkTick(45000))
	}
	p, _ := newTestDeps(t, ticks)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Run(ctx)
	require.NoError(t, err)
}

func TestPipelineSurvivesProtocolErrors(t *testing.T) {
	q, err := asmm.New(asmm.DefaultParams())
	require.NoError(t, err)
	sup, err := risk.New(risk.DefaultConfig())
	require.NoError(t, err)

	src := &erroringSource{errs: []error{transport.ErrProtocol, transport.ErrProtocol}, tick: mkTick(45000)}
	p := New(DefaultConfig(), Deps{
		Source:  src,
		Quoter:  q,
		Vol:     volatility.New(volatility.DefaultConfig()),
		Risk:    sup,
		Tracker: pnl.New(),
		Latency: latency.NewRegistry(nil),
		Sink:    telemetry.NoopSink{},
	})
	err = p.Run(context.Background())
	require.NoError(t, err)
}

func TestPipelineUsesInjectedMatcherOverCompetitiveModel(t *testing.T) {
	q, err := asmm.New(asmm.DefaultParams())
	require.NoError(t, err)
	sup, err := risk.New(risk.DefaultConfig())
	require.NoError(t, err)

	ticks := make([]quoting.Tick, 0, 10)
	for i := 0; i < 10; i++ {
		ticks = append(ticks, mkTick(45000))
	}
	src := &fakeSource{ticks: ticks}

	cfg := DefaultConfig()
	cfg.QuoteEveryK = 1
	// base=1 makes every draw fill regardless of price aggressiveness, unlike
	// the competitive-quote model this would otherwise use.
	p := New(cfg, Deps{
		Source:  src,
		Quoter:  q,
		Vol:     volatility.New(volatility.DefaultConfig()),
		Risk:    sup,
		Tracker: pnl.New(),
		Latency: latency.NewRegistry(nil),
		Matcher: backtest.NewFillModel(1.0, 0, 1),
		Sink:    telemetry.NoopSink{},
	})

	err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(len(ticks))*2, p.fillCount)
}

// erroringSource returns each error in errs first (as a ProtocolError, which
// the pipeline should tolerate and keep pulling), then one valid tick, then
// closes.
type erroringSource struct {
	errs []error
	i    int
	tick quoting.Tick
	sent bool
}

func (e *erroringSource) Next(ctx context.Context) (quoting.Tick, error) {
	if e.i < len(e.errs) {
		err := e.errs[e.i]
		e.i++
		return quoting.Tick{}, err
	}
	if !e.sent {
		e.sent = true
		return e.tick, nil
	}
	return quoting.Tick{}, errors.New("done") // non-sentinel error, breaks loop
}

func (e *erroringSource) Close() error { return nil }
