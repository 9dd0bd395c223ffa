package asmm

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asmm-engine/internal/instrument"
	"asmm-engine/internal/quoting"
)

func tick(mid, volHint float64) quoting.Tick {
	return quoting.Tick{
		Timestamp:      time.Now(),
		Instrument:     instrument.BTC,
		Bid:            mid - 0.5,
		Ask:            mid + 0.5,
		VolatilityHint: volHint,
	}
}

func TestQuoteOrdering(t *testing.T) {
	q, err := New(DefaultParams())
	require.NoError(t, err)
	for _, inv := range []float64{-5, -1, 0, 1, 5} {
		for _, vol := range []float64{0, 0.01, 0.05, 0.2} {
			quote := q.Quote(tick(45005, vol), inv)
			assert.Less(t, quote.Bid, quote.Ask)
		}
	}
}

func TestSkewSign(t *testing.T) {
	q, err := New(DefaultParams())
	require.NoError(t, err)
	tk := tick(45005, 0.025)

	q1 := q.Quote(tk, -2)
	q2 := q.Quote(tk, 2)
	assert.Greater(t, q1.Mid(), q2.Mid())

	// finer-grained partials: increasing inventory monotonically lowers both sides
	prevBid, prevAsk := math.Inf(1), math.Inf(1)
	for _, inv := range []float64{-3, -1, 0, 1, 3} {
		quote := q.Quote(tk, inv)
		assert.Less(t, quote.Bid, prevBid)
		assert.Less(t, quote.Ask, prevAsk)
		prevBid, prevAsk = quote.Bid, quote.Ask
	}
}

func TestSpreadMonotoneInSigma(t *testing.T) {
	q, err := New(DefaultParams())
	require.NoError(t, err)
	tk := tick(45005, 0)

	prevSpread := -1.0
	for _, sigma := range []float64{0.01, 0.02, 0.05, 0.1, 0.2} {
		require.NoError(t, q.SetVolatility(sigma))
		quote := q.Quote(tk, 0)
		spread := quote.Ask - quote.Bid
		assert.Greater(t, spread, prevSpread)
		prevSpread = spread
	}
}

func TestScenarioA(t *testing.T) {
	q, err := New(Params{Gamma: 0.1, Sigma: 0.05, T: 60, Kappa: 1.5})
	require.NoError(t, err)
	quote := q.Quote(tick(45005, 0.025), 0)

	assert.Less(t, quote.Bid, 45005.0)
	assert.Less(t, 45005.0, quote.Ask)

	expectedSpread := 0.1*0.025*0.025*60 + (2/0.1)*math.Log(1+0.1/1.5)
	assert.InDelta(t, expectedSpread, quote.Ask-quote.Bid, 1e-9)
}

func TestScenarioB_ReservationShiftsWithInventory(t *testing.T) {
	q, err := New(Params{Gamma: 0.1, Sigma: 0.05, T: 60, Kappa: 1.5})
	require.NoError(t, err)
	tk := tick(45005, 0.025)

	qA := q.Quote(tk, 0)
	qB := q.Quote(tk, 2)

	expectedReservation := 45005 - 2*0.1*0.05*0.05*60
	assert.InDelta(t, 45004.97, expectedReservation, 1e-9)
	assert.InDelta(t, qA.Bid-0.03, qB.Bid, 1e-9)
	assert.InDelta(t, qA.Ask-0.03, qB.Ask, 1e-9)
}

func TestScenarioC_DoubleVolWidensSpread(t *testing.T) {
	q, err := New(Params{Gamma: 0.1, Sigma: 0.05, T: 60, Kappa: 1.5})
	require.NoError(t, err)

	qA := q.Quote(tick(45005, 0.025), 0)
	qC := q.Quote(tick(45005, 0.05), 0)
	assert.Greater(t, qC.Ask-qC.Bid, qA.Ask-qA.Bid)
}

func TestSetParamsRejectsNonPositive(t *testing.T) {
	q, err := New(DefaultParams())
	require.NoError(t, err)
	before := q.Params()
	err = q.SetParams(Params{Gamma: 0, Sigma: 0.05, T: 60, Kappa: 1.5})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, before, q.Params())
}

func TestQuoteBatchLengthMismatch(t *testing.T) {
	q, err := New(DefaultParams())
	require.NoError(t, err)
	_, err = q.QuoteBatch([]quoting.Tick{tick(100, 0)}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestQuoteBatchElementwise(t *testing.T) {
	q, err := New(DefaultParams())
	require.NoError(t, err)
	ticks := []quoting.Tick{tick(100, 0), tick(200, 0)}
	invs := []float64{0, 1}
	quotes, err := q.QuoteBatch(ticks, invs)
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, q.Quote(ticks[0], invs[0]), quotes[0])
	assert.Equal(t, q.Quote(ticks[1], invs[1]), quotes[1])
}

func TestZeroVolatilityHintFallsBackToConfigured(t *testing.T) {
	q, err := New(Params{Gamma: 0.1, Sigma: 0.05, T: 60, Kappa: 1.5})
	require.NoError(t, err)
	withHint := q.Quote(tick(45005, 0.05), 0)
	withoutHint := q.Quote(tick(45005, 0), 0)
	assert.Equal(t, withHint.Bid, withoutHint.Bid)
	assert.Equal(t, withHint.Ask, withoutHint.Ask)
}
