package pnl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"asmm-engine/internal/instrument"
	"asmm-engine/internal/quoting"
)

func mkFill(inst instrument.Instrument, side quoting.Side, price, size float64) quoting.Fill {
	return quoting.Fill{Timestamp: time.Now(), Instrument: inst, Side: side, Price: price, Size: size}
}

func TestUpdateFillIgnoresUnknownInstrument(t *testing.T) {
	tr := New()
	tr.UpdateFill(mkFill(instrument.UNKNOWN, quoting.Buy, 100, 1))
	assert.Equal(t, 0.0, tr.Total())
	assert.Equal(t, "all positions flat", tr.Summary())
}

func TestUpdateFillAndMarkAggregateAcrossInstruments(t *testing.T) {
	tr := New()
	tr.UpdateFill(mkFill(instrument.BTC, quoting.Buy, 45000, 1))
	tr.UpdateFill(mkFill(instrument.ETH, quoting.Sell, 3000, 2))

	tr.UpdateMark(instrument.BTC, 46000)
	tr.UpdateMark(instrument.ETH, 2900)

	btc := tr.Position(instrument.BTC)
	eth := tr.Position(instrument.ETH)
	assert.InDelta(t, 1000.0, btc.Unrealized, 1e-9)
	assert.InDelta(t, 200.0, eth.Unrealized, 1e-9)
	assert.InDelta(t, 1200.0, tr.Unrealized(), 1e-9)
	assert.Equal(t, 0.0, tr.Realized())
	assert.InDelta(t, 1200.0, tr.Total(), 1e-9)
}

func TestRealizedRecomputesOnEachFill(t *testing.T) {
	tr := New()
	tr.UpdateFill(mkFill(instrument.SOL, quoting.Buy, 20, 10))
	tr.UpdateFill(mkFill(instrument.SOL, quoting.Sell, 25, 4))
	assert.InDelta(t, 20.0, tr.Realized(), 1e-9)
}
