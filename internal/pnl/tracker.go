// Package pnl aggregates per-instrument ledger.Position entries into
// process-wide realized/unrealized totals, recomputed on demand from a
// dense per-instrument collection rather than maintained incrementally.
package pnl

import (
	"fmt"
	"strings"

	"asmm-engine/internal/instrument"
	"asmm-engine/internal/ledger"
	"asmm-engine/internal/quoting"
)

// Tracker owns one ledger.Position per instrument and the running totals
// derived from them.
type Tracker struct {
	positions       [instrument.Count]ledger.Position
	totalRealized   float64
	totalUnrealized float64
}

// New returns a Tracker with all positions flat.
func New() *Tracker {
	return &Tracker{}
}

// UpdateFill applies a fill to its instrument's ledger and recomputes
// total realized P&L. Fills for UNKNOWN or out-of-range instruments are
// silently ignored.
func (t *Tracker) UpdateFill(f quoting.Fill) {
	if !f.Instrument.Valid() {
		return
	}
	side := ledger.SideBuy
	if f.Side == quoting.Sell {
		side = ledger.SideSell
	}
	t.positions[f.Instrument].Apply(side, f.Price, f.Size)
	t.recomputeRealized()
}

// UpdateMark marks one instrument's position at the given price and
// recomputes total unrealized P&L.
func (t *Tracker) UpdateMark(inst instrument.Instrument, price float64) {
	if !inst.Valid() {
		return
	}
	t.positions[inst].Mark(price)
	t.recomputeUnrealized()
}

func (t *Tracker) recomputeRealized() {
	sum := 0.0
	for i := range t.positions {
		sum += t.positions[i].Realized
	}
	t.totalRealized = sum
}

func (t *Tracker) recomputeUnrealized() {
	sum := 0.0
	for i := range t.positions {
		sum += t.positions[i].Unrealized
	}
	t.totalUnrealized = sum
}

// Realized returns total realized P&L across all instruments.
func (t *Tracker) Realized() float64 { return t.totalRealized }

// Unrealized returns total unrealized P&L across all instruments.
func (t *Tracker) Unrealized() float64 { return t.totalUnrealized }

// Total returns realized + unrealized P&L. Fees are deliberately excluded:
// the ledger never folds fees into realized P&L, so a net-of-fees figure
// must be computed by the caller from quoting.Fill.NetAmount.
func (t *Tracker) Total() float64 { return t.totalRealized + t.totalUnrealized }

// Position returns a copy of the current ledger entry for inst.
func (t *Tracker) Position(inst instrument.Instrument) ledger.Position {
	if !inst.Valid() {
		return ledger.Position{}
	}
	return t.positions[inst]
}

// Summary returns a human-readable line, in a compact key=value style, per
// instrument with a non-zero quantity or non-zero realized P&L.
func (t *Tracker) Summary() string {
	var b strings.Builder
	any := false
	for i := 0; i < instrument.Count; i++ {
		p := t.positions[i]
		if p.Qty == 0 && p.Realized == 0 {
			continue
		}
		if any {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s qty=%.6f avg=%.4f realized=%.4f unrealized=%.4f",
			instrument.Instrument(i).ToShort(), p.Qty, p.Avg, p.Realized, p.Unrealized)
		any = true
	}
	if !any {
		return "all positions flat"
	}
	return b.String()
}
