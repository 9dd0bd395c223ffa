// Package quoting holds the plain value types that flow between the
// transport, pipeline, and telemetry components: Tick, Quote, and Fill.
package quoting

import (
	"fmt"
	"math"
	"time"

	"asmm-engine/internal/instrument"
)

// Side identifies which side of a Fill executed.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Tick is a top-of-book snapshot. VolatilityHint, if positive, is an
// authoritative per-tick volatility override; zero means "absent" and the
// pipeline falls back to its own estimator.
type Tick struct {
	Timestamp      time.Time
	Instrument     instrument.Instrument
	Bid            float64
	Ask            float64
	BidQty         float64
	AskQty         float64
	VolatilityHint float64
}

// Mid returns the arithmetic mid of the tick's best bid/ask.
func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

// Valid reports whether the tick satisfies the wire-format invariants:
// bid > 0, ask > 0, ask >= bid.
func (t Tick) Valid() bool {
	return t.Bid > 0 && t.Ask > 0 && t.Ask >= t.Bid
}

// Quote is a bid/ask pair the engine is willing to trade at.
type Quote struct {
	Timestamp  time.Time
	Instrument instrument.Instrument
	Bid        float64
	Ask        float64
	BidSize    float64
	AskSize    float64
	OrderID    string
}

// Mid returns the arithmetic mid of the quote.
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// SpreadBps returns (ask-bid)/mid * 10_000, or 0 if mid is non-positive.
func (q Quote) SpreadBps() float64 {
	mid := q.Mid()
	if mid <= 0 {
		return 0
	}
	return (q.Ask - q.Bid) / mid * 10000
}

// Valid reports whether bid < ask and both sizes are positive.
func (q Quote) Valid() bool {
	return q.Bid < q.Ask && q.BidSize > 0 && q.AskSize > 0
}

// Fill is a simulated execution against one of our resting quotes. Fee is
// signed: negative denotes a maker rebate.
type Fill struct {
	Timestamp  time.Time
	Instrument instrument.Instrument
	Side       Side
	Price      float64
	Size       float64
	OrderID    string
	Fee        float64
}

// Notional returns price * size.
func (f Fill) Notional() float64 {
	return f.Price * f.Size
}

// SignedSize returns +size for a buy, -size for a sell, matching the sign
// convention the position ledger expects for delta quantity.
func (f Fill) SignedSize() float64 {
	if f.Side == Sell {
		return -f.Size
	}
	return f.Size
}

// NetAmount returns the signed cash flow of the fill: a buy is an outflow
// of notional plus fees, a sell is an inflow of notional minus fees.
func (f Fill) NetAmount() float64 {
	if f.Side == Buy {
		return -(f.Notional() + f.Fee)
	}
	return f.Notional() - f.Fee
}

// FeeRate returns Fee as a fraction of notional, or 0 if notional is zero.
func (f Fill) FeeRate() float64 {
	notional := f.Notional()
	if notional == 0 {
		return 0
	}
	return f.Fee / notional
}

// SlippageBps returns the distance between the fill price and a reference
// price, in basis points of the reference. Returns 0 for a non-positive
// reference.
func (f Fill) SlippageBps(referencePrice float64) float64 {
	if referencePrice <= 0 {
		return 0
	}
	return math.Abs(f.Price-referencePrice) / referencePrice * 10000
}

// EffectiveSpread returns twice the absolute distance between the fill
// price and a reference price: the round-trip cost of trading at Price
// instead of at the reference.
func (f Fill) EffectiveSpread(referencePrice float64) float64 {
	return math.Abs(f.Price-referencePrice) * 2
}

// Valid reports whether the fill carries a usable instrument, price,
// size, and order ID.
func (f Fill) Valid() bool {
	return f.Instrument.Valid() && f.Price > 0 && f.Size > 0 && f.OrderID != ""
}

// String renders a compact human-readable summary of the fill.
func (f Fill) String() string {
	return fmt.Sprintf("Fill{%s %s %.6g@%.6g id:%s}", f.Instrument, f.Side, f.Size, f.Price, f.OrderID)
}
