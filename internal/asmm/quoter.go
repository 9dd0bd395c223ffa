// Package asmm implements the Avellaneda-Stoikov optimal quoting formula as
// a pure function of (mid, volatility, inventory, parameters): the exact
// closed-form reservation price and half-spread, not a heuristic
// approximation.
package asmm

import (
	"errors"
	"math"

	"asmm-engine/internal/quoting"
)

// ErrInvalidArgument is returned when a batch call receives mismatched
// slice lengths or Set receives a non-positive parameter.
var ErrInvalidArgument = errors.New("asmm: invalid argument")

// Params holds the four A-S risk/market parameters. All must be strictly
// positive.
type Params struct {
	Gamma float64 // risk aversion
	Sigma float64 // volatility
	T     float64 // time-to-horizon
	Kappa float64 // order-arrival intensity
}

// Valid reports whether all four parameters are strictly positive.
func (p Params) Valid() bool {
	return p.Gamma > 0 && p.Sigma > 0 && p.T > 0 && p.Kappa > 0
}

// DefaultParams returns reasonable built-in configuration defaults.
func DefaultParams() Params {
	return Params{Gamma: 0.1, Sigma: 0.05, T: 60.0, Kappa: 1.5}
}

// Quoter is a stateful wrapper around Params that precomputes the
// parameter-derived constants (gammaSigma2, L, gInv) once per parameter
// change instead of every tick, so the hot path only does the per-tick
// reservation-price and half-spread arithmetic.
type Quoter struct {
	params Params

	gammaSigma2 float64 // gamma * sigma^2
	l           float64 // ln(1 + gamma/kappa)
	gInv        float64 // 2/gamma

	sizeBid float64
	sizeAsk float64
}

// New constructs a Quoter, precomputing constants from p. p must be Valid.
func New(p Params) (*Quoter, error) {
	q := &Quoter{sizeBid: 1.0, sizeAsk: 1.0}
	if err := q.SetParams(p); err != nil {
		return nil, err
	}
	return q, nil
}

// SetParams replaces the parameter set and rederives the precomputed
// constants. A non-positive parameter is rejected with ErrInvalidArgument
// and leaves the previous state untouched.
func (q *Quoter) SetParams(p Params) error {
	if !p.Valid() {
		return ErrInvalidArgument
	}
	q.params = p
	q.recompute()
	return nil
}

// SetVolatility updates only sigma (the online estimator's latest reading)
// and rederives the constants that depend on it. Non-positive sigma is
// rejected.
func (q *Quoter) SetVolatility(sigma float64) error {
	if sigma <= 0 {
		return ErrInvalidArgument
	}
	q.params.Sigma = sigma
	q.recompute()
	return nil
}

// SetSizes overrides the default unit quote sizes on both sides.
func (q *Quoter) SetSizes(bidSize, askSize float64) error {
	if bidSize <= 0 || askSize <= 0 {
		return ErrInvalidArgument
	}
	q.sizeBid = bidSize
	q.sizeAsk = askSize
	return nil
}

func (q *Quoter) recompute() {
	p := q.params
	q.gammaSigma2 = p.Gamma * p.Sigma * p.Sigma
	q.l = math.Log(1 + p.Gamma/p.Kappa)
	q.gInv = 2 / p.Gamma
}

// Params returns the currently configured parameter set.
func (q *Quoter) Params() Params { return q.params }

// Quote computes bid/ask for one tick given the current signed inventory.
// If tick.VolatilityHint is positive it overrides the configured sigma for
// this call only (the precomputed constants are not touched); zero or
// negative hints fall back to the configured sigma.
func (q *Quoter) Quote(tick quoting.Tick, inventory float64) quoting.Quote {
	mid := tick.Mid()
	sigmaEff := q.params.Sigma
	if tick.VolatilityHint > 0 {
		sigmaEff = tick.VolatilityHint
	}

	reservation := mid - inventory*q.gammaSigma2*q.params.T
	halfSpread := (q.params.Gamma*sigmaEff*sigmaEff*q.params.T + q.gInv*q.l) / 2

	return quoting.Quote{
		Timestamp:  tick.Timestamp,
		Instrument: tick.Instrument,
		Bid:        reservation - halfSpread,
		Ask:        reservation + halfSpread,
		BidSize:    q.sizeBid,
		AskSize:    q.sizeAsk,
	}
}

// QuoteBatch applies Quote elementwise to parallel tick/inventory slices.
// The two slices must be the same length; otherwise ErrInvalidArgument is
// returned and no quotes are produced.
func (q *Quoter) QuoteBatch(ticks []quoting.Tick, inventories []float64) ([]quoting.Quote, error) {
	if len(ticks) != len(inventories) {
		return nil, ErrInvalidArgument
	}
	out := make([]quoting.Quote, len(ticks))
	for i := range ticks {
		out[i] = q.Quote(ticks[i], inventories[i])
	}
	return out, nil
}

// ReservationPrice exposes the reservation price alone, useful for
// telemetry rows that report it independently of the quote.
func (q *Quoter) ReservationPrice(mid, inventory float64) float64 {
	return mid - inventory*q.gammaSigma2*q.params.T
}
