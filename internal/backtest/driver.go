// Package backtest implements the simulated matcher / backtest driver:
// a seeded geometric Brownian price walk producing synthetic Ticks, and an
// aggressiveness-based fill-probability model plugged into the pipeline as
// its pipeline.FillProber for backtest runs, in place of the live
// competitive-quote sampling.
package backtest

import (
	"context"
	"math"
	"math/rand"
	"time"

	"asmm-engine/internal/instrument"
	"asmm-engine/internal/quoting"
	"asmm-engine/internal/transport"
	"asmm-engine/internal/volatility"
)

// Config parameterises the synthetic price walk and quoted spread.
type Config struct {
	Instrument   instrument.Instrument
	StartPrice   float64
	SigmaAnnual  float64       // annualised volatility driving the per-step increment
	TickInterval time.Duration // wall-clock spacing between synthetic ticks
	SpreadBps    float64       // fixed configured spread around the walk price
	Seed         int64
}

// DefaultConfig returns a reasonable BTC-like walk.
func DefaultConfig() Config {
	return Config{
		Instrument:   instrument.BTC,
		StartPrice:   45000,
		SigmaAnnual:  0.5,
		TickInterval: time.Second,
		SpreadBps:    2,
		Seed:         1,
	}
}

// Driver generates ticks from a geometric Brownian motion and implements
// transport.Source so it can drive the same pipeline the live feed does.
type Driver struct {
	cfg       Config
	price     float64
	rng       *rand.Rand
	sigmaTick float64
}

// NewDriver constructs a seeded Driver.
func NewDriver(cfg Config) *Driver {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	stepsPerYear := volatility.SecondsPerYear / cfg.TickInterval.Seconds()
	return &Driver{
		cfg:       cfg,
		price:     cfg.StartPrice,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		sigmaTick: cfg.SigmaAnnual / math.Sqrt(stepsPerYear),
	}
}

// Next advances the walk by one step and returns the resulting Tick. Its
// only failure is transport.ErrClosed, returned once ctx is done.
func (d *Driver) Next(ctx context.Context) (quoting.Tick, error) {
	select {
	case <-ctx.Done():
		return quoting.Tick{}, transport.ErrClosed
	default:
	}
	increment := d.sigmaTick * d.rng.NormFloat64()
	d.price *= math.Exp(increment)
	halfSpread := d.price * d.cfg.SpreadBps / 10000 / 2
	return quoting.Tick{
		Timestamp:  time.Now().UTC(),
		Instrument: d.cfg.Instrument,
		Bid:        d.price - halfSpread,
		Ask:        d.price + halfSpread,
		BidQty:     1,
		AskQty:     1,
	}, nil
}

// Close is a no-op; the driver owns no external resource.
func (d *Driver) Close() error { return nil }

// Price returns the current walk price, useful for tests and reporting.
func (d *Driver) Price() float64 { return d.price }

// FillModel computes fill probability from price aggressiveness:
// probability = base + max(0, aggressiveness)*bonus, clamped to [0,1].
// aggressiveness is (ourPrice-marketPrice)/marketPrice for buys and its
// negation for sells.
type FillModel struct {
	Base  float64
	Bonus float64
	rng   *rand.Rand
}

// NewFillModel constructs a FillModel with its own seeded RNG, independent
// of the price walk's RNG so backtests draw one independent uniform sample
// per side.
func NewFillModel(base, bonus float64, seed int64) *FillModel {
	return &FillModel{Base: base, Bonus: bonus, rng: rand.New(rand.NewSource(seed))}
}

// Probability returns the clamped fill probability for one side.
func (m *FillModel) Probability(ourPrice, marketPrice float64, side quoting.Side) float64 {
	if marketPrice == 0 {
		return m.Base
	}
	aggressiveness := (ourPrice - marketPrice) / marketPrice
	if side == quoting.Sell {
		aggressiveness = -aggressiveness
	}
	if aggressiveness < 0 {
		aggressiveness = 0
	}
	p := m.Base + aggressiveness*m.Bonus
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}

// Draws reports whether a fill occurs for the given side, drawing one
// independent uniform sample.
func (m *FillModel) Draws(ourPrice, marketPrice float64, side quoting.Side) bool {
	return m.rng.Float64() < m.Probability(ourPrice, marketPrice, side)
}
