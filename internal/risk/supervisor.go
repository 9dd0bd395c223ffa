// Package risk implements a single Supervisor covering both of the
// engine's post-quote risk checks: inventory-proportional spread
// inflation and a P&L kill-switch, evaluated after quote computation and
// before emission.
package risk

import (
	"errors"

	"asmm-engine/internal/quoting"
)

// ErrInvalidArgument is returned when Config carries a non-positive
// max inventory.
var ErrInvalidArgument = errors.New("risk: invalid argument")

// Config parameterises the Supervisor.
type Config struct {
	MaxInventory        float64 // inventory magnitude that saturates inflation
	MaxSpreadMultiplier float64 // max spread inflation factor at full inventory saturation
	KillFloor           float64 // total P&L at or below which quoting halts
}

// DefaultConfig returns reasonable defaults for the risk supervisor.
func DefaultConfig() Config {
	return Config{MaxInventory: 0.1, MaxSpreadMultiplier: 3.0, KillFloor: -10.0}
}

// Supervisor evaluates the two post-quote risk checks.
type Supervisor struct {
	cfg Config
}

// New constructs a Supervisor. cfg.MaxInventory must be strictly positive.
func New(cfg Config) (*Supervisor, error) {
	if cfg.MaxInventory <= 0 {
		return nil, ErrInvalidArgument
	}
	return &Supervisor{cfg: cfg}, nil
}

// SetConfig replaces the supervisor's tuning, e.g. from a config hot-reload.
// Callers must only invoke this from the pipeline's own goroutine; the
// supervisor is not safe for concurrent use.
func (s *Supervisor) SetConfig(cfg Config) error {
	if cfg.MaxInventory <= 0 {
		return ErrInvalidArgument
	}
	s.cfg = cfg
	return nil
}

// InflateForInventory widens q in place proportionally to how far
// inventory sits past half of MaxInventory. Below the 0.5 threshold it is
// a no-op.
func (s *Supervisor) InflateForInventory(q *quoting.Quote, inventory float64) {
	invRatio := abs(inventory) / s.cfg.MaxInventory
	if invRatio <= 0.5 {
		return
	}
	multiplier := 1 + (invRatio-0.5)*s.cfg.MaxSpreadMultiplier
	halfWidth := (q.Ask - q.Bid) / 2
	delta := (multiplier - 1) * halfWidth
	q.Bid -= delta
	q.Ask += delta
}

// ShouldHalt reports whether totalPnL has breached the kill floor.
func (s *Supervisor) ShouldHalt(totalPnL float64) bool {
	return totalPnL <= s.cfg.KillFloor
}

// KillFloor returns the configured P&L floor, useful for logging/telemetry
// context around a halt.
func (s *Supervisor) KillFloor() float64 { return s.cfg.KillFloor }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
