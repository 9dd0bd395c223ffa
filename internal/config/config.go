// Package config loads and validates the engine's YAML configuration:
// strategy/risk/volatility tuning plus the ambient connection settings
// (logging, ClickHouse, exchange WS URL) a real deployment needs.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StrategyConfig holds the Avellaneda-Stoikov model's risk/market
// parameters.
type StrategyConfig struct {
	Gamma float64 `yaml:"gamma"`
	Sigma float64 `yaml:"sigma"`
	T     float64 `yaml:"t"`
	Kappa float64 `yaml:"kappa"`
}

// VolatilityConfig holds the EWMA estimator tuning.
type VolatilityConfig struct {
	Alpha float64 `yaml:"alpha"`
	Floor float64 `yaml:"volFloor"`
}

// RiskConfig holds the risk supervisor's tuning.
type RiskConfig struct {
	MaxInventory        float64 `yaml:"maxInventory"`
	KillFloor           float64 `yaml:"killFloor"`
	MaxSpreadMultiplier float64 `yaml:"maxSpreadMultiplier"`
}

// FillModelConfig holds the simulated-fill probability tuning.
type FillModelConfig struct {
	BaseFillProbability  float64 `yaml:"baseFillProbability"`
	AggressiveFillBonus  float64 `yaml:"aggressiveFillBonus"`
	MakerFeeBps          float64 `yaml:"makerFeeBps"`
	CompetitiveTolerance float64 `yaml:"competitiveTolerance"`
}

// PipelineConfig holds the quoting pipeline's cadence tuning.
type PipelineConfig struct {
	QuoteEveryK     int `yaml:"quoteEveryK"`
	TelemetryEveryK int `yaml:"telemetryEveryK"`
	StatusEveryK    int `yaml:"statusEveryK"`
	BatchSize       int `yaml:"batchSize"`
	HistoryWindow   int `yaml:"historyWindow"`
}

// TransportConfig holds ambient connection settings for the live tick
// source; unused by the backtest driver.
type TransportConfig struct {
	WSURL string `yaml:"wsURL"`
	Frame int    `yaml:"maxFrameBytes"`
}

// ClickHouseConfig holds ambient connection settings for the persistence
// sink.
type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoggingConfig holds the ambient zap logger tuning.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration document.
type Config struct {
	Symbol     string           `yaml:"symbol"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Volatility VolatilityConfig `yaml:"volatility"`
	Risk       RiskConfig       `yaml:"risk"`
	FillModel  FillModelConfig  `yaml:"fillModel"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Transport  TransportConfig  `yaml:"transport"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Default returns the engine's built-in configuration defaults.
func Default() Config {
	return Config{
		Symbol: "BTCUSDT",
		Strategy: StrategyConfig{
			Gamma: 0.1, Sigma: 0.05, T: 60.0, Kappa: 1.5,
		},
		Volatility: VolatilityConfig{Alpha: 0.15, Floor: 0.02},
		Risk: RiskConfig{
			MaxInventory: 0.1, KillFloor: -10.0, MaxSpreadMultiplier: 3.0,
		},
		FillModel: FillModelConfig{
			BaseFillProbability: 0.05, AggressiveFillBonus: 0.5,
			MakerFeeBps: -1.0, CompetitiveTolerance: 1e-3,
		},
		Pipeline: PipelineConfig{
			QuoteEveryK: 10, TelemetryEveryK: 10, StatusEveryK: 100, BatchSize: 50, HistoryWindow: 100,
		},
		Transport:  TransportConfig{Frame: 64 * 1024},
		ClickHouse: ClickHouseConfig{Addr: "localhost:9000", Database: "asmm"},
		Logging:    LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads YAML from path, starting from Default() so unspecified
// fields keep their defaults, then validates.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate enforces that the A-S parameters are all strictly positive,
// plus positivity of the other tunables that feed directly into division
// or logarithms.
func Validate(cfg Config) error {
	if cfg.Symbol == "" {
		return errors.New("symbol is required")
	}
	s := cfg.Strategy
	if s.Gamma <= 0 || s.Sigma <= 0 || s.T <= 0 || s.Kappa <= 0 {
		return errors.New("strategy.gamma/sigma/t/kappa must all be > 0")
	}
	if cfg.Volatility.Alpha <= 0 || cfg.Volatility.Alpha > 1 {
		return errors.New("volatility.alpha must be in (0, 1]")
	}
	if cfg.Volatility.Floor < 0 {
		return errors.New("volatility.volFloor must be >= 0")
	}
	if cfg.Risk.MaxInventory <= 0 {
		return errors.New("risk.maxInventory must be > 0")
	}
	if cfg.Risk.MaxSpreadMultiplier <= 0 {
		return errors.New("risk.maxSpreadMultiplier must be > 0")
	}
	if cfg.FillModel.BaseFillProbability < 0 || cfg.FillModel.BaseFillProbability > 1 {
		return errors.New("fillModel.baseFillProbability must be in [0, 1]")
	}
	if cfg.Pipeline.QuoteEveryK <= 0 {
		return errors.New("pipeline.quoteEveryK must be > 0")
	}
	if cfg.Pipeline.BatchSize <= 0 {
		return errors.New("pipeline.batchSize must be > 0")
	}
	if cfg.Pipeline.HistoryWindow <= 0 {
		return errors.New("pipeline.historyWindow must be > 0")
	}
	return nil
}
