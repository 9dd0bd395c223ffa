package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestLoadMergesOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("symbol: ETHUSDT\nstrategy:\n  gamma: 0.2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", cfg.Symbol)
	assert.Equal(t, 0.2, cfg.Strategy.Gamma)
	// unspecified fields keep their defaults
	assert.Equal(t, Default().Strategy.Sigma, cfg.Strategy.Sigma)
	assert.Equal(t, Default().Pipeline.BatchSize, cfg.Pipeline.BatchSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsNonPositiveStrategyParams(t *testing.T) {
	cfg := Default()
	cfg.Strategy.Gamma = 0
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsBadAlpha(t *testing.T) {
	cfg := Default()
	cfg.Volatility.Alpha = 1.5
	assert.Error(t, Validate(cfg))

	cfg2 := Default()
	cfg2.Volatility.Alpha = 0
	assert.Error(t, Validate(cfg2))
}

func TestValidateRejectsEmptySymbol(t *testing.T) {
	cfg := Default()
	cfg.Symbol = ""
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsBadFillProbability(t *testing.T) {
	cfg := Default()
	cfg.FillModel.BaseFillProbability = 1.5
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsNonPositiveHistoryWindow(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.HistoryWindow = 0
	assert.Error(t, Validate(cfg))
}
