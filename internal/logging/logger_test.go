package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "not-a-level", Format: "json"})
	assert.Error(t, err)
}

func TestNewBuildsLoggerForValidConfigs(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := New(Config{Level: "debug", Format: format})
		require.NoError(t, err)
		require.NotNil(t, l)
		l.LogQuote("BTCUSDT", 100, 101, 10)
		l.LogFill("BTCUSDT", "buy", 100, 1, -0.01)
		l.LogHalt("BTCUSDT", -11, -10)
		l.LogError("test_error", assert.AnError)
		_ = l.Close() // stdout sync can return an error on some platforms; not the point of this test
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
}
