package instrument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromString_CanonicalAndShort(t *testing.T) {
	require.Equal(t, BTC, FromString("BTCUSDT"))
	require.Equal(t, BTC, FromString("btc"))
	require.Equal(t, ETH, FromString(" ETHUSDT "))
	require.Equal(t, UNKNOWN, FromString("DOGEUSDT"))
	require.Equal(t, UNKNOWN, FromString(""))
}

func TestToCanonicalToShort_Bijection(t *testing.T) {
	for i := 0; i < Count; i++ {
		inst := Instrument(i)
		assert.Equal(t, inst, FromString(inst.ToCanonical()))
		assert.Equal(t, inst, FromString(inst.ToShort()))
	}
}

func TestUnknownNeverValid(t *testing.T) {
	assert.False(t, UNKNOWN.Valid())
	assert.Equal(t, "", UNKNOWN.ToCanonical())
	assert.Equal(t, "", UNKNOWN.ToShort())
}

func TestValidRange(t *testing.T) {
	assert.True(t, BTC.Valid())
	assert.False(t, Instrument(-1).Valid())
	assert.False(t, Instrument(999).Valid())
}
