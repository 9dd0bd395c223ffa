package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asmm-engine/internal/instrument"
)

func TestParseBookTicker_Valid(t *testing.T) {
	raw := []byte(`{"s":"BTCUSDT","b":"45000.10","a":"45000.50","B":"1.5","A":"2.0"}`)
	tk, err := ParseBookTicker(raw)
	require.NoError(t, err)
	assert.Equal(t, instrument.BTC, tk.Instrument)
	assert.Equal(t, 45000.10, tk.Bid)
	assert.Equal(t, 45000.50, tk.Ask)
	assert.Equal(t, 1.5, tk.BidQty)
	assert.Equal(t, 2.0, tk.AskQty)
}

func TestParseBookTicker_ToleratesWhitespaceAndTrailingFields(t *testing.T) {
	raw := []byte(`{"s":"ETHUSDT","b":" 3000.0 ","a":" 3000.5 ","B":"1","A":"1","extra":"ignored"}`)
	tk, err := ParseBookTicker(raw)
	require.NoError(t, err)
	assert.Equal(t, instrument.ETH, tk.Instrument)
}

func TestParseBookTicker_RejectsNonPositiveBid(t *testing.T) {
	raw := []byte(`{"s":"BTCUSDT","b":"0","a":"100","B":"1","A":"1"}`)
	_, err := ParseBookTicker(raw)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestParseBookTicker_RejectsCrossedBook(t *testing.T) {
	raw := []byte(`{"s":"BTCUSDT","b":"101","a":"100","B":"1","A":"1"}`)
	_, err := ParseBookTicker(raw)
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestParseBookTicker_RejectsMalformedJSON(t *testing.T) {
	_, err := ParseBookTicker([]byte(`not json`))
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestParseBookTicker_UnknownSymbolStillParses(t *testing.T) {
	raw := []byte(`{"s":"DOGEUSDT","b":"0.1","a":"0.11","B":"1","A":"1"}`)
	tk, err := ParseBookTicker(raw)
	require.NoError(t, err)
	assert.Equal(t, instrument.UNKNOWN, tk.Instrument)
}

func TestCheckFrameSize(t *testing.T) {
	assert.NoError(t, CheckFrameSize([]byte("small")))
	oversized := []byte(strings.Repeat("x", MaxFrameBytes+1))
	assert.ErrorIs(t, CheckFrameSize(oversized), ErrProtocol)
}
