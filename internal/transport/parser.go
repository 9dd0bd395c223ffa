// Package transport models the tick source as a capability
// (Next/Close) so the pipeline can be driven by either a live exchange
// feed or the backtest driver with no runtime type tests. ParseBookTicker
// decodes the book-ticker wire schema (s/b/a/B/A) by unmarshal-then-extract.
package transport

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"asmm-engine/internal/instrument"
	"asmm-engine/internal/quoting"
)

// ErrProtocol signals a malformed or oversized wire frame.
var ErrProtocol = errors.New("transport: protocol error")

// bookTicker mirrors the book-ticker wire schema: symbol, best bid/ask
// price and size, all but the symbol as decimal strings.
type bookTicker struct {
	Symbol string `json:"s"`
	Bid    string `json:"b"`
	Ask    string `json:"a"`
	BidQty string `json:"B"`
	AskQty string `json:"A"`
}

// ParseBookTicker decodes one book-ticker frame into a Tick. It rejects
// records with a non-positive bid/ask or a crossed book (ask < bid),
// tolerating surrounding whitespace and unknown trailing fields the way
// encoding/json already does by default.
func ParseBookTicker(raw []byte) (quoting.Tick, error) {
	var bt bookTicker
	if err := json.Unmarshal(raw, &bt); err != nil {
		return quoting.Tick{}, ErrProtocol
	}

	bid, err := strconv.ParseFloat(strings.TrimSpace(bt.Bid), 64)
	if err != nil {
		return quoting.Tick{}, ErrProtocol
	}
	ask, err := strconv.ParseFloat(strings.TrimSpace(bt.Ask), 64)
	if err != nil {
		return quoting.Tick{}, ErrProtocol
	}
	if bid <= 0 || ask <= 0 || ask < bid {
		return quoting.Tick{}, ErrProtocol
	}

	bidQty, _ := strconv.ParseFloat(strings.TrimSpace(bt.BidQty), 64)
	askQty, _ := strconv.ParseFloat(strings.TrimSpace(bt.AskQty), 64)

	return quoting.Tick{
		Timestamp:  time.Now().UTC(),
		Instrument: instrument.FromString(bt.Symbol),
		Bid:        bid,
		Ask:        ask,
		BidQty:     bidQty,
		AskQty:     askQty,
	}, nil
}

// MaxFrameBytes bounds an inbound wire frame; oversized frames fail with
// ErrProtocol rather than being buffered without limit.
const MaxFrameBytes = 64 * 1024

// CheckFrameSize enforces MaxFrameBytes ahead of parsing.
func CheckFrameSize(raw []byte) error {
	if len(raw) > MaxFrameBytes {
		return ErrProtocol
	}
	return nil
}
