package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"asmm-engine/internal/quoting"
)

// ErrClosed is returned by Next when the upstream connection ends with a
// normal or going-away close (and by the backtest driver once its context
// is done), signalling normal loop termination. Other read failures,
// including reads after Close, are returned as wrapped errors.
var ErrClosed = errors.New("transport: closed")

// Source is the capability the pipeline drives: pull the next tick or
// close. Both the live exchange feed and the backtest driver implement
// it, so the pipeline never runtime-type-switches between them.
type Source interface {
	Next(ctx context.Context) (quoting.Tick, error)
	Close() error
}

// LiveSource reads book-ticker frames off a websocket connection, exposing
// a pull-based Next so it satisfies Source without an adapter goroutine.
type LiveSource struct {
	url    string
	dialer *websocket.Dialer
	conn   *websocket.Conn

	readTimeout   time.Duration
	maxFrameBytes int64
}

// NewLiveSource constructs a LiveSource for wsURL, not yet connected.
func NewLiveSource(wsURL string) *LiveSource {
	return &LiveSource{
		url:           wsURL,
		dialer:        websocket.DefaultDialer,
		readTimeout:   30 * time.Second,
		maxFrameBytes: MaxFrameBytes,
	}
}

// Dial opens the websocket connection.
func (s *LiveSource) Dial(ctx context.Context) error {
	if _, err := url.Parse(s.url); err != nil {
		return fmt.Errorf("invalid ws url: %w", err)
	}
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	conn.SetReadLimit(s.maxFrameBytes)
	s.conn = conn
	return nil
}

// Next blocks for the next frame, parses it, and returns the resulting
// Tick. A malformed frame is reported as ErrProtocol without closing the
// connection; the caller decides whether to retry or terminate.
func (s *LiveSource) Next(ctx context.Context) (quoting.Tick, error) {
	if s.conn == nil {
		return quoting.Tick{}, fmt.Errorf("transport: not connected")
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return quoting.Tick{}, ErrClosed
		}
		return quoting.Tick{}, fmt.Errorf("read: %w", err)
	}
	if err := CheckFrameSize(raw); err != nil {
		return quoting.Tick{}, err
	}
	return ParseBookTicker(raw)
}

// Close terminates the underlying connection.
func (s *LiveSource) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// SubscribeURL builds a single-stream book-ticker subscription URL.
func SubscribeURL(base, symbol string) string {
	stream := strings.ToLower(symbol) + "@bookTicker"
	return strings.TrimSuffix(base, "/") + "/ws/" + stream
}
