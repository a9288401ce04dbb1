// Package feed runs reconnecting websocket quote feeds and hands canonical
// quotes to a callback.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next message or pong.
	pongWait = 30 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff.
	maxReconnectDelay = 60 * time.Second
)

// Adapter translates one venue's websocket protocol into canonical quotes.
type Adapter interface {
	Venue() domain.Venue
	URL() string
	// Subscriptions returns the messages sent right after connecting.
	Subscriptions() ([][]byte, error)
	// Parse converts a raw message into a quote. Malformed, partial and
	// non-quote messages return false and are dropped.
	Parse(raw []byte, received time.Time) (domain.Quote, bool)
}

// Heartbeater is implemented by adapters whose venue expects an
// application-level keepalive text frame in addition to websocket pings.
type Heartbeater interface {
	Heartbeat() (interval time.Duration, payload []byte)
}

// QuoteHandler receives every parsed quote in arrival order.
type QuoteHandler func(domain.Quote)

// WSFeed keeps one websocket subscription alive until its context is
// cancelled, reconnecting with exponential backoff.
type WSFeed struct {
	adapter Adapter
	onQuote QuoteHandler
	logger  *slog.Logger
	dialer  *websocket.Dialer
	now     func() time.Time

	baseDelay time.Duration
	maxDelay  time.Duration

	connected atomic.Bool
	quotes    atomic.Int64
	dropped   atomic.Int64
}

// NewWSFeed creates a feed for adapter that calls onQuote for each quote.
func NewWSFeed(adapter Adapter, onQuote QuoteHandler, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		adapter:   adapter,
		onQuote:   onQuote,
		logger:    logger.With(slog.String("component", "ws_feed"), slog.String("venue", string(adapter.Venue()))),
		dialer:    &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		now:       time.Now,
		baseDelay: reconnectDelay,
		maxDelay:  maxReconnectDelay,
	}
}

// Venue returns the venue this feed serves.
func (f *WSFeed) Venue() domain.Venue { return f.adapter.Venue() }

// Connected reports whether the websocket is currently open.
func (f *WSFeed) Connected() bool { return f.connected.Load() }

// Stats returns the number of delivered quotes and dropped messages.
func (f *WSFeed) Stats() (quotes, dropped int64) { return f.quotes.Load(), f.dropped.Load() }

// Run connects and reads until ctx is cancelled. It returns nil on shutdown.
func (f *WSFeed) Run(ctx context.Context) error {
	delay := f.baseDelay
	for {
		started := time.Now()
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			f.logger.Info("ws feed stopped")
			return nil
		}
		// A connection that stayed up for a while resets the backoff.
		if time.Since(started) > f.maxDelay {
			delay = f.baseDelay
		}
		f.logger.Warn("ws disconnected, reconnecting",
			slog.String("error", errString(err)),
			slog.Duration("backoff", delay),
		)
		select {
		case <-ctx.Done():
			f.logger.Info("ws feed stopped")
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > f.maxDelay {
			delay = f.maxDelay
		}
	}
}

func (f *WSFeed) runConnection(ctx context.Context) error {
	subs, err := f.adapter.Subscriptions()
	if err != nil {
		return fmt.Errorf("feed: build subscriptions: %w", err)
	}

	conn, _, err := f.dialer.DialContext(ctx, f.adapter.URL(), nil)
	if err != nil {
		return fmt.Errorf("feed: connect %s: %w", f.adapter.Venue(), err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
		case <-stop:
		}
	}()

	for _, msg := range subs {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return fmt.Errorf("feed: subscribe: %w", err)
		}
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go f.pingLoop(conn, stop)
	if hb, ok := f.adapter.(Heartbeater); ok {
		interval, payload := hb.Heartbeat()
		go f.heartbeatLoop(conn, stop, interval, payload)
	}

	f.connected.Store(true)
	defer f.connected.Store(false)
	f.logger.Info("ws subscribed", slog.String("url", f.adapter.URL()))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrWSDisconnect, err)
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		q, ok := f.adapter.Parse(raw, f.now())
		if !ok {
			f.dropped.Add(1)
			continue
		}
		f.quotes.Add(1)
		f.onQuote(q)
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (f *WSFeed) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// heartbeatLoop is the only writer of data frames once subscribed.
func (f *WSFeed) heartbeatLoop(conn *websocket.Conn, stop <-chan struct{}, interval time.Duration, payload []byte) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

func errString(err error) string {
	if err == nil {
		return "connection closed"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return err.Error()
}
