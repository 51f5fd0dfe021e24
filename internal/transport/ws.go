package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hyperliquid-trader/internal/xerrors"
)

// WSConfig parameterizes the feed; zero values fall back to the defaults
// below.
type WSConfig struct {
	URL                     string
	PingInterval            time.Duration
	ReconnectMaxAttempts    int
	ReconnectInitialBackoff time.Duration
}

const (
	defaultPingInterval  = 30 * time.Second
	defaultMaxBackoff    = 30 * time.Second
	defaultMaxAttempts   = 10
	writeTimeout         = 10 * time.Second
	readTimeoutMultiple  = 3 // reconnect after this many missed pings
	inboundBufferSize    = 256
)

// Subscription is one outbound {method:"subscribe", subscription:{...}}
// frame, tracked so it can be replayed verbatim after a reconnect.
type Subscription struct {
	Type     string `json:"type"`
	Coin     string `json:"coin,omitempty"`
	User     string `json:"user,omitempty"`
	Interval string `json:"interval,omitempty"`
}

// key returns a stable map key identifying this subscription's identity,
// independent of field ordering.
func (s Subscription) key() string {
	return fmt.Sprintf("%s|%s|%s|%s", s.Type, s.Coin, s.User, s.Interval)
}

type subscribeFrame struct {
	Method       string       `json:"method"`
	Subscription Subscription `json:"subscription"`
}

// InboundMessage is the {channel, data} envelope every WS frame arrives in.
type InboundMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// Feed is a single reconnecting WebSocket connection to Hyperliquid's /ws
// endpoint. It owns the subscription set and replays it on every successful
// reconnect. Hyperliquid multiplexes every channel over a single socket, so
// one Feed carries market data and user/account channels alike.
type Feed struct {
	cfg     WSConfig
	limiter *TokenBucket
	logger  *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	subMu sync.RWMutex
	subs  map[string]Subscription

	inbound   chan InboundMessage
	connected chan struct{} // receives one tick per successful (re)connect

	attempts int
}

// NewFeed constructs a Feed. limiter is shared with the HTTP client so
// subscribe frames count against the same 20 req/s budget.
func NewFeed(cfg WSConfig, limiter *TokenBucket, logger *slog.Logger) *Feed {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.ReconnectMaxAttempts <= 0 {
		cfg.ReconnectMaxAttempts = defaultMaxAttempts
	}
	if cfg.ReconnectInitialBackoff <= 0 {
		cfg.ReconnectInitialBackoff = time.Second
	}
	return &Feed{
		cfg:       cfg,
		limiter:   limiter,
		logger:    logger.With("component", "ws_feed"),
		subs:      make(map[string]Subscription),
		inbound:   make(chan InboundMessage, inboundBufferSize),
		connected: make(chan struct{}, 1),
	}
}

// Inbound returns the channel of demultiplexed {channel,data} frames.
func (f *Feed) Inbound() <-chan InboundMessage { return f.inbound }

// Connected receives one tick per successful connect or reconnect, after the
// subscription set has been replayed. Callers use it to trigger state
// reconciliation against the exchange.
func (f *Feed) Connected() <-chan struct{} { return f.connected }

// Run connects and maintains the connection with bounded exponential
// backoff, replaying every tracked subscription on each successful
// reconnect. It returns once ctx is cancelled or the reconnect attempt cap
// is exhausted.
func (f *Feed) Run(ctx context.Context) error {
	backoff := f.cfg.ReconnectInitialBackoff

	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.attempts++
		if f.attempts > f.cfg.ReconnectMaxAttempts {
			return xerrors.New(xerrors.KindConnectionLost, "ws_reconnect",
				fmt.Errorf("exceeded %d reconnect attempts: %w", f.cfg.ReconnectMaxAttempts, err))
		}

		f.logger.Warn("websocket disconnected, reconnecting", "error", err, "backoff", backoff, "attempt", f.attempts)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > defaultMaxBackoff {
			backoff = defaultMaxBackoff
		}
	}
}

// Subscribe tracks subscription sub and sends the subscribe frame
// immediately if connected. Subscribing before the first connect is fine:
// the tracked set is replayed in full on every successful (re)connect, so
// the frame goes out as soon as a socket is live.
func (f *Feed) Subscribe(ctx context.Context, sub Subscription) error {
	f.subMu.Lock()
	f.subs[sub.key()] = sub
	f.subMu.Unlock()

	if !f.IsConnected() {
		return nil
	}
	return f.send(ctx, subscribeFrame{Method: "subscribe", Subscription: sub})
}

// Unsubscribe stops tracking sub and sends the unsubscribe frame if a socket
// is live; if not, dropping it from the tracked set is all that's needed.
func (f *Feed) Unsubscribe(ctx context.Context, sub Subscription) error {
	f.subMu.Lock()
	delete(f.subs, sub.key())
	f.subMu.Unlock()

	if !f.IsConnected() {
		return nil
	}
	return f.send(ctx, subscribeFrame{Method: "unsubscribe", Subscription: sub})
}

// IsConnected reports whether the underlying socket is currently live.
func (f *Feed) IsConnected() bool {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	return f.conn != nil
}

// Close closes the current connection, if any.
func (f *Feed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.replaySubscriptions(ctx); err != nil {
		return fmt.Errorf("replay subscriptions: %w", err)
	}
	f.attempts = 0
	f.logger.Info("websocket connected", "url", f.cfg.URL)

	select {
	case f.connected <- struct{}{}:
	default:
	}

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	readTimeout := f.cfg.PingInterval * readTimeoutMultiple
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.dispatch(msg)
	}
}

// replaySubscriptions sends every tracked subscription in a stable order —
// map iteration order is randomized in Go, so subs are sorted by key first
// to keep the replayed frame sequence identical across reconnects.
func (f *Feed) replaySubscriptions(ctx context.Context) error {
	f.subMu.RLock()
	ordered := make([]Subscription, 0, len(f.subs))
	for _, s := range f.subs {
		ordered = append(ordered, s)
	}
	f.subMu.RUnlock()

	sortSubscriptions(ordered)

	for _, s := range ordered {
		if err := f.send(ctx, subscribeFrame{Method: "subscribe", Subscription: s}); err != nil {
			return err
		}
	}
	return nil
}

func sortSubscriptions(subs []Subscription) {
	for i := 1; i < len(subs); i++ {
		for j := i; j > 0 && subs[j].key() < subs[j-1].key(); j-- {
			subs[j], subs[j-1] = subs[j-1], subs[j]
		}
	}
}

func (f *Feed) dispatch(data []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		f.logger.Debug("ignoring non-json ws message", "data", string(data))
		return
	}
	select {
	case f.inbound <- msg:
	default:
		f.logger.Warn("inbound channel full, dropping message", "channel", msg.Channel)
	}
}

func (f *Feed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(f.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.sendRaw(websocket.PingMessage, nil); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *Feed) send(ctx context.Context, v any) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return xerrors.New(xerrors.KindTimeout, "ws_send", err)
	}
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return xerrors.New(xerrors.KindConnectionLost, "ws_send", fmt.Errorf("not connected"))
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *Feed) sendRaw(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("websocket not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
