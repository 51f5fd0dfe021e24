// Package runtime wires the connector, order manager, position tracker, and
// order book mirrors into a single running process: it is the minimal
// equivalent of an engine loop for a single-venue, single-account core —
// one Connect goroutine, one inbound-frame dispatch loop, and a clean
// Start/Stop lifecycle with a cancel-all safety net on shutdown.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hyperliquid-trader/internal/config"
	"hyperliquid-trader/internal/connector"
	"hyperliquid-trader/internal/hyperliquid"
	"hyperliquid-trader/internal/orderbook"
	"hyperliquid-trader/internal/ordermanager"
	"hyperliquid-trader/internal/position"
	"hyperliquid-trader/internal/store"
	"hyperliquid-trader/internal/transport"
	"hyperliquid-trader/pkg/types"
)

// Runtime owns every live subsystem for one venue connection: the
// connector, the dual-indexed order store, the position tracker, one
// orderbook.Book per subscribed pair, and crash-safe account persistence.
type Runtime struct {
	cfg    config.Config
	client *hyperliquid.Client
	conn   connector.Connector

	orders    *ordermanager.Store
	positions *position.Tracker
	snapshots *store.Store

	booksMu sync.RWMutex
	books   map[string]*orderbook.Book

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Runtime from cfg but performs no network I/O — call Start to
// connect and begin trading.
func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := hyperliquid.New(hyperliquid.Config{
		IsMainnet:     !cfg.Exchange.Testnet,
		MasterAddress: cfg.Exchange.APIKey,
		PrivateKeyHex: cfg.Exchange.SecretKey,
		HTTP: transport.HTTPConfig{
			Timeout:      cfg.Exchange.HTTP.Timeout(),
			RateLimitRPS: cfg.Exchange.HTTP.RateLimitRPS,
		},
		WS: transport.WSConfig{
			URL:                     cfg.Exchange.WebSocket.URL,
			PingInterval:            cfg.Exchange.WebSocket.PingInterval(),
			ReconnectMaxAttempts:    cfg.Exchange.WebSocket.MaxAttempts(),
			ReconnectInitialBackoff: cfg.Exchange.WebSocket.ReconnectInitialBackoff(),
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build hyperliquid client: %w", err)
	}

	snapshots, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	rt := &Runtime{
		cfg:       cfg,
		client:    client,
		conn:      hyperliquid.NewAdapter(client),
		positions: position.New(logger),
		snapshots: snapshots,
		books:     make(map[string]*orderbook.Book),
		logger:    logger.With("component", "runtime"),
		ctx:       ctx,
		cancel:    cancel,
	}
	rt.orders = ordermanager.New(logger, rt.onOrderUpdate, rt.onFill)
	return rt, nil
}

// Start refreshes venue metadata, restores any persisted account snapshot,
// syncs authoritative state from the exchange, subscribes to every pair's
// market and account channels, and launches the connect and dispatch
// goroutines. It returns once the first connection attempt is underway.
func (rt *Runtime) Start(pairs []types.TradingPair) error {
	if err := rt.client.RefreshMeta(rt.ctx); err != nil {
		return fmt.Errorf("refresh meta: %w", err)
	}

	if saved, err := rt.snapshots.LoadAccount(); err != nil {
		rt.logger.Warn("failed to load persisted account snapshot", "error", err)
	} else if saved != nil {
		rt.positions.Sync(*saved)
	}

	if err := rt.resync(); err != nil {
		rt.logger.Warn("initial account sync failed; continuing with persisted/empty state", "error", err)
	}

	for _, pair := range pairs {
		rt.booksMu.Lock()
		rt.books[pair.String()] = orderbook.New(pair)
		rt.booksMu.Unlock()

		if err := rt.client.Subscribe(rt.ctx, transport.Subscription{Type: "l2Book", Coin: pair.Symbol}); err != nil {
			return fmt.Errorf("subscribe l2Book %s: %w", pair.Symbol, err)
		}
	}

	user := rt.client.MasterAddress().Hex()
	for _, sub := range []transport.Subscription{
		{Type: "userFills", User: user},
		{Type: "orderUpdates", User: user},
		{Type: "webData2", User: user},
	} {
		if err := rt.client.Subscribe(rt.ctx, sub); err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.Type, err)
		}
	}

	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		if err := rt.client.Connect(rt.ctx); err != nil && rt.ctx.Err() == nil {
			rt.logger.Error("connect loop exited", "error", err)
		}
	}()

	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		rt.dispatch()
	}()

	return nil
}

// Stop cancels every background goroutine, cancels all resting orders as a
// safety net, persists the final account snapshot, and waits for every
// goroutine to exit before closing resources.
func (rt *Runtime) Stop() {
	rt.logger.Info("shutting down")
	rt.cancel()

	cancelCtx, cancelCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if _, err := rt.orders.CancelAll(cancelCtx, rt.conn, nil); err != nil {
		rt.logger.Error("failed to cancel all orders on shutdown", "error", err)
	}
	cancelCancel()

	if err := rt.snapshots.SaveAccount(rt.positions.Account()); err != nil {
		rt.logger.Error("failed to persist final account snapshot", "error", err)
	}

	rt.wg.Wait()
	rt.conn.Disconnect()
	rt.snapshots.Close()
	rt.logger.Info("shutdown complete")
}

// Orders returns the order manager, for callers that submit/cancel orders.
func (rt *Runtime) Orders() *ordermanager.Store { return rt.orders }

// Positions returns the position tracker, for callers reading account state.
func (rt *Runtime) Positions() *position.Tracker { return rt.positions }

// Connector returns the connector driving Orders' submissions.
func (rt *Runtime) Connector() connector.Connector { return rt.conn }

// Book returns the local order book mirror for pair, if subscribed.
func (rt *Runtime) Book(pair types.TradingPair) (*orderbook.Book, bool) {
	rt.booksMu.RLock()
	defer rt.booksMu.RUnlock()
	b, ok := rt.books[pair.String()]
	return b, ok
}

func (rt *Runtime) resync() error {
	balance, err := rt.conn.GetBalance(rt.ctx)
	if err != nil {
		return err
	}
	positions, err := rt.conn.GetPositions(rt.ctx)
	if err != nil {
		return err
	}
	rt.positions.SyncFromConnector(positions, balance)
	return rt.persistAccount()
}

func (rt *Runtime) persistAccount() error {
	return rt.snapshots.SaveAccount(rt.positions.Account())
}

// dispatch demultiplexes inbound WS frames by channel until ctx is
// cancelled: l2Book feeds the matching orderbook.Book, userFills/
// orderUpdates feed the order manager (which in turn calls back into
// onFill/onOrderUpdate), and webData2 refreshes the position tracker's
// account snapshot. A tick on the feed's Connected channel means the socket
// just (re)established, so tracked state is reconciled against the exchange
// before any further frames are applied.
func (rt *Runtime) dispatch() {
	for {
		// A pending Connected tick is handled before any queued frame.
		select {
		case <-rt.client.Reconnected():
			rt.reconcile()
			continue
		default:
		}

		select {
		case <-rt.ctx.Done():
			return
		case <-rt.client.Reconnected():
			rt.reconcile()
		case msg, ok := <-rt.client.Inbound():
			if !ok {
				return
			}
			rt.handleInbound(msg)
		}
	}
}

// reconcile re-fetches authoritative state after a (re)connect: the
// clearinghouse snapshot replaces tracked positions and the open-order set
// resolves any order whose submission outcome a disconnect left ambiguous.
func (rt *Runtime) reconcile() {
	if err := rt.resync(); err != nil {
		rt.logger.Warn("account resync after reconnect failed", "error", err)
	}
	open, err := rt.conn.GetOpenOrders(rt.ctx, nil)
	if err != nil {
		rt.logger.Warn("open-order fetch after reconnect failed", "error", err)
		return
	}
	rt.orders.Reconcile(open)
}

func (rt *Runtime) handleInbound(msg transport.InboundMessage) {
	switch msg.Channel {
	case "l2Book":
		rt.handleL2Book(msg.Data)
	case "userFills":
		rt.handleUserFills(msg.Data)
	case "orderUpdates":
		rt.handleOrderUpdates(msg.Data)
	case "webData2":
		rt.handleWebData2(msg.Data)
	default:
		rt.logger.Debug("ignoring inbound channel", "channel", msg.Channel)
	}
}

func (rt *Runtime) handleL2Book(data json.RawMessage) {
	coin, bids, asks, err := hyperliquid.ParseL2BookFrame(data)
	if err != nil {
		rt.logger.Warn("failed to parse l2Book frame", "error", err)
		return
	}
	pair := types.TradingPair{Symbol: coin, Quote: "USD"}

	rt.booksMu.RLock()
	book, ok := rt.books[pair.String()]
	rt.booksMu.RUnlock()
	if !ok {
		return
	}
	book.ApplySnapshot(bids, asks, time.Now())
}

func (rt *Runtime) handleUserFills(data json.RawMessage) {
	fills, _, err := hyperliquid.ParseUserFillsFrame(data)
	if err != nil {
		rt.logger.Warn("failed to parse userFills frame", "error", err)
		return
	}
	for _, fill := range fills {
		rt.orders.OnWSUserFill(fill)
	}
}

func (rt *Runtime) handleOrderUpdates(data json.RawMessage) {
	updates, err := hyperliquid.ParseOrderUpdatesFrame(data)
	if err != nil {
		rt.logger.Warn("failed to parse orderUpdates frame", "error", err)
		return
	}
	for _, u := range updates {
		rt.orders.OnWSOrderUpdate(ordermanager.OrderUpdateEvent{
			ExchangeID:   u.ExchangeID,
			Status:       u.Status,
			ErrorMessage: u.ErrorMessage,
		})
	}
}

func (rt *Runtime) handleWebData2(data json.RawMessage) {
	account, err := hyperliquid.ParseWebData2Frame(data)
	if err != nil {
		rt.logger.Warn("failed to parse webData2 frame", "error", err)
		return
	}
	rt.positions.Sync(account)
	if err := rt.persistAccount(); err != nil {
		rt.logger.Error("failed to persist account snapshot", "error", err)
	}
}

// onFill feeds a deduplicated user fill into the position tracker. Called by
// ordermanager.Store outside its own lock.
func (rt *Runtime) onFill(fill types.Fill) {
	if err := rt.positions.ApplyFill(fill.Pair, fill.Side, fill.Price, fill.Size); err != nil {
		rt.logger.Error("failed to apply fill to position tracker", "pair", fill.Pair.String(), "error", err)
		return
	}
	if err := rt.persistAccount(); err != nil {
		rt.logger.Error("failed to persist account snapshot after fill", "error", err)
	}
}

// onOrderUpdate is notified whenever the order manager's tracked state for
// an order changes. Currently only logged; a caller embedding Runtime can
// observe order lifecycle via rt.Orders() directly.
func (rt *Runtime) onOrderUpdate(order types.Order) {
	rt.logger.Debug("order updated", "client_id", order.ClientID, "exchange_id", order.ExchangeID, "status", order.Status)
}
