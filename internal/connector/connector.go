// Package connector defines the exchange-agnostic trading interface the
// order manager and position tracker depend on. It is a Go interface
// standing in for the source's type-erased pointer + vtable: callers hold a
// Connector value, never a concrete *hyperliquid.Client, so a second venue
// can be registered without touching internal/ordermanager or
// internal/position. Only Hyperliquid is implemented in this repo; the
// registry below is the documented extension point.
package connector

import (
	"context"
	"log/slog"

	"hyperliquid-trader/pkg/types"
)

// Connector is the full set of operations the core trades through. Symbol
// mapping between the unified types.TradingPair and venue-native strings
// (e.g. "BTC-USD" <-> "BTC") is the implementation's responsibility; callers
// never see venue-native symbols.
type Connector interface {
	// Name identifies the venue, e.g. "hyperliquid".
	Name() string

	// Connect establishes the venue's live data feed and blocks until ctx is
	// cancelled. Run it in its own goroutine.
	Connect(ctx context.Context) error
	// Disconnect tears down the live feed.
	Disconnect() error
	// IsConnected reports whether the live feed currently has a live socket.
	IsConnected() bool

	GetTicker(ctx context.Context, pair types.TradingPair) (types.Ticker, error)
	GetOrderbook(ctx context.Context, pair types.TradingPair, depth int) (types.Orderbook, error)

	CreateOrder(ctx context.Context, req types.OrderRequest) (types.Order, error)
	CancelOrder(ctx context.Context, id string) error
	CancelAll(ctx context.Context, pair *types.TradingPair) (cancelled int, err error)
	GetOrder(ctx context.Context, id string) (types.Order, error)
	GetOpenOrders(ctx context.Context, pair *types.TradingPair) ([]types.Order, error)

	GetBalance(ctx context.Context) (types.Balance, error)
	GetPositions(ctx context.Context) ([]types.Position, error)
}

// Factory builds a Connector from a venue-specific configuration blob. Each
// venue package registers its own Factory under its venue name.
type Factory func(cfg any, logger *slog.Logger) (Connector, error)
