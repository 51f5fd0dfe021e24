// Package types holds the shared trading vocabulary used across every layer
// of the core: order book, protocol engine, order manager, position
// tracker, and the exchange-agnostic connector interface all speak in terms
// of these structs instead of inventing their own per-package shapes.
package types

import (
	"time"

	"hyperliquid-trader/pkg/decimal"
)

// Side is the direction of an order or fill.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType distinguishes resting limit orders from immediate-execution
// market orders.
type OrderType string

const (
	Limit  OrderType = "limit"
	Market OrderType = "market"
)

// TimeInForce controls how long an order rests before the venue cancels it.
type TimeInForce string

const (
	GoodTilCancel     TimeInForce = "gtc"
	ImmediateOrCancel TimeInForce = "ioc"
	AddLiquidityOnly  TimeInForce = "alo" // post-only; reject instead of taking
)

// OrderStatus is the lifecycle state of a tracked order.
type OrderStatus string

const (
	StatusPendingSubmit   OrderStatus = "pending_submit"   // sent, awaiting ack
	StatusOpen            OrderStatus = "open"             // resting, unfilled
	StatusPartiallyFilled OrderStatus = "partially_filled" // resting with some fills applied
	StatusFilled          OrderStatus = "filled"           // fully filled
	StatusCancelled       OrderStatus = "cancelled"
	StatusRejected        OrderStatus = "rejected"
	StatusExpired         OrderStatus = "expired" // venue-expired (e.g. IOC remainder)
	StatusPendingCancel   OrderStatus = "pending_cancel"
)

// Terminal reports whether the status is a final state the order manager
// will never transition out of.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// TradingPair identifies a market, e.g. "BTC-USD" or "ETH-USD".
type TradingPair struct {
	Symbol string // venue-facing symbol, e.g. "BTC"
	Quote  string // quote currency, almost always "USD" on Hyperliquid perps
}

// String renders the pair in "SYMBOL-QUOTE" form.
func (p TradingPair) String() string {
	return p.Symbol + "-" + p.Quote
}

// OrderRequest is what a caller hands to a connector to place an order.
// ClientID is caller-assigned and survives the full order lifecycle even
// though the venue's own exchange-assigned ID is only known after the ack.
type OrderRequest struct {
	ClientID    string
	Pair        TradingPair
	Side        Side
	Type        OrderType
	TimeInForce TimeInForce
	Price       decimal.Decimal // ignored for Market orders
	Size        decimal.Decimal
	ReduceOnly  bool
}

// Order is the order manager's view of an order's full lifecycle.
type Order struct {
	ClientID     string
	ExchangeID   string // set once the venue acknowledges the order
	Pair         TradingPair
	Side         Side
	Type         OrderType
	TimeInForce  TimeInForce
	Price        decimal.Decimal
	Size         decimal.Decimal
	FilledSize   decimal.Decimal
	AvgFillPx    decimal.Decimal
	Status       OrderStatus
	ReduceOnly   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ErrorMessage string // set on rejection; empty otherwise
}

// Remaining returns the size still unfilled.
func (o Order) Remaining() decimal.Decimal {
	rem, err := o.Size.Sub(o.FilledSize)
	if err != nil || rem.Sign() < 0 {
		return decimal.Zero
	}
	return rem
}

// Fill is a single execution against an order.
type Fill struct {
	OrderID   string // exchange order ID
	TradeID   string // venue-assigned unique fill ID, used for de-duplication
	Pair      TradingPair
	Side      Side
	Price     decimal.Decimal
	Size      decimal.Decimal
	Fee       decimal.Decimal
	Timestamp time.Time
}

// Ticker is a best-bid/offer + last-trade snapshot for a pair.
type Ticker struct {
	Pair       TradingPair
	BidPrice   decimal.Decimal
	AskPrice   decimal.Decimal
	LastPrice  decimal.Decimal
	Volume24h  decimal.Decimal
	Timestamp  time.Time
}

// OrderbookLevel is a single price level in an L2 book. OrderCount is the
// venue-reported number of resting orders backing the level ("n" on
// Hyperliquid's wire shape); it's advisory only, never used in VWAP/depth
// math.
type OrderbookLevel struct {
	Price      decimal.Decimal
	Size       decimal.Decimal
	OrderCount int
}

// Orderbook is a point-in-time L2 snapshot: bids descending by price, asks
// ascending by price.
type Orderbook struct {
	Pair      TradingPair
	Bids      []OrderbookLevel
	Asks      []OrderbookLevel
	Timestamp time.Time
}

// PositionSide is the directional sign of an open position.
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
	PositionFlat  PositionSide = "flat"
)

// Position is the current holding in one pair. Size is always non-negative;
// Side carries direction. RealizedPnL accumulates across the position's
// entire lifetime (every close/reduce adds to it, it is never reset while
// the position is open).
type Position struct {
	Pair            TradingPair
	Side            PositionSide
	Size            decimal.Decimal
	EntryPrice      decimal.Decimal
	MarkPrice       decimal.Decimal
	LiquidationPrice decimal.Decimal
	Leverage        decimal.Decimal
	MarginUsed      decimal.Decimal
	UnrealizedPnL   decimal.Decimal
	ReturnOnEquity   decimal.Decimal // unrealized / margin used, when margin is nonzero
	RealizedPnL     decimal.Decimal
	OpenedAt        time.Time
	UpdatedAt       time.Time
}

// Balance is account-level collateral information for one asset. Hyperliquid
// perps settle in a single USDC collateral asset, but the shape is kept
// general: Total = Available + Locked.
type Balance struct {
	Asset     string
	Total     decimal.Decimal
	Available decimal.Decimal
	Locked    decimal.Decimal
}

// Account bundles everything a caller needs after a full state sync.
type Account struct {
	TotalBalance       decimal.Decimal
	AvailableBalance   decimal.Decimal
	MarginUsed         decimal.Decimal
	AccountValue       decimal.Decimal
	TotalUnrealizedPnL decimal.Decimal
	TotalRealizedPnL   decimal.Decimal
	Positions          []Position
}
