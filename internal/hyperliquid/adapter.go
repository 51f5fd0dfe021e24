package hyperliquid

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"hyperliquid-trader/internal/connector"
	"hyperliquid-trader/internal/xerrors"
	"hyperliquid-trader/pkg/decimal"
	"hyperliquid-trader/pkg/types"
)

func init() {
	connector.Register("hyperliquid", newConnectorFromConfig)
}

func newConnectorFromConfig(cfg any, logger *slog.Logger) (connector.Connector, error) {
	c, ok := cfg.(Config)
	if !ok {
		return nil, fmt.Errorf("hyperliquid: connector factory expects hyperliquid.Config, got %T", cfg)
	}
	client, err := New(c, logger)
	if err != nil {
		return nil, err
	}
	return NewAdapter(client), nil
}

// Adapter narrows *Client to the connector.Connector vtable, translating
// between the unified types.TradingPair and Hyperliquid's bare coin symbols.
// Client itself exposes a richer, Hyperliquid-specific surface (RefreshMeta,
// Subscribe, Inbound) that internal/runtime uses directly; Adapter is what
// internal/ordermanager and internal/position see.
type Adapter struct {
	client *Client
}

// NewAdapter wraps client as a connector.Connector.
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Name() string { return "hyperliquid" }

func (a *Adapter) Connect(ctx context.Context) error { return a.client.Connect(ctx) }
func (a *Adapter) Disconnect() error                 { return a.client.feed.Close() }
func (a *Adapter) IsConnected() bool                 { return a.client.IsConnected() }

func (a *Adapter) GetTicker(ctx context.Context, pair types.TradingPair) (types.Ticker, error) {
	bids, asks, err := a.client.GetL2Book(ctx, pair.Symbol)
	if err != nil {
		return types.Ticker{}, err
	}
	if len(bids) == 0 || len(asks) == 0 {
		return types.Ticker{}, xerrors.New(xerrors.KindInsufficientLiquidity, "get_ticker", fmt.Errorf("empty book for %s", pair.Symbol))
	}

	mid, err := bids[0].Price.Add(asks[0].Price)
	if err == nil {
		mid, err = mid.Div(decimal.New(2))
	}
	if err != nil {
		return types.Ticker{}, xerrors.New(xerrors.KindOverflow, "get_ticker", err)
	}

	return types.Ticker{
		Pair:      pair,
		BidPrice:  bids[0].Price,
		AskPrice:  asks[0].Price,
		LastPrice: mid,
		Timestamp: time.Now(),
	}, nil
}

func (a *Adapter) GetOrderbook(ctx context.Context, pair types.TradingPair, depth int) (types.Orderbook, error) {
	bids, asks, err := a.client.GetL2Book(ctx, pair.Symbol)
	if err != nil {
		return types.Orderbook{}, err
	}
	if depth > 0 {
		if len(bids) > depth {
			bids = bids[:depth]
		}
		if len(asks) > depth {
			asks = asks[:depth]
		}
	}
	return types.Orderbook{Pair: pair, Bids: bids, Asks: asks, Timestamp: time.Now()}, nil
}

func (a *Adapter) CreateOrder(ctx context.Context, req types.OrderRequest) (types.Order, error) {
	result, err := a.client.CreateOrder(ctx, req.Pair.Symbol, req)
	if err != nil {
		return types.Order{}, err
	}

	now := time.Now()
	order := types.Order{
		ClientID:    req.ClientID,
		ExchangeID:  result.ExchangeID,
		Pair:        req.Pair,
		Side:        req.Side,
		Type:        req.Type,
		TimeInForce: req.TimeInForce,
		Price:       req.Price,
		Size:        req.Size,
		Status:      result.Status,
		ReduceOnly:  req.ReduceOnly,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if result.Status == types.StatusFilled {
		order.FilledSize = result.FilledSize
		order.AvgFillPx = result.AvgFillPrice
	}
	return order, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, id string) error {
	// CancelOrder needs the coin to resolve the asset index; callers that
	// only have the bare exchange id must use the order manager's record to
	// recover the pair, so this path looks it up via orderStatus first.
	exchangeID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return xerrors.New(xerrors.KindInvalidFormat, "cancel_order", fmt.Errorf("invalid exchange order id %q", id))
	}
	order, err := a.client.GetOrderStatus(ctx, exchangeID)
	if err != nil {
		return err
	}
	return a.client.CancelOrder(ctx, order.Pair.Symbol, exchangeID)
}

func (a *Adapter) CancelAll(ctx context.Context, pair *types.TradingPair) (int, error) {
	open, err := a.client.GetOpenOrders(ctx)
	if err != nil {
		return 0, err
	}

	cancels := make([]CancelRequest, 0, len(open))
	for _, o := range open {
		if pair != nil && o.Pair.Symbol != pair.Symbol {
			continue
		}
		exchangeID, err := strconv.ParseInt(o.ExchangeID, 10, 64)
		if err != nil {
			continue
		}
		cancels = append(cancels, CancelRequest{Coin: o.Pair.Symbol, ExchangeID: exchangeID})
	}
	if len(cancels) == 0 {
		return 0, nil
	}
	return a.client.CancelOrders(ctx, cancels)
}

func (a *Adapter) GetOrder(ctx context.Context, id string) (types.Order, error) {
	exchangeID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return types.Order{}, xerrors.New(xerrors.KindInvalidFormat, "get_order", fmt.Errorf("invalid exchange order id %q", id))
	}
	return a.client.GetOrderStatus(ctx, exchangeID)
}

func (a *Adapter) GetOpenOrders(ctx context.Context, pair *types.TradingPair) ([]types.Order, error) {
	open, err := a.client.GetOpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return open, nil
	}
	filtered := make([]types.Order, 0, len(open))
	for _, o := range open {
		if o.Pair.Symbol == pair.Symbol {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

func (a *Adapter) GetBalance(ctx context.Context) (types.Balance, error) {
	account, err := a.client.Sync(ctx)
	if err != nil {
		return types.Balance{}, err
	}
	return types.Balance{
		Asset:     "USD",
		Total:     account.TotalBalance,
		Available: account.AvailableBalance,
		Locked:    account.MarginUsed,
	}, nil
}

func (a *Adapter) GetPositions(ctx context.Context) ([]types.Position, error) {
	account, err := a.client.Sync(ctx)
	if err != nil {
		return nil, err
	}
	return account.Positions, nil
}

var _ connector.Connector = (*Adapter)(nil)
