package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"hyperliquid-trader/internal/clock"
	"hyperliquid-trader/internal/hlsign"
	"hyperliquid-trader/internal/hlwire"
	"hyperliquid-trader/internal/transport"
	"hyperliquid-trader/internal/xerrors"
	"hyperliquid-trader/pkg/decimal"
	"hyperliquid-trader/pkg/types"
)

const (
	MainnetHTTPURL = "https://api.hyperliquid.xyz"
	MainnetWSURL   = "wss://api.hyperliquid.xyz/ws"
	TestnetHTTPURL = "https://api.hyperliquid-testnet.xyz"
	TestnetWSURL   = "wss://api.hyperliquid-testnet.xyz/ws"
)

// Config parameterizes Client construction.
type Config struct {
	IsMainnet     bool
	MasterAddress string // read-query identity; never the signing address
	PrivateKeyHex string // signer's private key; empty means read-only mode
	HTTP          transport.HTTPConfig
	WS            transport.WSConfig
}

// Client is the Hyperliquid connector: it owns the meta cache, the signer,
// the rate-limited HTTP transport and one WS feed. New builds the feed but
// does not dial it; the socket is opened only once Connect runs, keeping
// construction and connection as separate steps.
type Client struct {
	cfg    Config
	master hlsign.MasterAddress
	signer *hlsign.Signer
	nonces *clock.NonceGenerator
	logger *slog.Logger

	http *transport.HTTPClient
	feed *transport.Feed
	meta *metaCache

	limiter *transport.TokenBucket
}

// New builds a Client against cfg. It does not perform any network I/O —
// callers must call RefreshMeta before placing orders, and Connect before
// relying on WS market data.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.MasterAddress == "" {
		return nil, xerrors.New(xerrors.KindInvalidFormat, "new_client", fmt.Errorf("master address required"))
	}
	if !common.IsHexAddress(cfg.MasterAddress) {
		return nil, xerrors.New(xerrors.KindInvalidFormat, "new_client", fmt.Errorf("master address %q is not a valid hex address", cfg.MasterAddress))
	}

	baseURL := cfg.HTTP.BaseURL
	wsURL := cfg.WS.URL
	if baseURL == "" {
		baseURL = MainnetHTTPURL
		if !cfg.IsMainnet {
			baseURL = TestnetHTTPURL
		}
	}
	if wsURL == "" {
		wsURL = MainnetWSURL
		if !cfg.IsMainnet {
			wsURL = TestnetWSURL
		}
	}
	cfg.HTTP.BaseURL = baseURL
	cfg.WS.URL = wsURL
	if cfg.HTTP.RateLimitRPS <= 0 {
		cfg.HTTP.RateLimitRPS = 20
	}

	limiter := transport.NewTokenBucket(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitRPS)

	var signer *hlsign.Signer
	if cfg.PrivateKeyHex != "" {
		signer = hlsign.NewSigner(cfg.PrivateKeyHex, cfg.IsMainnet)
	}

	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		cfg:     cfg,
		master:  hlsign.MasterAddress(common.HexToAddress(cfg.MasterAddress)),
		signer:  signer,
		nonces:  clock.NewNonceGenerator(clock.Real{}),
		logger:  logger,
		limiter: limiter,
		meta:    newMetaCache(),
	}
	client.http = transport.NewHTTPClient(cfg.HTTP, limiter, logger)
	client.feed = transport.NewFeed(cfg.WS, limiter, logger)
	return client, nil
}

// RefreshMeta fetches the universe metadata needed to round prices/sizes to
// venue-legal tick/lot boundaries. Must be called at least once before
// CreateOrder.
func (c *Client) RefreshMeta(ctx context.Context) error {
	return c.meta.Refresh(ctx, c.http)
}

// Connect runs the WebSocket feed's connect/reconnect loop; callers read
// market/account updates via Inbound(). It blocks until ctx is cancelled or
// the reconnect attempt cap is exhausted, so internal/runtime runs it in its
// own goroutine.
func (c *Client) Connect(ctx context.Context) error {
	return c.feed.Run(ctx)
}

// IsConnected reports whether the WS feed currently has a live socket.
func (c *Client) IsConnected() bool { return c.feed.IsConnected() }

// Subscribe tracks and sends a WS subscription, replayed automatically on
// reconnect.
func (c *Client) Subscribe(ctx context.Context, sub transport.Subscription) error {
	return c.feed.Subscribe(ctx, sub)
}

// Inbound returns the channel of demultiplexed WS frames.
func (c *Client) Inbound() <-chan transport.InboundMessage { return c.feed.Inbound() }

// Reconnected receives one tick per successful WS connect or reconnect,
// after the subscription set has been replayed.
func (c *Client) Reconnected() <-chan struct{} { return c.feed.Connected() }

// MasterAddress returns the read-query identity this client was configured
// with.
func (c *Client) MasterAddress() hlsign.MasterAddress { return c.master }

// orderResultStatus is the {"statuses":[...]} element Hyperliquid returns
// per order, in the dual resting/filled shape — both branches are a
// successful acknowledgement and must be handled.
type orderResultStatus struct {
	Resting *struct {
		OID int64 `json:"oid"`
	} `json:"resting"`
	Filled *struct {
		OID    int64  `json:"oid"`
		TotalSz string `json:"totalSz"`
		AvgPx   string `json:"avgPx"`
	} `json:"filled"`
	Error string `json:"error"`
}

// UnmarshalJSON accepts both shapes Hyperliquid uses for a status element:
// an object (order actions, e.g. {"resting":...} or {"filled":...}) and a
// bare string (cancel actions, e.g. "success"). The string form carries no
// structured data callers currently read, so it unmarshals to the zero
// value.
func (s *orderResultStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = orderResultStatus{}
		return nil
	}

	type orderResultStatusObject struct {
		Resting *struct {
			OID int64 `json:"oid"`
		} `json:"resting"`
		Filled *struct {
			OID    int64  `json:"oid"`
			TotalSz string `json:"totalSz"`
			AvgPx   string `json:"avgPx"`
		} `json:"filled"`
		Error string `json:"error"`
	}
	var obj orderResultStatusObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = orderResultStatus{Resting: obj.Resting, Filled: obj.Filled, Error: obj.Error}
	return nil
}

type exchangeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []orderResultStatus `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

// OrderResult is the connector's unified view of a submitted order's
// immediate acknowledgement — either resting (open, unfilled) or filled
// (crossed/IOC); both are a successful submission.
type OrderResult struct {
	ExchangeID   string
	Status       types.OrderStatus
	FilledSize   decimal.Decimal
	AvgFillPrice decimal.Decimal
}

// marketSlippage is the price buffer applied when a market order is
// translated into an IOC limit: the limit lands 5% through the best
// opposite-side price, so it crosses every level priced within 5% of the
// touch; levels beyond that are not reached.
var (
	marketBuyFactor  = decimal.MustFromString("1.05")
	marketSellFactor = decimal.MustFromString("0.95")
)

// marketPrice derives the far-through limit price a market order is
// submitted at. Hyperliquid has no native market order type; the venue
// convention is an IOC limit priced through the touch.
func (c *Client) marketPrice(ctx context.Context, coin string, side types.Side) (decimal.Decimal, error) {
	bids, asks, err := c.GetL2Book(ctx, coin)
	if err != nil {
		return decimal.Decimal{}, err
	}

	if side == types.Buy {
		if len(asks) == 0 {
			return decimal.Decimal{}, xerrors.New(xerrors.KindInsufficientLiquidity, "market_price", fmt.Errorf("no asks for %s", coin))
		}
		return asks[0].Price.Mul(marketBuyFactor)
	}
	if len(bids) == 0 {
		return decimal.Decimal{}, xerrors.New(xerrors.KindInsufficientLiquidity, "market_price", fmt.Errorf("no bids for %s", coin))
	}
	return bids[0].Price.Mul(marketSellFactor)
}

// CreateOrder submits a single order action, signs it, and parses the dual
// resting/filled response shape. coin is the venue asset symbol (e.g. "BTC");
// the asset index and tick/lot rounding are resolved from the meta cache.
// Market orders are priced here as far-through IOC limits.
func (c *Client) CreateOrder(ctx context.Context, coin string, req types.OrderRequest) (OrderResult, error) {
	if c.signer == nil {
		return OrderResult{}, xerrors.New(xerrors.KindSignerRequired, "create_order", fmt.Errorf("client has no signing key configured"))
	}
	if req.Size.Sign() <= 0 {
		return OrderResult{}, xerrors.New(xerrors.KindInvalidOrder, "create_order", fmt.Errorf("size must be positive, got %s", req.Size.String()))
	}
	if req.Type == types.Limit && req.Price.Sign() <= 0 {
		return OrderResult{}, xerrors.New(xerrors.KindInvalidOrder, "create_order", fmt.Errorf("limit price must be positive, got %s", req.Price.String()))
	}

	meta, err := c.meta.lookup(coin)
	if err != nil {
		return OrderResult{}, err
	}

	price := req.Price
	if req.Type == types.Market {
		price, err = c.marketPrice(ctx, coin, req.Side)
		if err != nil {
			return OrderResult{}, err
		}
	}

	priceStr, err := normalizePrice(meta, price)
	if err != nil {
		return OrderResult{}, err
	}
	sizeStr, err := normalizeSize(meta, req.Size)
	if err != nil {
		return OrderResult{}, err
	}

	wire := hlwire.BuildOrderWire(meta.assetIndex, req, priceStr, sizeStr)
	action := hlwire.OrderAction{Type: "order", Orders: []hlwire.OrderWire{wire}, Grouping: "na"}

	resp, err := c.submitAction(ctx, action)
	if err != nil {
		return OrderResult{}, err
	}

	if len(resp.Response.Data.Statuses) == 0 {
		return OrderResult{}, xerrors.New(xerrors.KindInvalidOrderResponse, "create_order", fmt.Errorf("empty statuses array"))
	}
	status := resp.Response.Data.Statuses[0]

	switch {
	case status.Resting != nil:
		return OrderResult{
			ExchangeID: fmt.Sprintf("%d", status.Resting.OID),
			Status:     types.StatusOpen,
		}, nil
	case status.Filled != nil:
		filledSize, err := decimal.NewFromString(status.Filled.TotalSz)
		if err != nil {
			return OrderResult{}, xerrors.New(xerrors.KindInvalidOrderResponse, "create_order", err)
		}
		avgPx, err := decimal.NewFromString(status.Filled.AvgPx)
		if err != nil {
			return OrderResult{}, xerrors.New(xerrors.KindInvalidOrderResponse, "create_order", err)
		}
		return OrderResult{
			ExchangeID:   fmt.Sprintf("%d", status.Filled.OID),
			Status:       types.StatusFilled,
			FilledSize:   filledSize,
			AvgFillPrice: avgPx,
		}, nil
	case status.Error != "":
		return OrderResult{}, xerrors.New(xerrors.KindRejected, "create_order", fmt.Errorf("%s", status.Error))
	default:
		return OrderResult{}, xerrors.New(xerrors.KindInvalidOrderResponse, "create_order", fmt.Errorf("unrecognized status shape"))
	}
}

// CancelOrder cancels a single resting order by coin and exchange order id.
func (c *Client) CancelOrder(ctx context.Context, coin string, exchangeID int64) error {
	if c.signer == nil {
		return xerrors.New(xerrors.KindSignerRequired, "cancel_order", fmt.Errorf("client has no signing key configured"))
	}
	meta, err := c.meta.lookup(coin)
	if err != nil {
		return err
	}

	action := hlwire.CancelAction{Type: "cancel", Cancels: []hlwire.CancelWire{{Asset: meta.assetIndex, OID: exchangeID}}}
	resp, err := c.submitAction(ctx, action)
	if err != nil {
		return err
	}
	if resp.Status != "ok" {
		return xerrors.New(xerrors.KindOrderNotCancellable, "cancel_order", fmt.Errorf("status %q", resp.Status))
	}
	return nil
}

// CancelRequest identifies one order to cancel in a CancelOrders batch.
type CancelRequest struct {
	Coin       string
	ExchangeID int64
}

// CancelOrders cancels a batch of orders in one signed action, falling back
// to per-order CancelOrder when the venue's batch endpoint rejects the
// whole action.
func (c *Client) CancelOrders(ctx context.Context, cancels []CancelRequest) (cancelled int, err error) {
	if c.signer == nil {
		return 0, xerrors.New(xerrors.KindSignerRequired, "cancel_orders", fmt.Errorf("client has no signing key configured"))
	}
	if len(cancels) == 0 {
		return 0, nil
	}

	wires := make([]hlwire.CancelWire, 0, len(cancels))
	for _, c2 := range cancels {
		meta, lookupErr := c.meta.lookup(c2.Coin)
		if lookupErr != nil {
			continue
		}
		wires = append(wires, hlwire.CancelWire{Asset: meta.assetIndex, OID: c2.ExchangeID})
	}

	action := hlwire.CancelAction{Type: "cancel", Cancels: wires}
	resp, batchErr := c.submitAction(ctx, action)
	if batchErr == nil && resp.Status == "ok" {
		return len(wires), nil
	}

	// Batch failed: fall back to cancelling one at a time, counting
	// individual successes. The call fails only when every per-order cancel
	// failed, and then returns the last per-order error.
	var lastErr error
	for _, c2 := range cancels {
		cancelErr := c.CancelOrder(ctx, c2.Coin, c2.ExchangeID)
		if cancelErr == nil {
			cancelled++
			continue
		}
		lastErr = cancelErr
	}
	if cancelled == 0 && lastErr != nil {
		return 0, lastErr
	}
	return cancelled, nil
}

func (c *Client) submitAction(ctx context.Context, action any) (exchangeResponse, error) {
	nonce := c.nonces.Next()
	sig, err := c.signer.Sign(action, nonce, nil, nil)
	if err != nil {
		return exchangeResponse{}, xerrors.New(xerrors.KindSignatureRejected, "submit_action", err)
	}

	req := transport.ExchangeRequest{
		Action: action,
		Nonce:  nonce,
		Signature: transport.ExchangeSignature{
			R: sig.R, S: sig.S, V: sig.V,
		},
	}

	var resp exchangeResponse
	if err := c.http.Exchange(ctx, req, &resp); err != nil {
		return exchangeResponse{}, err
	}
	if resp.Status != "ok" {
		return resp, xerrors.New(xerrors.KindRejected, "submit_action", fmt.Errorf("status %q", resp.Status))
	}
	return resp, nil
}

