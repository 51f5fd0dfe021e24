package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"

	"hyperliquid-trader/internal/xerrors"
	"hyperliquid-trader/pkg/decimal"
	"hyperliquid-trader/pkg/types"
)

// leverageWire is the {"type":"cross"|"isolated","value":N} leverage object
// embedded in each asset position.
type leverageWire struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

type assetPositionWire struct {
	Position struct {
		Coin           string       `json:"coin"`
		Szi            string       `json:"szi"`
		EntryPx        string       `json:"entryPx"`
		Leverage       leverageWire `json:"leverage"`
		LiquidationPx  string       `json:"liquidationPx"`
		MarginUsed     string       `json:"marginUsed"`
		UnrealizedPnl  string       `json:"unrealizedPnl"`
	} `json:"position"`
}

type marginSummaryWire struct {
	AccountValue    string `json:"accountValue"`
	TotalMarginUsed string `json:"totalMarginUsed"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
}

// clearinghouseStateWire is the {"type":"clearinghouseState","user":...}
// response shape: margin summary plus one entry per open position.
type clearinghouseStateWire struct {
	MarginSummary  marginSummaryWire   `json:"marginSummary"`
	Withdrawable   string              `json:"withdrawable"`
	AssetPositions []assetPositionWire `json:"assetPositions"`
}

// Sync fetches the authoritative clearinghouse state for the master address
// and parses it into the unified Account/Position shapes: exchange state
// always wins on reconnect.
func (c *Client) Sync(ctx context.Context) (types.Account, error) {
	var resp clearinghouseStateWire
	req := map[string]string{"type": "clearinghouseState", "user": c.master.Hex()}
	if err := c.http.Info(ctx, req, &resp); err != nil {
		return types.Account{}, err
	}
	return parseClearinghouseState(resp)
}

func parseClearinghouseState(resp clearinghouseStateWire) (types.Account, error) {
	accountValue, err := decimal.NewFromString(resp.MarginSummary.AccountValue)
	if err != nil {
		return types.Account{}, xerrors.New(xerrors.KindInvalidResponse, "sync", err)
	}
	marginUsed, err := decimal.NewFromString(resp.MarginSummary.TotalMarginUsed)
	if err != nil {
		return types.Account{}, xerrors.New(xerrors.KindInvalidResponse, "sync", err)
	}
	withdrawable, err := decimal.NewFromString(resp.Withdrawable)
	if err != nil {
		withdrawable = decimal.Zero
	}

	account := types.Account{
		TotalBalance:     accountValue,
		AvailableBalance: withdrawable,
		MarginUsed:       marginUsed,
		AccountValue:     accountValue,
	}

	for _, ap := range resp.AssetPositions {
		pos, err := parseAssetPosition(ap)
		if err != nil {
			return types.Account{}, err
		}
		if pos.Size.IsZero() {
			continue
		}
		account.Positions = append(account.Positions, pos)
		account.TotalUnrealizedPnL, err = account.TotalUnrealizedPnL.Add(pos.UnrealizedPnL)
		if err != nil {
			return types.Account{}, err
		}
	}
	return account, nil
}

func parseAssetPosition(ap assetPositionWire) (types.Position, error) {
	szi, err := decimal.NewFromString(ap.Position.Szi)
	if err != nil {
		return types.Position{}, xerrors.New(xerrors.KindInvalidResponse, "parse_position", err)
	}
	entryPx, err := decimal.NewFromString(ap.Position.EntryPx)
	if err != nil {
		entryPx = decimal.Zero
	}
	liqPx, err := decimal.NewFromString(ap.Position.LiquidationPx)
	if err != nil {
		liqPx = decimal.Zero
	}
	marginUsed, err := decimal.NewFromString(ap.Position.MarginUsed)
	if err != nil {
		marginUsed = decimal.Zero
	}
	unrealizedPnl, err := decimal.NewFromString(ap.Position.UnrealizedPnl)
	if err != nil {
		unrealizedPnl = decimal.Zero
	}

	side := types.PositionFlat
	switch szi.Sign() {
	case 1:
		side = types.PositionLong
	case -1:
		side = types.PositionShort
	}

	return types.Position{
		Pair:             types.TradingPair{Symbol: ap.Position.Coin, Quote: "USD"},
		Side:             side,
		Size:             szi.Abs(),
		EntryPrice:       entryPx,
		LiquidationPrice: liqPx,
		Leverage:         decimal.New(int64(ap.Position.Leverage.Value)),
		MarginUsed:       marginUsed,
		UnrealizedPnL:    unrealizedPnl,
	}, nil
}

// openOrderWire is one element of the {"type":"openOrders"} response.
type openOrderWire struct {
	Coin      string `json:"coin"`
	LimitPx   string `json:"limitPx"`
	OID       int64  `json:"oid"`
	Side      string `json:"side"`
	Sz        string `json:"sz"`
	Timestamp int64  `json:"timestamp"`
	Cloid     string `json:"cloid"` // present only when the order carried one
}

// GetOpenOrders fetches every resting order for the master address.
func (c *Client) GetOpenOrders(ctx context.Context) ([]types.Order, error) {
	var resp []openOrderWire
	req := map[string]string{"type": "openOrders", "user": c.master.Hex()}
	if err := c.http.Info(ctx, req, &resp); err != nil {
		return nil, err
	}

	out := make([]types.Order, 0, len(resp))
	for _, o := range resp {
		px, err := decimal.NewFromString(o.LimitPx)
		if err != nil {
			continue
		}
		sz, err := decimal.NewFromString(o.Sz)
		if err != nil {
			continue
		}
		side := types.Buy
		if o.Side != "B" && o.Side != "buy" {
			side = types.Sell
		}
		out = append(out, types.Order{
			ClientID:   o.Cloid,
			ExchangeID: fmt.Sprintf("%d", o.OID),
			Pair:       types.TradingPair{Symbol: o.Coin, Quote: "USD"},
			Side:       side,
			Type:       types.Limit,
			Price:      px,
			Size:       sz,
			Status:     types.StatusOpen,
			CreatedAt:  msToTime(o.Timestamp),
			UpdatedAt:  msToTime(o.Timestamp),
		})
	}
	return out, nil
}

// orderStatusWire is the {"type":"orderStatus"} response shape: either
// {"status":"order","order":{"order":{...},"status":"..."}} or
// {"status":"unknownOid"} when the venue has no record of the id.
type orderStatusWire struct {
	Status string `json:"status"`
	Order  struct {
		Order  openOrderWire `json:"order"`
		Status string        `json:"status"`
	} `json:"order"`
}

// GetOrderStatus fetches a single order's current state by exchange order
// id. Returns KindNotFound when the venue has no record of the id.
func (c *Client) GetOrderStatus(ctx context.Context, exchangeID int64) (types.Order, error) {
	var resp orderStatusWire
	req := map[string]any{"type": "orderStatus", "user": c.master.Hex(), "oid": exchangeID}
	if err := c.http.Info(ctx, req, &resp); err != nil {
		return types.Order{}, err
	}
	if resp.Status != "order" {
		return types.Order{}, xerrors.New(xerrors.KindNotFound, "get_order_status", fmt.Errorf("no order found for oid %d", exchangeID))
	}

	o := resp.Order.Order
	px, err := decimal.NewFromString(o.LimitPx)
	if err != nil {
		return types.Order{}, xerrors.New(xerrors.KindInvalidResponse, "get_order_status", err)
	}
	sz, err := decimal.NewFromString(o.Sz)
	if err != nil {
		return types.Order{}, xerrors.New(xerrors.KindInvalidResponse, "get_order_status", err)
	}
	side := types.Buy
	if o.Side != "B" && o.Side != "buy" {
		side = types.Sell
	}

	status := types.StatusOpen
	switch resp.Order.Status {
	case "filled":
		status = types.StatusFilled
	case "canceled", "cancelled":
		status = types.StatusCancelled
	case "rejected":
		status = types.StatusRejected
	}

	return types.Order{
		ExchangeID: fmt.Sprintf("%d", o.OID),
		Pair:       types.TradingPair{Symbol: o.Coin, Quote: "USD"},
		Side:       side,
		Type:       types.Limit,
		Price:      px,
		Size:       sz,
		Status:     status,
		CreatedAt:  msToTime(o.Timestamp),
		UpdatedAt:  msToTime(o.Timestamp),
	}, nil
}

// webData2Wire is the {"channel":"webData2"} WS payload's subset this
// connector consumes: clearinghouse state embedded alongside a lot of other
// UI-only fields this core has no use for.
type webData2Wire struct {
	ClearinghouseState clearinghouseStateWire `json:"clearinghouseState"`
}

// ParseWebData2Frame decodes an inbound webData2 WS frame into an Account.
func ParseWebData2Frame(data json.RawMessage) (types.Account, error) {
	var wire webData2Wire
	if err := json.Unmarshal(data, &wire); err != nil {
		return types.Account{}, xerrors.New(xerrors.KindInvalidResponse, "parse_web_data2_frame", err)
	}
	return parseClearinghouseState(wire.ClearinghouseState)
}

// orderUpdateWire is one element of the {"channel":"orderUpdates"} WS
// payload: an order snapshot plus its current status.
type orderUpdateWire struct {
	Order           openOrderWire `json:"order"`
	Status          string        `json:"status"`
	StatusTimestamp int64         `json:"statusTimestamp"`
}

// ParseOrderUpdatesFrame decodes an inbound orderUpdates WS frame into
// ordermanager.OrderUpdateEvent-shaped data. Returns one entry per order in
// the frame; entries the venue reports in a status this connector doesn't
// recognize still carry the raw order ID and StatusOpen so the caller isn't
// left with nothing to reconcile against.
func ParseOrderUpdatesFrame(data json.RawMessage) ([]OrderUpdate, error) {
	var wires []orderUpdateWire
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, xerrors.New(xerrors.KindInvalidResponse, "parse_order_updates_frame", err)
	}

	out := make([]OrderUpdate, 0, len(wires))
	for _, w := range wires {
		status := types.StatusOpen
		switch w.Status {
		case "filled":
			status = types.StatusFilled
		case "canceled", "cancelled":
			status = types.StatusCancelled
		case "rejected", "marginCanceled":
			status = types.StatusRejected
		}

		var errMsg string
		if status == types.StatusRejected {
			errMsg = w.Status
		}

		out = append(out, OrderUpdate{
			ExchangeID:   fmt.Sprintf("%d", w.Order.OID),
			Status:       status,
			ErrorMessage: errMsg,
		})
	}
	return out, nil
}

// OrderUpdate is the connector's normalized view of one orderUpdates WS
// entry, shaped to feed directly into ordermanager.OrderUpdateEvent.
type OrderUpdate struct {
	ExchangeID   string
	Status       types.OrderStatus
	ErrorMessage string
}

// userFillWire is one element of the {"channel":"userFills"} WS payload.
type userFillWire struct {
	Coin string `json:"coin"`
	Px   string `json:"px"`
	Sz   string `json:"sz"`
	Side string `json:"side"`
	Time int64  `json:"time"`
	OID  int64  `json:"oid"`
	TID  int64  `json:"tid"`
	Fee  string `json:"fee"`
}

// ParseUserFillsFrame decodes an inbound userFills WS frame into Fills,
// tagging each with its originating exchange order id so the order manager
// can attribute it to the right tracked order.
func ParseUserFillsFrame(data json.RawMessage) ([]types.Fill, []int64, error) {
	var payload struct {
		Fills []userFillWire `json:"fills"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		// Some servers send the bare array instead of {"fills":[...]}.
		var bare []userFillWire
		if err2 := json.Unmarshal(data, &bare); err2 != nil {
			return nil, nil, xerrors.New(xerrors.KindInvalidResponse, "parse_user_fills_frame", err)
		}
		payload.Fills = bare
	}

	return parseUserFillWires(payload.Fills)
}

// GetUserFills fetches the master address's recent fills via /info. Fill ids
// are the same (oid, tid) pairs the WS userFills channel carries, so callers
// can deduplicate across the two sources.
func (c *Client) GetUserFills(ctx context.Context) ([]types.Fill, error) {
	var resp []userFillWire
	req := map[string]string{"type": "userFills", "user": c.master.Hex()}
	if err := c.http.Info(ctx, req, &resp); err != nil {
		return nil, err
	}
	fills, _, err := parseUserFillWires(resp)
	return fills, err
}

func parseUserFillWires(wires []userFillWire) ([]types.Fill, []int64, error) {
	fills := make([]types.Fill, 0, len(wires))
	orderIDs := make([]int64, 0, len(wires))
	for _, w := range wires {
		px, err := decimal.NewFromString(w.Px)
		if err != nil {
			continue
		}
		sz, err := decimal.NewFromString(w.Sz)
		if err != nil {
			continue
		}
		fee, err := decimal.NewFromString(w.Fee)
		if err != nil {
			fee = decimal.Zero
		}
		side := types.Buy
		if w.Side != "B" && w.Side != "buy" {
			side = types.Sell
		}
		fills = append(fills, types.Fill{
			OrderID:   fmt.Sprintf("%d", w.OID),
			TradeID:   fmt.Sprintf("%d", w.TID),
			Pair:      types.TradingPair{Symbol: w.Coin, Quote: "USD"},
			Side:      side,
			Price:     px,
			Size:      sz,
			Fee:       fee,
			Timestamp: msToTime(w.Time),
		})
		orderIDs = append(orderIDs, w.OID)
	}
	return fills, orderIDs, nil
}
