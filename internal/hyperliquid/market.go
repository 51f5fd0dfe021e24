package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"

	"hyperliquid-trader/internal/xerrors"
	"hyperliquid-trader/pkg/decimal"
	"hyperliquid-trader/pkg/types"
)

// levelWire is a single {"px":"...","sz":"...","n":N} L2 level as
// Hyperliquid serializes it, both over REST (l2Book info request) and WS
// (l2Book subscription).
type levelWire struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

func (l levelWire) toLevel() (types.OrderbookLevel, error) {
	px, err := decimal.NewFromString(l.Px)
	if err != nil {
		return types.OrderbookLevel{}, err
	}
	sz, err := decimal.NewFromString(l.Sz)
	if err != nil {
		return types.OrderbookLevel{}, err
	}
	return types.OrderbookLevel{Price: px, Size: sz, OrderCount: l.N}, nil
}

// l2BookWire is the {"coin":"...","levels":[[bids...],[asks...]]} shape
// both the REST l2Book response and the WS l2Book channel share.
type l2BookWire struct {
	Coin   string        `json:"coin"`
	Levels [2][]levelWire `json:"levels"`
	Time   int64         `json:"time"`
}

// GetL2Book fetches a full L2 snapshot for coin via /info.
func (c *Client) GetL2Book(ctx context.Context, coin string) (bids, asks []types.OrderbookLevel, err error) {
	var resp l2BookWire
	if err := c.http.Info(ctx, map[string]string{"type": "l2Book", "coin": coin}, &resp); err != nil {
		return nil, nil, err
	}
	return parseL2BookWire(resp)
}

func parseL2BookWire(resp l2BookWire) (bids, asks []types.OrderbookLevel, err error) {
	bids = make([]types.OrderbookLevel, 0, len(resp.Levels[0]))
	for _, l := range resp.Levels[0] {
		lvl, err := l.toLevel()
		if err != nil {
			return nil, nil, xerrors.New(xerrors.KindInvalidResponse, "get_l2_book", err)
		}
		bids = append(bids, lvl)
	}
	asks = make([]types.OrderbookLevel, 0, len(resp.Levels[1]))
	for _, l := range resp.Levels[1] {
		lvl, err := l.toLevel()
		if err != nil {
			return nil, nil, xerrors.New(xerrors.KindInvalidResponse, "get_l2_book", err)
		}
		asks = append(asks, lvl)
	}
	return bids, asks, nil
}

// allMidsResponse is the {"COIN": "mid_px", ...} shape of {"type":"allMids"}.
type allMidsResponse map[string]string

// GetAllMids fetches every coin's current mid price.
func (c *Client) GetAllMids(ctx context.Context) (map[string]decimal.Decimal, error) {
	var resp allMidsResponse
	if err := c.http.Info(ctx, map[string]string{"type": "allMids"}, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(resp))
	for coin, px := range resp {
		d, err := decimal.NewFromString(px)
		if err != nil {
			return nil, xerrors.New(xerrors.KindInvalidResponse, "get_all_mids", fmt.Errorf("coin %s: %w", coin, err))
		}
		out[coin] = d
	}
	return out, nil
}

// tradeWire is one element of the {"type":"trades"} WS channel payload.
type tradeWire struct {
	Coin string `json:"coin"`
	Side string `json:"side"`
	Px   string `json:"px"`
	Sz   string `json:"sz"`
	Time int64  `json:"time"`
	Hash string `json:"hash"`
	TID  int64  `json:"tid"`
}

// ParseL2BookFrame decodes an inbound l2Book WS frame's data payload.
func ParseL2BookFrame(data json.RawMessage) (coin string, bids, asks []types.OrderbookLevel, err error) {
	var wire l2BookWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return "", nil, nil, xerrors.New(xerrors.KindInvalidResponse, "parse_l2_book_frame", err)
	}
	bids, asks, err = parseL2BookWire(wire)
	if err != nil {
		return "", nil, nil, err
	}
	return wire.Coin, bids, asks, nil
}

// ParseTradesFrame decodes an inbound trades WS frame's data payload.
func ParseTradesFrame(data json.RawMessage) ([]types.Fill, error) {
	var wires []tradeWire
	if err := json.Unmarshal(data, &wires); err != nil {
		return nil, xerrors.New(xerrors.KindInvalidResponse, "parse_trades_frame", err)
	}
	out := make([]types.Fill, 0, len(wires))
	for _, w := range wires {
		px, err := decimal.NewFromString(w.Px)
		if err != nil {
			continue
		}
		sz, err := decimal.NewFromString(w.Sz)
		if err != nil {
			continue
		}
		side := types.Buy
		if w.Side != "B" && w.Side != "buy" {
			side = types.Sell
		}
		out = append(out, types.Fill{
			TradeID: fmt.Sprintf("%d", w.TID),
			Pair:    types.TradingPair{Symbol: w.Coin, Quote: "USD"},
			Side:    side,
			Price:   px,
			Size:    sz,
			Timestamp: msToTime(w.Time),
		})
	}
	return out, nil
}
