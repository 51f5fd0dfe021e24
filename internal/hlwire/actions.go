// Package hlwire encodes Hyperliquid trading actions into the canonical
// MessagePack byte string that gets hashed and signed. Field order is not
// cosmetic here: the signature is only valid if the encoded bytes match
// byte-for-byte what the venue re-derives server-side, so every action
// struct below declares its fields in the exact order Hyperliquid expects
// and relies on vmihailenco/msgpack's struct-as-map encoder preserving
// declaration order.
package hlwire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"hyperliquid-trader/pkg/types"
)

// LimitOrderType carries the limit-order time-in-force tag.
type LimitOrderType struct {
	Tif string `msgpack:"tif" json:"tif"`
}

// OrderTypeWire is the tagged-union "t" field of an order action. Exactly
// one of Limit/Trigger is populated; only Limit is implemented since market
// orders are submitted to Hyperliquid as IOC limit orders at a slippage-
// adjusted price (see BuildOrderWire).
type OrderTypeWire struct {
	Limit *LimitOrderType `msgpack:"limit,omitempty" json:"limit,omitempty"`
}

// OrderWire is a single order in Hyperliquid's canonical wire shape. Field
// order (a, b, p, s, r, t) is frozen — do not reorder these declarations.
type OrderWire struct {
	Asset      int           `msgpack:"a" json:"a"`
	IsBuy      bool          `msgpack:"b" json:"b"`
	Price      string        `msgpack:"p" json:"p"`
	Size       string        `msgpack:"s" json:"s"`
	ReduceOnly bool          `msgpack:"r" json:"r"`
	Type       OrderTypeWire `msgpack:"t" json:"t"`
	ClientID   string        `msgpack:"c,omitempty" json:"c,omitempty"`
}

// OrderAction is the top-level {"type":"order", ...} action body.
type OrderAction struct {
	Type     string      `msgpack:"type" json:"type"`
	Orders   []OrderWire `msgpack:"orders" json:"orders"`
	Grouping string      `msgpack:"grouping" json:"grouping"`
}

// CancelWire is a single cancel in Hyperliquid's canonical wire shape.
// Field order (a, o) is frozen.
type CancelWire struct {
	Asset int   `msgpack:"a" json:"a"`
	OID   int64 `msgpack:"o" json:"o"`
}

// CancelAction is the top-level {"type":"cancel", ...} action body.
type CancelAction struct {
	Type    string       `msgpack:"type" json:"type"`
	Cancels []CancelWire `msgpack:"cancels" json:"cancels"`
}

func tifWire(tif types.TimeInForce) string {
	switch tif {
	case types.ImmediateOrCancel:
		return "Ioc"
	case types.AddLiquidityOnly:
		return "Alo"
	default:
		return "Gtc"
	}
}

// BuildOrderWire converts a decimal-typed OrderRequest into the string-typed
// wire representation Hyperliquid's msgpack encoding expects. priceStr and
// sizeStr must already be tick/lot-rounded and formatted by the caller
// (internal/hyperliquid owns rounding); this function only shapes the
// struct, it does not round.
func BuildOrderWire(asset int, req types.OrderRequest, priceStr, sizeStr string) OrderWire {
	tif := tifWire(req.TimeInForce)
	if req.Type == types.Market {
		tif = "Ioc"
	}
	return OrderWire{
		Asset:      asset,
		IsBuy:      req.Side == types.Buy,
		Price:      priceStr,
		Size:       sizeStr,
		ReduceOnly: req.ReduceOnly,
		Type:       OrderTypeWire{Limit: &LimitOrderType{Tif: tif}},
		ClientID:   req.ClientID,
	}
}

// EncodeAction marshals an action struct (OrderAction, CancelAction, or any
// other Hyperliquid action) into canonical MessagePack bytes.
func EncodeAction(action interface{}) ([]byte, error) {
	b, err := msgpack.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("hlwire: encode action: %w", err)
	}
	return b, nil
}
