package hlwire

import (
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"hyperliquid-trader/pkg/types"
)

func TestBuildOrderWireShape(t *testing.T) {
	t.Parallel()

	req := types.OrderRequest{
		ClientID:    "abc123",
		Side:        types.Buy,
		Type:        types.Limit,
		TimeInForce: types.GoodTilCancel,
		ReduceOnly:  false,
	}
	wire := BuildOrderWire(5, req, "100.5", "2.0")

	if wire.Asset != 5 || !wire.IsBuy || wire.Price != "100.5" || wire.Size != "2.0" {
		t.Fatalf("unexpected wire shape: %+v", wire)
	}
	if wire.Type.Limit == nil || wire.Type.Limit.Tif != "Gtc" {
		t.Fatalf("expected Gtc tif, got %+v", wire.Type)
	}
}

func TestBuildOrderWireMarketForcesIOC(t *testing.T) {
	t.Parallel()
	req := types.OrderRequest{Side: types.Sell, Type: types.Market, TimeInForce: types.GoodTilCancel}
	wire := BuildOrderWire(1, req, "99", "1")
	if wire.Type.Limit.Tif != "Ioc" {
		t.Errorf("market order tif = %s, want Ioc", wire.Type.Limit.Tif)
	}
}

func TestEncodeActionRoundTrips(t *testing.T) {
	t.Parallel()

	action := OrderAction{
		Type:     "order",
		Grouping: "na",
		Orders: []OrderWire{
			BuildOrderWire(0, types.OrderRequest{Side: types.Buy, TimeInForce: types.GoodTilCancel}, "10", "1"),
		},
	}
	encoded, err := EncodeAction(action)
	if err != nil {
		t.Fatal(err)
	}
	if len(encoded) == 0 {
		t.Fatal("expected non-empty encoded bytes")
	}

	var decoded map[string]interface{}
	if err := msgpack.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("decoded bytes were not valid msgpack: %v", err)
	}
	if decoded["type"] != "order" {
		t.Errorf("decoded type = %v, want order", decoded["type"])
	}
}

func TestEncodeActionDeterministic(t *testing.T) {
	t.Parallel()

	action := CancelAction{Type: "cancel", Cancels: []CancelWire{{Asset: 0, OID: 42}}}
	a, err := EncodeAction(action)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncodeAction(action)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatal("expected identical encodings for identical input (canonical encoding)")
	}
}
