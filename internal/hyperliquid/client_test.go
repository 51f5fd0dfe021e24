package hyperliquid

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"hyperliquid-trader/internal/transport"
	"hyperliquid-trader/pkg/decimal"
	"hyperliquid-trader/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testPrivateKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		IsMainnet:     false,
		MasterAddress: "0x0000000000000000000000000000000000000001",
		PrivateKeyHex: testPrivateKeyHex,
		HTTP:          transport.HTTPConfig{BaseURL: server.URL},
	}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Seed the meta cache directly so tests don't need a second handler route.
	client.meta.mu.Lock()
	client.meta.byCoin = map[string]assetMeta{
		"BTC": {assetIndex: 3, szDecimals: 5, tick: decimal.MustFromString("0.1"), lot: decimal.MustFromString("0.00001")},
	}
	client.meta.mu.Unlock()

	return client
}

func TestCreateOrderParsesRestingResponse(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","response":{"type":"order","data":{"statuses":[{"resting":{"oid":12345}}]}}}`))
	})

	result, err := client.CreateOrder(t.Context(), "BTC", types.OrderRequest{
		Side:        types.Buy,
		Type:        types.Limit,
		TimeInForce: types.GoodTilCancel,
		Price:       decimal.MustFromString("87000.34"),
		Size:        decimal.MustFromString("0.5"),
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if result.ExchangeID != "12345" {
		t.Errorf("ExchangeID = %q, want 12345", result.ExchangeID)
	}
	if result.Status != types.StatusOpen {
		t.Errorf("Status = %q, want open", result.Status)
	}
}

func TestCreateOrderParsesFilledResponse(t *testing.T) {
	t.Parallel()

	var submittedPrice string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/info" {
			// Market orders fetch the book to derive their far-through price.
			w.Write([]byte(`{"coin":"BTC","time":1,"levels":[[{"px":"86999.9","sz":"1","n":1}],[{"px":"87000","sz":"1","n":1}]]}`))
			return
		}
		var body struct {
			Action struct {
				Orders []struct {
					P string `json:"p"`
				} `json:"orders"`
			} `json:"action"`
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		if len(body.Action.Orders) == 1 {
			submittedPrice = body.Action.Orders[0].P
		}
		w.Write([]byte(`{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"oid":999,"totalSz":"0.5","avgPx":"87000.3"}}]}}}`))
	})

	result, err := client.CreateOrder(t.Context(), "BTC", types.OrderRequest{
		Side:        types.Buy,
		Type:        types.Market,
		TimeInForce: types.ImmediateOrCancel,
		Size:        decimal.MustFromString("0.5"),
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if result.Status != types.StatusFilled {
		t.Errorf("Status = %q, want filled", result.Status)
	}
	if result.FilledSize.String() != "0.5" {
		t.Errorf("FilledSize = %s, want 0.5", result.FilledSize.String())
	}
	if result.AvgFillPrice.String() != "87000.3" {
		t.Errorf("AvgFillPrice = %s, want 87000.3", result.AvgFillPrice.String())
	}
	// Best ask 87000 pushed 5% through and tick-rounded: the IOC limit must
	// cross every level priced within 5% of the touch.
	if submittedPrice != "91350" {
		t.Errorf("submitted market price = %q, want 91350", submittedPrice)
	}
}

func TestCreateOrderSurfacesVenueRejection(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","response":{"type":"order","data":{"statuses":[{"error":"Order would immediately match and take liquidity"}]}}}`))
	})

	_, err := client.CreateOrder(t.Context(), "BTC", types.OrderRequest{
		Side:        types.Buy,
		Type:        types.Limit,
		TimeInForce: types.AddLiquidityOnly,
		Price:       decimal.MustFromString("87000"),
		Size:        decimal.MustFromString("0.5"),
	})
	if err == nil {
		t.Fatal("expected error for venue rejection")
	}
}

func TestCreateOrderRequiresSigner(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should reach the server without a signer")
	}))
	t.Cleanup(server.Close)

	client, err := New(Config{
		MasterAddress: "0x0000000000000000000000000000000000000001",
		HTTP:          transport.HTTPConfig{BaseURL: server.URL},
	}, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.CreateOrder(t.Context(), "BTC", types.OrderRequest{})
	if err == nil {
		t.Fatal("expected error when no signer is configured")
	}
}

func TestCancelOrdersFallsBackToPerOrderOnBatchFailure(t *testing.T) {
	t.Parallel()

	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body struct {
			Action struct {
				Cancels []json.RawMessage `json:"cancels"`
			} `json:"action"`
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)

		w.Header().Set("Content-Type", "application/json")
		if len(body.Action.Cancels) > 1 {
			w.Write([]byte(`{"status":"err","response":{"type":"cancel","data":{}}}`))
			return
		}
		w.Write([]byte(`{"status":"ok","response":{"type":"cancel","data":{"statuses":["success"]}}}`))
	})

	cancelled, err := client.CancelOrders(t.Context(), []CancelRequest{
		{Coin: "BTC", ExchangeID: 1},
		{Coin: "BTC", ExchangeID: 2},
	})
	if err != nil {
		t.Fatalf("CancelOrders: %v", err)
	}
	if cancelled != 2 {
		t.Errorf("cancelled = %d, want 2", cancelled)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (1 batch attempt + 2 fallback)", calls)
	}
}
