package hyperliquid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"hyperliquid-trader/internal/transport"
	"hyperliquid-trader/pkg/decimal"
)

func newTestMetaCache(t *testing.T, universe string) *metaCache {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(universe))
	}))
	t.Cleanup(server.Close)

	httpClient := transport.NewHTTPClient(transport.HTTPConfig{BaseURL: server.URL}, transport.NewTokenBucket(20, 20), testLogger())
	cache := newMetaCache()
	if err := cache.Refresh(context.Background(), httpClient); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return cache
}

func TestMetaCacheDerivesTickAndLotFromSzDecimals(t *testing.T) {
	t.Parallel()

	cache := newTestMetaCache(t, `{"universe":[{"name":"BTC","szDecimals":5},{"name":"DOGE","szDecimals":0}]}`)

	btc, err := cache.lookup("BTC")
	if err != nil {
		t.Fatal(err)
	}
	if btc.assetIndex != 0 {
		t.Errorf("BTC assetIndex = %d, want 0", btc.assetIndex)
	}
	// maxPriceDecimals(6) - szDecimals(5) = 1 -> tick 0.1
	if btc.tick.String() != "0.1" {
		t.Errorf("BTC tick = %s, want 0.1", btc.tick.String())
	}
	if btc.lot.String() != "0.00001" {
		t.Errorf("BTC lot = %s, want 0.00001", btc.lot.String())
	}

	doge, err := cache.lookup("DOGE")
	if err != nil {
		t.Fatal(err)
	}
	if doge.assetIndex != 1 {
		t.Errorf("DOGE assetIndex = %d, want 1", doge.assetIndex)
	}
	if doge.tick.String() != "0.000001" {
		t.Errorf("DOGE tick = %s, want 0.000001", doge.tick.String())
	}
}

func TestMetaCacheLookupUnknownCoin(t *testing.T) {
	t.Parallel()
	cache := newTestMetaCache(t, `{"universe":[{"name":"BTC","szDecimals":5}]}`)
	if _, err := cache.lookup("ETH"); err == nil {
		t.Fatal("expected error for unknown coin")
	}
}

func TestNormalizePriceRoundsToTick(t *testing.T) {
	t.Parallel()
	meta := assetMeta{tick: decimal.MustFromString("0.1"), lot: decimal.MustFromString("0.001")}

	got, err := normalizePrice(meta, decimal.MustFromString("87000.34"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "87000.3" {
		t.Errorf("normalizePrice = %s, want 87000.3", got)
	}
}

func TestNormalizeSizeRejectsZeroAfterRounding(t *testing.T) {
	t.Parallel()
	meta := assetMeta{tick: decimal.MustFromString("0.1"), lot: decimal.MustFromString("1")}

	if _, err := normalizeSize(meta, decimal.MustFromString("0.4")); err == nil {
		t.Fatal("expected error when size rounds to zero")
	}

	got, err := normalizeSize(meta, decimal.MustFromString("2.6"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "3" {
		t.Errorf("normalizeSize = %s, want 3", got)
	}
}
