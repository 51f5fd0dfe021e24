// Package hyperliquid is the concrete Hyperliquid perpetuals connector: it
// wires hlwire (encoding), hlsign (signing), and transport (HTTP/WS) into
// the order submission, market data, and account data operations the rest
// of the core depends on. Client is one struct wrapping a rate-limited HTTP
// transport plus an auth/signing provider for Hyperliquid's info/exchange
// split.
package hyperliquid

import (
	"context"
	"fmt"
	"sync"

	"hyperliquid-trader/internal/transport"
	"hyperliquid-trader/internal/xerrors"
	"hyperliquid-trader/pkg/decimal"
)

// assetMeta is one entry from the universe metadata: the venue's integer
// asset index plus its tick/lot precision, derived from szDecimals.
type assetMeta struct {
	assetIndex int
	szDecimals int
	tick       decimal.Decimal
	lot        decimal.Decimal
}

// metaResponse mirrors Hyperliquid's {"type":"meta"} response: a flat list
// of perpetual universe entries in asset-index order.
type metaResponse struct {
	Universe []struct {
		Name       string `json:"name"`
		SzDecimals int    `json:"szDecimals"`
	} `json:"universe"`
}

// metaCache holds the venue's per-asset tick/lot sizing, rebuilt on each
// Refresh call. Hyperliquid derives price precision from szDecimals
// (MAX_DECIMALS - szDecimals decimal places for perps, MAX_DECIMALS=6)
// rather than publishing a tick size directly; lot size is 10^-szDecimals.
type metaCache struct {
	mu     sync.RWMutex
	byCoin map[string]assetMeta
}

const maxPriceDecimals = 6

func newMetaCache() *metaCache {
	return &metaCache{byCoin: make(map[string]assetMeta)}
}

// Refresh fetches /info {"type":"meta"} and rebuilds the tick/lot cache.
func (m *metaCache) Refresh(ctx context.Context, http *transport.HTTPClient) error {
	var resp metaResponse
	if err := http.Info(ctx, map[string]string{"type": "meta"}, &resp); err != nil {
		return err
	}

	byCoin := make(map[string]assetMeta, len(resp.Universe))
	for i, u := range resp.Universe {
		lotDecimals := u.SzDecimals
		priceDecimals := maxPriceDecimals - u.SzDecimals
		if priceDecimals < 0 {
			priceDecimals = 0
		}
		tick, err := decimalAtPrecision(priceDecimals)
		if err != nil {
			return fmt.Errorf("hyperliquid: build tick size for %s: %w", u.Name, err)
		}
		lot, err := decimalAtPrecision(lotDecimals)
		if err != nil {
			return fmt.Errorf("hyperliquid: build lot size for %s: %w", u.Name, err)
		}
		byCoin[u.Name] = assetMeta{assetIndex: i, szDecimals: u.SzDecimals, tick: tick, lot: lot}
	}

	m.mu.Lock()
	m.byCoin = byCoin
	m.mu.Unlock()
	return nil
}

// decimalAtPrecision returns 10^-n as a Decimal, e.g. precision 2 -> "0.01".
func decimalAtPrecision(n int) (decimal.Decimal, error) {
	if n <= 0 {
		return decimal.New(1), nil
	}
	s := "0."
	for i := 1; i < n; i++ {
		s += "0"
	}
	s += "1"
	return decimal.NewFromString(s)
}

func (m *metaCache) lookup(coin string) (assetMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.byCoin[coin]
	if !ok {
		return assetMeta{}, xerrors.New(xerrors.KindInvalidPair, "meta_lookup", fmt.Errorf("unknown coin %q", coin))
	}
	return meta, nil
}

// normalizePrice rounds px to the asset's tick size and renders it in
// signature-safe form (no trailing zeros).
func normalizePrice(meta assetMeta, px decimal.Decimal) (string, error) {
	rounded, err := px.RoundToTick(meta.tick)
	if err != nil {
		return "", xerrors.New(xerrors.KindInvalidTickSize, "normalize_price", err)
	}
	return rounded.String(), nil
}

// normalizeSize rounds sz to a multiple of the asset's lot size and rejects
// a zero result — a non-zero post-rounding quantity is required to submit.
func normalizeSize(meta assetMeta, sz decimal.Decimal) (string, error) {
	rounded, err := sz.RoundToTick(meta.lot)
	if err != nil {
		return "", xerrors.New(xerrors.KindInvalidTickSize, "normalize_size", err)
	}
	if rounded.IsZero() {
		return "", xerrors.New(xerrors.KindInvalidOrder, "normalize_size", fmt.Errorf("size rounds to zero at lot size %s", meta.lot.String()))
	}
	return rounded.String(), nil
}
