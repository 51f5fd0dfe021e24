package position

import (
	"errors"
	"testing"

	"hyperliquid-trader/internal/xerrors"
	"hyperliquid-trader/pkg/decimal"
	"hyperliquid-trader/pkg/types"
)

func pair(base, quote string) types.TradingPair {
	return types.TradingPair{Symbol: base, Quote: quote}
}

func d(s string) decimal.Decimal { return decimal.MustFromString(s) }

// Close half a long at a profit, then close the rest: realized PnL must
// accumulate per reduce and the entry price must never move on a reduce.
func TestApplyFill_CloseHalfThenRest(t *testing.T) {
	tr := New(nil)
	p := pair("ETH", "USDC")

	if err := tr.ApplyFill(p, types.Buy, d("2000"), d("1.0")); err != nil {
		t.Fatalf("open fill: %v", err)
	}
	pos, ok := tr.Get(p)
	if !ok || pos.Side != types.PositionLong || !pos.Size.Equal(d("1.0")) {
		t.Fatalf("unexpected position after open: %+v ok=%v", pos, ok)
	}

	if err := tr.ApplyFill(p, types.Sell, d("2100"), d("0.5")); err != nil {
		t.Fatalf("reduce 1: %v", err)
	}
	pos, _ = tr.Get(p)
	if !pos.RealizedPnL.Equal(d("50")) {
		t.Fatalf("expected realized 50 after first reduce, got %s", pos.RealizedPnL.String())
	}
	if !pos.Size.Equal(d("0.5")) {
		t.Fatalf("expected size 0.5, got %s", pos.Size.String())
	}
	if !pos.EntryPrice.Equal(d("2000")) {
		t.Fatalf("entry price must not move on reduce, got %s", pos.EntryPrice.String())
	}

	if err := tr.ApplyFill(p, types.Sell, d("2050"), d("0.5")); err != nil {
		t.Fatalf("reduce 2: %v", err)
	}
	pos, _ = tr.Get(p)
	if !pos.RealizedPnL.Equal(d("75")) {
		t.Fatalf("expected cumulative realized 75, got %s", pos.RealizedPnL.String())
	}
	if !pos.Size.IsZero() {
		t.Fatalf("expected flat size, got %s", pos.Size.String())
	}
	if pos.Side != types.PositionFlat {
		t.Fatalf("expected flat side, got %s", pos.Side)
	}
	if !pos.EntryPrice.IsZero() {
		t.Fatalf("expected entry price cleared on flat, got %s", pos.EntryPrice.String())
	}
}

func TestApplyFill_WeightedAverageEntryOnAdd(t *testing.T) {
	tr := New(nil)
	p := pair("BTC", "USDC")

	if err := tr.ApplyFill(p, types.Buy, d("50000"), d("1")); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := tr.ApplyFill(p, types.Buy, d("52000"), d("1")); err != nil {
		t.Fatalf("second add: %v", err)
	}
	pos, _ := tr.Get(p)
	if !pos.EntryPrice.Equal(d("51000")) {
		t.Fatalf("expected weighted entry 51000, got %s", pos.EntryPrice.String())
	}
	if !pos.Size.Equal(d("2")) {
		t.Fatalf("expected size 2, got %s", pos.Size.String())
	}
}

func TestApplyFill_OverReduceIsInvariantViolation(t *testing.T) {
	tr := New(nil)
	p := pair("BTC", "USDC")

	if err := tr.ApplyFill(p, types.Buy, d("50000"), d("1")); err != nil {
		t.Fatalf("open: %v", err)
	}
	err := tr.ApplyFill(p, types.Sell, d("51000"), d("2"))
	if err == nil {
		t.Fatal("expected error reducing past tracked size")
	}
	var xerr *xerrors.Error
	if !errors.As(err, &xerr) {
		t.Fatalf("expected *xerrors.Error, got %T", err)
	}
	if xerr.Kind != xerrors.KindInvariantViolated {
		t.Fatalf("expected KindInvariantViolated, got %s", xerr.Kind)
	}

	pos, _ := tr.Get(p)
	if !pos.Size.Equal(d("1")) {
		t.Fatalf("size must be unchanged after a rejected over-reduce, got %s", pos.Size.String())
	}
}

func TestApplyFill_ShortSideRealizesOppositeSign(t *testing.T) {
	tr := New(nil)
	p := pair("ETH", "USDC")

	if err := tr.ApplyFill(p, types.Sell, d("2000"), d("1")); err != nil {
		t.Fatalf("open short: %v", err)
	}
	// Price drops, buy back to cover: profit on a short.
	if err := tr.ApplyFill(p, types.Buy, d("1800"), d("1")); err != nil {
		t.Fatalf("cover: %v", err)
	}
	pos, _ := tr.Get(p)
	if !pos.RealizedPnL.Equal(d("200")) {
		t.Fatalf("expected realized 200 on covered short, got %s", pos.RealizedPnL.String())
	}
	if pos.Side != types.PositionFlat {
		t.Fatalf("expected flat after full cover, got %s", pos.Side)
	}
}

func TestApplyMarkPrice_UpdatesUnrealizedPnL(t *testing.T) {
	tr := New(nil)
	p := pair("BTC", "USDC")

	if err := tr.ApplyFill(p, types.Buy, d("50000"), d("2")); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := tr.ApplyMarkPrice(p, d("51000")); err != nil {
		t.Fatalf("mark: %v", err)
	}
	pos, _ := tr.Get(p)
	if !pos.UnrealizedPnL.Equal(d("2000")) {
		t.Fatalf("expected unrealized 2000, got %s", pos.UnrealizedPnL.String())
	}
}

func TestApplyMarkPrice_NoPositionIsNoop(t *testing.T) {
	tr := New(nil)
	if err := tr.ApplyMarkPrice(pair("SOL", "USDC"), d("100")); err != nil {
		t.Fatalf("expected no-op for untracked pair, got %v", err)
	}
}

func TestSync_ReplacesTrackedState(t *testing.T) {
	tr := New(nil)
	p := pair("BTC", "USDC")
	if err := tr.ApplyFill(p, types.Buy, d("50000"), d("1")); err != nil {
		t.Fatalf("open: %v", err)
	}

	tr.Sync(types.Account{
		TotalBalance: d("10000"),
		Positions: []types.Position{
			{Pair: p, Side: types.PositionLong, Size: d("1.5"), EntryPrice: d("49000"), UnrealizedPnL: d("750")},
		},
	})

	pos, ok := tr.Get(p)
	if !ok {
		t.Fatal("expected position to survive sync")
	}
	if !pos.Size.Equal(d("1.5")) || !pos.EntryPrice.Equal(d("49000")) {
		t.Fatalf("expected exchange snapshot to win, got size=%s entry=%s", pos.Size.String(), pos.EntryPrice.String())
	}

	// A position absent from the new snapshot must be evicted.
	other := pair("ETH", "USDC")
	if err := tr.ApplyFill(other, types.Buy, d("2000"), d("1")); err != nil {
		t.Fatalf("open other: %v", err)
	}
	tr.Sync(types.Account{TotalBalance: d("10000")})
	if _, ok := tr.Get(other); ok {
		t.Fatal("expected position absent from snapshot to be dropped")
	}
}

func TestPortfolioPnL_AggregatesAcrossPositions(t *testing.T) {
	tr := New(nil)
	btc := pair("BTC", "USDC")
	eth := pair("ETH", "USDC")

	if err := tr.ApplyFill(btc, types.Buy, d("50000"), d("1")); err != nil {
		t.Fatalf("open btc: %v", err)
	}
	if err := tr.ApplyFill(eth, types.Buy, d("2000"), d("1")); err != nil {
		t.Fatalf("open eth: %v", err)
	}
	if err := tr.ApplyMarkPrice(btc, d("51000")); err != nil {
		t.Fatalf("mark btc: %v", err)
	}
	if err := tr.ApplyMarkPrice(eth, d("1900")); err != nil {
		t.Fatalf("mark eth: %v", err)
	}

	tr.Sync(types.Account{
		TotalBalance: d("5000"),
		Positions: []types.Position{
			{Pair: btc, Side: types.PositionLong, Size: d("1"), EntryPrice: d("50000"), UnrealizedPnL: d("1000")},
			{Pair: eth, Side: types.PositionLong, Size: d("1"), EntryPrice: d("2000"), UnrealizedPnL: d("-100")},
		},
	})

	pnl, err := tr.PortfolioPnL()
	if err != nil {
		t.Fatalf("portfolio pnl: %v", err)
	}
	if !pnl.Unrealized.Equal(d("900")) {
		t.Fatalf("expected unrealized 900, got %s", pnl.Unrealized.String())
	}
	if !pnl.Equity.Equal(d("5900")) {
		t.Fatalf("expected equity 5900, got %s", pnl.Equity.String())
	}
}

func TestAll_ReturnsSnapshotNotLiveReferences(t *testing.T) {
	tr := New(nil)
	p := pair("BTC", "USDC")
	if err := tr.ApplyFill(p, types.Buy, d("50000"), d("1")); err != nil {
		t.Fatalf("open: %v", err)
	}

	all := tr.All()
	if len(all) != 1 {
		t.Fatalf("expected 1 position, got %d", len(all))
	}
	all[0].Size = d("999")

	pos, _ := tr.Get(p)
	if pos.Size.Equal(d("999")) {
		t.Fatal("All() must return copies, not live references into the store")
	}
}
