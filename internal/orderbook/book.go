// Package orderbook maintains a local L2 mirror of a single pair's order
// book, fed by REST snapshots and WebSocket deltas, behind a
// mutex-protected struct. Deltas insert, update, and remove ladder levels
// in sorted order, keeping the bid/ask ladders valid after every apply.
package orderbook

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"hyperliquid-trader/internal/xerrors"
	"hyperliquid-trader/pkg/decimal"
	"hyperliquid-trader/pkg/types"
)

// Book is a concurrency-safe local mirror of one pair's L2 order book.
// Bids are kept sorted descending by price, asks ascending, so index 0 is
// always the best level on each side.
type Book struct {
	mu      sync.RWMutex
	pair    types.TradingPair
	bids    []types.OrderbookLevel
	asks    []types.OrderbookLevel
	updated time.Time
}

// New creates an empty book for pair.
func New(pair types.TradingPair) *Book {
	return &Book{pair: pair}
}

// ApplySnapshot replaces the entire book with a fresh L2 snapshot at ts. The
// levels are sorted in place so callers (e.g. a WS parser) don't need to
// pre-sort. Unlike ApplyDelta, a snapshot always wins regardless of the
// current last-update timestamp — it's the authoritative full-state
// replacement a reconnect or resync delivers.
func (b *Book) ApplySnapshot(bids, asks []types.OrderbookLevel, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = filterZeroLevels(bids)
	b.asks = filterZeroLevels(asks)
	sort.Slice(b.bids, func(i, j int) bool { return b.bids[i].Price.GreaterThan(b.bids[j].Price) })
	sort.Slice(b.asks, func(i, j int) bool { return b.asks[i].Price.LessThan(b.asks[j].Price) })
	b.updated = ts
}

// filterZeroLevels copies levels, dropping any with zero quantity — an empty
// level in a snapshot means the venue is signalling removal, same as a
// zero-size delta.
func filterZeroLevels(levels []types.OrderbookLevel) []types.OrderbookLevel {
	out := make([]types.OrderbookLevel, 0, len(levels))
	for _, l := range levels {
		if l.Size.Sign() > 0 {
			out = append(out, l)
		}
	}
	return out
}

// ApplyDelta applies a single incremental price-level update: a zero size
// removes the level, a non-zero size inserts or replaces it. An update
// timestamped strictly before the book's current last-update time is
// discarded — the venue can redeliver frames out of order across a
// reconnect, and updates must be applied in monotonic order per book.
func (b *Book) ApplyDelta(side types.Side, price, size decimal.Decimal, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ts.Before(b.updated) {
		return
	}

	if side == types.Buy {
		b.bids = applyLevel(b.bids, price, size, true)
	} else {
		b.asks = applyLevel(b.asks, price, size, false)
	}
	b.updated = ts
}

// applyLevel inserts/updates/removes price in a sorted ladder. desc controls
// sort direction (true for bids, false for asks).
func applyLevel(levels []types.OrderbookLevel, price, size decimal.Decimal, desc bool) []types.OrderbookLevel {
	// First index at which price belongs: an equal-price level lands exactly
	// there, so the search doubles as the existence check below.
	at := func(i int) bool {
		if desc {
			return levels[i].Price.LessThanOrEqual(price)
		}
		return levels[i].Price.GreaterThanOrEqual(price)
	}
	idx := sort.Search(len(levels), at)

	if idx < len(levels) && levels[idx].Price.Equal(price) {
		if size.IsZero() {
			return append(levels[:idx], levels[idx+1:]...)
		}
		levels[idx].Size = size
		return levels
	}

	if size.IsZero() {
		return levels
	}

	levels = append(levels, types.OrderbookLevel{})
	copy(levels[idx+1:], levels[idx:])
	levels[idx] = types.OrderbookLevel{Price: price, Size: size}
	return levels
}

// Snapshot returns a point-in-time copy of the book.
func (b *Book) Snapshot() types.Orderbook {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return types.Orderbook{
		Pair:      b.pair,
		Bids:      append([]types.OrderbookLevel(nil), b.bids...),
		Asks:      append([]types.OrderbookLevel(nil), b.asks...),
		Timestamp: b.updated,
	}
}

// BestBid returns the highest bid, or false if the book has no bids.
func (b *Book) BestBid() (types.OrderbookLevel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return types.OrderbookLevel{}, false
	}
	return b.bids[0], true
}

// BestAsk returns the lowest ask, or false if the book has no asks.
func (b *Book) BestAsk() (types.OrderbookLevel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return types.OrderbookLevel{}, false
	}
	return b.asks[0], true
}

// Mid returns (bestBid + bestAsk) / 2, or false if either side is empty.
func (b *Book) Mid() (decimal.Decimal, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	sum, err := bid.Price.Add(ask.Price)
	if err != nil {
		return decimal.Zero, false
	}
	mid, err := sum.Div(decimal.New(2))
	if err != nil {
		return decimal.Zero, false
	}
	return mid, true
}

// Spread returns bestAsk - bestBid, or false if either side is empty.
func (b *Book) Spread() (decimal.Decimal, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	spread, err := ask.Price.Sub(bid.Price)
	if err != nil {
		return decimal.Zero, false
	}
	return spread, true
}

// SpreadBps returns the bid-ask spread in basis points of the mid price.
func (b *Book) SpreadBps() (decimal.Decimal, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	mid, ok := b.Mid()
	if !ok || mid.IsZero() {
		return decimal.Zero, false
	}
	spread, err := ask.Price.Sub(bid.Price)
	if err != nil {
		return decimal.Zero, false
	}
	ratio, err := spread.Div(mid)
	if err != nil {
		return decimal.Zero, false
	}
	bps, err := ratio.Mul(decimal.New(10000))
	if err != nil {
		return decimal.Zero, false
	}
	return bps, true
}

// Depth returns up to n levels on the requested side, best-first.
func (b *Book) Depth(side types.Side, n int) []types.OrderbookLevel {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var src []types.OrderbookLevel
	if side == types.Buy {
		src = b.bids
	} else {
		src = b.asks
	}
	if n > len(src) || n < 0 {
		n = len(src)
	}
	out := make([]types.OrderbookLevel, n)
	copy(out, src[:n])
	return out
}

// VWAP walks the ladder on the requested side, consuming size and returning
// the size-weighted average fill price. If the book doesn't have enough
// depth to fill the full size, it returns the VWAP over whatever could be
// filled along with the filled amount and a false "complete" flag.
func (b *Book) VWAP(side types.Side, size decimal.Decimal) (avgPrice, filled decimal.Decimal, complete bool, err error) {
	if size.Sign() <= 0 {
		return decimal.Zero, decimal.Zero, false, fmt.Errorf("orderbook: size must be positive")
	}

	b.mu.RLock()
	var levels []types.OrderbookLevel
	if side == types.Buy {
		levels = b.asks // buying consumes the ask side
	} else {
		levels = b.bids
	}
	levels = append([]types.OrderbookLevel(nil), levels...)
	b.mu.RUnlock()

	remaining := size
	notional := decimal.Zero
	for _, lvl := range levels {
		if remaining.Sign() <= 0 {
			break
		}
		take := lvl.Size
		if take.GreaterThan(remaining) {
			take = remaining
		}
		levelNotional, mErr := lvl.Price.Mul(take)
		if mErr != nil {
			return decimal.Zero, decimal.Zero, false, mErr
		}
		notional, err = notional.Add(levelNotional)
		if err != nil {
			return decimal.Zero, decimal.Zero, false, err
		}
		remaining, err = remaining.Sub(take)
		if err != nil {
			return decimal.Zero, decimal.Zero, false, err
		}
	}

	filledSize, err := size.Sub(remaining)
	if err != nil {
		return decimal.Zero, decimal.Zero, false, err
	}
	if filledSize.IsZero() {
		return decimal.Zero, decimal.Zero, false, nil
	}
	avg, err := notional.Div(filledSize)
	if err != nil {
		return decimal.Zero, decimal.Zero, false, err
	}
	return avg, filledSize, remaining.IsZero(), nil
}

// DepthToPrice sums quantities on side from the best level out to priceLimit
// (inclusive) — distinct from Depth(side, n), which returns the raw top-n
// levels for display rather than an aggregate size.
func (b *Book) DepthToPrice(side types.Side, priceLimit decimal.Decimal) (decimal.Decimal, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var levels []types.OrderbookLevel
	if side == types.Buy {
		levels = b.bids
	} else {
		levels = b.asks
	}

	total := decimal.Zero
	for _, lvl := range levels {
		inRange := lvl.Price.GreaterThanOrEqual(priceLimit)
		if side == types.Sell {
			inRange = lvl.Price.LessThanOrEqual(priceLimit)
		}
		if !inRange {
			break
		}
		sum, err := total.Add(lvl.Size)
		if err != nil {
			return decimal.Zero, err
		}
		total = sum
	}
	return total, nil
}

// SlippageEstimate walks the opposite-side ladder to fill size and returns
// the size-weighted average fill price, failing loudly with
// InsufficientLiquidity instead of returning a partial fill when the ladder
// empties first — stricter than VWAP's best-effort partial-fill semantics.
func (b *Book) SlippageEstimate(side types.Side, size decimal.Decimal) (avgPrice decimal.Decimal, err error) {
	avg, filled, complete, err := b.VWAP(side, size)
	if err != nil {
		return decimal.Zero, err
	}
	if !complete {
		return decimal.Zero, xerrors.New(xerrors.KindInsufficientLiquidity, "slippage_estimate",
			fmt.Errorf("book only has %s of %s requested", filled.String(), size.String()))
	}
	return avg, nil
}

// IsStale reports whether the book hasn't received an update within maxAge.
func (b *Book) IsStale(maxAge time.Duration) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.updated.IsZero() {
		return true
	}
	return time.Since(b.updated) > maxAge
}

// LastUpdated returns the timestamp of the most recent snapshot or delta.
func (b *Book) LastUpdated() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated
}
