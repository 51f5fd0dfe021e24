// Package position tracks open positions and account-level PnL: a
// weighted-average-entry-on-increase, realized-PnL-on-reduce model over a
// generic long/short/flat position per trading pair, built entirely on
// pkg/decimal so PnL accumulation never drifts.
package position

import (
	"sync"
	"time"

	"hyperliquid-trader/internal/xerrors"
	"hyperliquid-trader/pkg/decimal"
	"hyperliquid-trader/pkg/types"
)

// reconciliationTolerance bounds how far a locally tracked size may drift
// from the exchange snapshot before it's worth logging — small dust
// differences from rounding are expected, not a discrepancy.
var reconciliationTolerance = decimal.MustFromString("0.00000001")

// Logger is the minimal logging surface the tracker needs, so this package
// doesn't have to import log/slog's concrete handler wiring.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(msg string, args ...any) {}

// Tracker holds one Account's positions, keyed by trading pair. All
// mutation happens under a single RWMutex-guarded struct; the tracker never
// writes back to the exchange, only reconciles from its snapshots.
type Tracker struct {
	mu         sync.RWMutex
	positions  map[string]*types.Position // keyed by pair.String()
	account    types.Account
	logger     Logger
}

// New builds an empty Tracker. A nil logger discards reconciliation warnings.
func New(logger Logger) *Tracker {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Tracker{
		positions: make(map[string]*types.Position),
		logger:    logger,
	}
}

// Sync replaces tracked state with the exchange's authoritative snapshot.
// This is the source of truth on startup and reconnect: any locally tracked
// position not present in the snapshot is dropped, and any discrepancy
// beyond reconciliationTolerance is logged (exchange wins, never the other
// way around). A snapshot position with zero RealizedPnL keeps the realized
// PnL already accumulated for that pair.
func (t *Tracker) Sync(account types.Account) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fresh := make(map[string]*types.Position, len(account.Positions))
	for i := range account.Positions {
		p := account.Positions[i]
		key := p.Pair.String()

		if existing, ok := t.positions[key]; ok {
			diff, err := existing.Size.Sub(p.Size)
			if err == nil && diff.Abs().GreaterThan(reconciliationTolerance) {
				t.logger.Warn("position size diverged from exchange snapshot; exchange wins",
					"pair", key, "tracked_size", existing.Size.String(), "exchange_size", p.Size.String())
			}
			if p.RealizedPnL.IsZero() {
				p.RealizedPnL = existing.RealizedPnL
			}
		}

		if p.MarkPrice.IsZero() {
			p.MarkPrice = p.EntryPrice // refreshed on the next mark-price update
		}
		p.UpdatedAt = time.Now()
		if p.OpenedAt.IsZero() {
			p.OpenedAt = p.UpdatedAt
		}
		fresh[key] = &p
	}

	t.positions = fresh
	t.account = account
}

// SyncFromConnector is a convenience wrapper that folds the results of a
// connector's GetPositions and GetBalance calls into Sync's Account shape.
func (t *Tracker) SyncFromConnector(positions []types.Position, balance types.Balance) {
	account := types.Account{
		TotalBalance:     balance.Total,
		AvailableBalance: balance.Available,
		MarginUsed:       balance.Locked,
		AccountValue:     balance.Total,
		Positions:        positions,
	}
	for _, p := range positions {
		if sum, err := account.TotalUnrealizedPnL.Add(p.UnrealizedPnL); err == nil {
			account.TotalUnrealizedPnL = sum
		}
	}
	t.Sync(account)
}

// ApplyMarkPrice updates a position's mark price and recomputes unrealized
// PnL and ROE. A pair with no tracked position is a no-op.
func (t *Tracker) ApplyMarkPrice(pair types.TradingPair, mark decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[pair.String()]
	if !ok || pos.Side == types.PositionFlat {
		return nil
	}

	pos.MarkPrice = mark

	diff, err := mark.Sub(pos.EntryPrice)
	if err != nil {
		return xerrors.New(xerrors.KindOverflow, "apply_mark_price", err)
	}
	pnl, err := diff.Mul(pos.Size)
	if err != nil {
		return xerrors.New(xerrors.KindOverflow, "apply_mark_price", err)
	}
	if pos.Side == types.PositionShort {
		pnl = pnl.Neg()
	}
	pos.UnrealizedPnL = pnl

	if pos.MarginUsed.Sign() > 0 {
		roe, err := pnl.Div(pos.MarginUsed)
		if err != nil {
			return xerrors.New(xerrors.KindOverflow, "apply_mark_price", err)
		}
		pos.ReturnOnEquity = roe
	}
	pos.UpdatedAt = time.Now()
	return nil
}

// ApplyFill applies a single execution to the tracked position for fill's
// pair: opening/adding uses a size-weighted average entry price;
// reducing/closing realizes PnL and decrements size. Reducing by more than
// the tracked size is a contract violation, not a clamp-and-continue
// situation — it returns KindInvariantViolated.
func (t *Tracker) ApplyFill(pair types.TradingPair, side types.Side, fillPrice, fillSize decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := pair.String()
	pos, ok := t.positions[key]
	if !ok {
		pos = &types.Position{Pair: pair, Side: types.PositionFlat, OpenedAt: time.Now()}
		t.positions[key] = pos
	}

	fillSide := types.PositionLong
	if side == types.Sell {
		fillSide = types.PositionShort
	}

	adding := pos.Side == types.PositionFlat || pos.Side == fillSide
	if adding {
		return t.applyIncreaseLocked(pos, fillSide, fillPrice, fillSize)
	}
	return t.applyReduceLocked(pos, fillPrice, fillSize)
}

func (t *Tracker) applyIncreaseLocked(pos *types.Position, fillSide types.PositionSide, fillPrice, fillSize decimal.Decimal) error {
	oldNotional, err := pos.EntryPrice.Mul(pos.Size)
	if err != nil {
		return xerrors.New(xerrors.KindOverflow, "apply_fill", err)
	}
	fillNotional, err := fillPrice.Mul(fillSize)
	if err != nil {
		return xerrors.New(xerrors.KindOverflow, "apply_fill", err)
	}
	totalNotional, err := oldNotional.Add(fillNotional)
	if err != nil {
		return xerrors.New(xerrors.KindOverflow, "apply_fill", err)
	}
	newSize, err := pos.Size.Add(fillSize)
	if err != nil {
		return xerrors.New(xerrors.KindOverflow, "apply_fill", err)
	}

	if newSize.Sign() > 0 {
		entry, err := totalNotional.Div(newSize)
		if err != nil {
			return xerrors.New(xerrors.KindDivisionByZero, "apply_fill", err)
		}
		pos.EntryPrice = entry
	}
	pos.Size = newSize
	pos.Side = fillSide
	pos.UpdatedAt = time.Now()
	return nil
}

func (t *Tracker) applyReduceLocked(pos *types.Position, fillPrice, fillSize decimal.Decimal) error {
	if fillSize.GreaterThan(pos.Size) {
		return xerrors.New(xerrors.KindInvariantViolated, "apply_fill",
			xerrors.New(xerrors.KindInvalidOrder, "apply_fill", errInvalidReduceSize(pos, fillSize)))
	}

	diff, err := fillPrice.Sub(pos.EntryPrice)
	if err != nil {
		return xerrors.New(xerrors.KindOverflow, "apply_fill", err)
	}
	realized, err := diff.Mul(fillSize)
	if err != nil {
		return xerrors.New(xerrors.KindOverflow, "apply_fill", err)
	}
	if pos.Side == types.PositionShort {
		realized = realized.Neg()
	}
	cumulative, err := pos.RealizedPnL.Add(realized)
	if err != nil {
		return xerrors.New(xerrors.KindOverflow, "apply_fill", err)
	}
	pos.RealizedPnL = cumulative

	newSize, err := pos.Size.Sub(fillSize)
	if err != nil {
		return xerrors.New(xerrors.KindOverflow, "apply_fill", err)
	}
	pos.Size = newSize
	pos.UpdatedAt = time.Now()

	if pos.Size.IsZero() {
		pos.Side = types.PositionFlat
		pos.EntryPrice = decimal.Zero
	}
	return nil
}

// PortfolioPnL aggregates unrealized and realized PnL across every tracked
// position, plus account equity (total_balance + sum(unrealized)).
type PortfolioPnL struct {
	Unrealized decimal.Decimal
	Realized   decimal.Decimal
	Equity     decimal.Decimal
}

// PortfolioPnL computes the current aggregate PnL snapshot.
func (t *Tracker) PortfolioPnL() (PortfolioPnL, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var unrealized, realized decimal.Decimal
	for _, pos := range t.positions {
		var err error
		unrealized, err = unrealized.Add(pos.UnrealizedPnL)
		if err != nil {
			return PortfolioPnL{}, xerrors.New(xerrors.KindOverflow, "portfolio_pnl", err)
		}
		realized, err = realized.Add(pos.RealizedPnL)
		if err != nil {
			return PortfolioPnL{}, xerrors.New(xerrors.KindOverflow, "portfolio_pnl", err)
		}
	}

	equity, err := t.account.TotalBalance.Add(unrealized)
	if err != nil {
		return PortfolioPnL{}, xerrors.New(xerrors.KindOverflow, "portfolio_pnl", err)
	}

	return PortfolioPnL{Unrealized: unrealized, Realized: realized, Equity: equity}, nil
}

// Get returns a snapshot of the tracked position for pair, if any.
func (t *Tracker) Get(pair types.TradingPair) (types.Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pos, ok := t.positions[pair.String()]
	if !ok {
		return types.Position{}, false
	}
	return *pos, true
}

// All returns a snapshot of every tracked position.
func (t *Tracker) All() []types.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]types.Position, 0, len(t.positions))
	for _, pos := range t.positions {
		out = append(out, *pos)
	}
	return out
}

// Account returns the last-synced account summary.
func (t *Tracker) Account() types.Account {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.account
}

func errInvalidReduceSize(pos *types.Position, fillSize decimal.Decimal) error {
	return &reduceOverflowError{tracked: pos.Size, fill: fillSize}
}

type reduceOverflowError struct {
	tracked decimal.Decimal
	fill    decimal.Decimal
}

func (e *reduceOverflowError) Error() string {
	return "reduce size " + e.fill.String() + " exceeds tracked size " + e.tracked.String()
}
