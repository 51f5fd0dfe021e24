// Package ordermanager is the dual-indexed order lifecycle store: every
// order submitted through a connector is tracked here from pending_submit
// through its terminal state, keyed by both the caller-assigned client id
// and the venue-assigned exchange id. It depends only on
// internal/connector's vtable so a second venue can be added without
// touching this package.
package ordermanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"hyperliquid-trader/internal/connector"
	"hyperliquid-trader/internal/xerrors"
	"hyperliquid-trader/pkg/decimal"
	"hyperliquid-trader/pkg/types"
)

// OrderUpdateEvent is a venue order-status push (e.g. Hyperliquid's
// orderUpdates WS channel), normalized to the fields the store needs.
type OrderUpdateEvent struct {
	ExchangeID   string
	Status       types.OrderStatus
	FilledSize   decimal.Decimal
	AvgFillPrice decimal.Decimal
	ErrorMessage string
}

// Store is the order manager's dual-indexed state. All mutation happens
// under mu; onUpdate/onFill callbacks are always invoked after the lock is
// released so a slow callback never blocks other order operations.
type Store struct {
	mu           sync.Mutex
	byClientID   map[string]*types.Order
	byExchangeID map[string]*types.Order
	open         map[string]*types.Order // keyed by client id
	history      []types.Order

	processedFills     map[string]struct{}
	processedFillOrder []string
	maxProcessedFills  int

	logger   *slog.Logger
	onUpdate func(types.Order)
	onFill   func(types.Fill)

	clientSeq uint64
}

// New builds an empty Store. onUpdate is called (possibly nil) whenever an
// order's tracked state changes; onFill is called (possibly nil) with every
// user fill after it has been applied and deduplicated, so a caller (in
// practice internal/runtime, wiring to internal/position) can update
// downstream state without holding the store's lock.
func New(logger *slog.Logger, onUpdate func(types.Order), onFill func(types.Fill)) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		byClientID:        make(map[string]*types.Order),
		byExchangeID:      make(map[string]*types.Order),
		open:              make(map[string]*types.Order),
		processedFills:    make(map[string]struct{}),
		maxProcessedFills: 4096,
		logger:            logger.With("component", "ordermanager"),
		onUpdate:          onUpdate,
		onFill:            onFill,
	}
}

// newClientID allocates a client order id unique within this process's
// lifetime, in Hyperliquid's 16-byte hex cloid format so it can ride along
// on the order action itself: wall-clock nanoseconds plus a monotonic
// counter disambiguates two submissions landing in the same nanosecond.
func (s *Store) newClientID() string {
	seq := atomic.AddUint64(&s.clientSeq, 1)
	return fmt.Sprintf("0x%016x%016x", uint64(time.Now().UnixNano()), seq)
}

func isNetworkError(err error) bool {
	var xerr *xerrors.Error
	if !errors.As(err, &xerr) {
		return false
	}
	switch xerr.Kind {
	case xerrors.KindConnectionLost, xerrors.KindTimeout, xerrors.KindRateLimited:
		return true
	default:
		return false
	}
}

// Submit allocates a client_order_id (if the caller didn't supply one),
// records a pending order, and dispatches it through conn. Resubmitting an
// already-known client id is treated as success and returns the existing
// order instead of calling the connector again, making retries idempotent.
func (s *Store) Submit(ctx context.Context, conn connector.Connector, req types.OrderRequest) (types.Order, error) {
	if req.ClientID == "" {
		req.ClientID = s.newClientID()
	}

	s.mu.Lock()
	if existing, ok := s.byClientID[req.ClientID]; ok {
		out := *existing
		s.mu.Unlock()
		return out, nil
	}
	now := time.Now()
	order := &types.Order{
		ClientID:    req.ClientID,
		Pair:        req.Pair,
		Side:        req.Side,
		Type:        req.Type,
		TimeInForce: req.TimeInForce,
		Price:       req.Price,
		Size:        req.Size,
		ReduceOnly:  req.ReduceOnly,
		Status:      types.StatusPendingSubmit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.byClientID[req.ClientID] = order
	s.open[req.ClientID] = order
	s.mu.Unlock()

	result, submitErr := conn.CreateOrder(ctx, req)

	s.mu.Lock()
	tracked := s.byClientID[req.ClientID]
	tracked.UpdatedAt = time.Now()

	if submitErr != nil {
		if isNetworkError(submitErr) {
			// Never silently lost: stays pending with the error noted.
			// Reconciliation on reconnect (get_open_orders against the
			// master address) resolves whether it actually went through.
			tracked.ErrorMessage = submitErr.Error()
			out := *tracked
			s.mu.Unlock()
			s.notifyUpdate(out)
			return out, submitErr
		}
		tracked.Status = types.StatusRejected
		tracked.ErrorMessage = submitErr.Error()
		s.moveToHistoryLocked(tracked)
		out := *tracked
		s.mu.Unlock()
		s.notifyUpdate(out)
		return out, xerrors.New(xerrors.KindRejected, "submit", submitErr)
	}

	tracked.ExchangeID = result.ExchangeID
	s.byExchangeID[result.ExchangeID] = tracked

	switch result.Status {
	case types.StatusFilled:
		tracked.FilledSize = result.FilledSize
		tracked.AvgFillPx = result.AvgFillPx
		tracked.Status = types.StatusFilled
		s.moveToHistoryLocked(tracked)
	default:
		tracked.Status = types.StatusOpen
	}
	out := *tracked
	s.mu.Unlock()
	s.notifyUpdate(out)
	return out, nil
}

// Cancel cancels a single order by client or exchange id. Canceling an
// already-terminal order is not a fatal error: it returns
// KindOrderNotCancellable so callers can treat it as a no-op.
func (s *Store) Cancel(ctx context.Context, conn connector.Connector, ref string) error {
	s.mu.Lock()
	order := s.lookupLocked(ref)
	if order == nil {
		s.mu.Unlock()
		return xerrors.New(xerrors.KindNotFound, "cancel", fmt.Errorf("no order tracked for %q", ref))
	}
	if order.Status.Terminal() || order.ExchangeID == "" {
		s.mu.Unlock()
		return xerrors.New(xerrors.KindOrderNotCancellable, "cancel", fmt.Errorf("order %s is not cancellable (status %s)", ref, order.Status))
	}
	exchangeID := order.ExchangeID
	s.mu.Unlock()

	if err := conn.CancelOrder(ctx, exchangeID); err != nil {
		return err
	}

	s.mu.Lock()
	tracked := s.byExchangeID[exchangeID]
	if tracked == nil {
		s.mu.Unlock()
		return nil
	}
	tracked.Status = types.StatusCancelled
	tracked.UpdatedAt = time.Now()
	s.moveToHistoryLocked(tracked)
	out := *tracked
	s.mu.Unlock()
	s.notifyUpdate(out)
	return nil
}

// CancelAll cancels every open order, optionally scoped to pair, via the
// connector's batch endpoint (falling back to per-order cancellation is the
// connector's concern, not the store's). Partial failure at the connector
// layer does not fail this call; it returns however many the connector
// reports cancelled and reconciles local state for those it can identify.
func (s *Store) CancelAll(ctx context.Context, conn connector.Connector, pair *types.TradingPair) (int, error) {
	cancelled, err := conn.CancelAll(ctx, pair)
	if err != nil {
		return cancelled, err
	}

	s.mu.Lock()
	var updated []types.Order
	for clientID, order := range s.open {
		if pair != nil && order.Pair.Symbol != pair.Symbol {
			continue
		}
		order.Status = types.StatusCancelled
		order.UpdatedAt = time.Now()
		s.moveToHistoryLocked(order)
		delete(s.open, clientID)
		updated = append(updated, *order)
	}
	s.mu.Unlock()

	for _, o := range updated {
		s.notifyUpdate(o)
	}
	return cancelled, nil
}

// Get returns the tracked order for a client or exchange id.
func (s *Store) Get(ref string) (types.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := s.lookupLocked(ref)
	if order == nil {
		return types.Order{}, false
	}
	return *order, true
}

// OpenOrders returns a snapshot of every order currently in the open set.
func (s *Store) OpenOrders() []types.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Order, 0, len(s.open))
	for _, o := range s.open {
		out = append(out, *o)
	}
	return out
}

// History returns a snapshot of every order that has reached a terminal
// state, in the order they terminated.
func (s *Store) History() []types.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Order, len(s.history))
	copy(out, s.history)
	return out
}

// OnWSOrderUpdate applies a venue order-status push. Updates for unknown
// exchange ids are logged, not errored — out-of-order delivery during
// reconnect is expected, not a bug.
func (s *Store) OnWSOrderUpdate(update OrderUpdateEvent) {
	s.mu.Lock()
	tracked, ok := s.byExchangeID[update.ExchangeID]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("order update for unknown exchange id", "exchange_id", update.ExchangeID)
		return
	}

	tracked.Status = update.Status
	tracked.UpdatedAt = time.Now()
	if !update.FilledSize.IsZero() {
		tracked.FilledSize = update.FilledSize
	}
	if !update.AvgFillPrice.IsZero() {
		tracked.AvgFillPx = update.AvgFillPrice
	}
	if update.ErrorMessage != "" {
		tracked.ErrorMessage = update.ErrorMessage
	}
	if update.Status.Terminal() {
		s.moveToHistoryLocked(tracked)
	}
	out := *tracked
	s.mu.Unlock()
	s.notifyUpdate(out)
}

// OnWSUserFill applies a user fill: looks up the order by exchange id,
// accumulates filled_quantity, recomputes the size-weighted average fill
// price, and forwards the fill via onFill once it has been deduplicated
// against the processed-fill set.
func (s *Store) OnWSUserFill(fill types.Fill) {
	key := fill.OrderID + ":" + fill.TradeID

	s.mu.Lock()
	if _, seen := s.processedFills[key]; seen {
		s.mu.Unlock()
		return
	}
	s.markProcessedLocked(key)

	tracked, ok := s.byExchangeID[fill.OrderID]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("fill for unknown exchange id", "exchange_id", fill.OrderID, "trade_id", fill.TradeID)
		if s.onFill != nil {
			s.onFill(fill)
		}
		return
	}

	newFilled, err := tracked.FilledSize.Add(fill.Size)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("fill size overflow", "exchange_id", fill.OrderID, "error", err)
		return
	}

	// Size-weighted average fill price: (old_filled*old_avg + fill_size*fill_price) / new_filled.
	if newFilled.Sign() > 0 {
		oldNotional, err1 := tracked.FilledSize.Mul(tracked.AvgFillPx)
		fillNotional, err2 := fill.Size.Mul(fill.Price)
		if err1 == nil && err2 == nil {
			if totalNotional, err3 := oldNotional.Add(fillNotional); err3 == nil {
				if avg, err4 := totalNotional.Div(newFilled); err4 == nil {
					tracked.AvgFillPx = avg
				}
			}
		}
	}
	tracked.FilledSize = newFilled
	tracked.UpdatedAt = time.Now()
	if tracked.FilledSize.GreaterThanOrEqual(tracked.Size) {
		tracked.Status = types.StatusFilled
		s.moveToHistoryLocked(tracked)
	} else if tracked.FilledSize.Sign() > 0 && !tracked.Status.Terminal() {
		tracked.Status = types.StatusPartiallyFilled
	}
	out := *tracked
	s.mu.Unlock()

	s.notifyUpdate(out)
	if s.onFill != nil {
		s.onFill(fill)
	}
}

// Reconcile resolves tracked state against the exchange's authoritative
// open-order set, fetched by the caller after a reconnect. Tracked open
// orders the venue no longer reports are marked cancelled (any fill they
// took arrives separately on userFills and is deduplicated there). Pending
// orders whose submission outcome was lost to a network error adopt the
// venue's record when one matches by client order id; if the venue has no
// record either, the action never landed and the order is rejected.
func (s *Store) Reconcile(exchangeOpen []types.Order) {
	venueOpen := make(map[string]struct{}, len(exchangeOpen))
	byCloid := make(map[string]types.Order, len(exchangeOpen))
	for _, o := range exchangeOpen {
		venueOpen[o.ExchangeID] = struct{}{}
		if o.ClientID != "" {
			byCloid[o.ClientID] = o
		}
	}

	s.mu.Lock()
	var updated []types.Order
	for clientID, order := range s.open {
		switch {
		case order.ExchangeID != "":
			if _, stillOpen := venueOpen[order.ExchangeID]; !stillOpen {
				s.logger.Warn("tracked open order missing from exchange snapshot; marking cancelled",
					"client_id", clientID, "exchange_id", order.ExchangeID)
				order.Status = types.StatusCancelled
				order.UpdatedAt = time.Now()
				s.moveToHistoryLocked(order)
				updated = append(updated, *order)
			}
		case order.Status == types.StatusPendingSubmit:
			if venue, ok := byCloid[clientID]; ok {
				order.ExchangeID = venue.ExchangeID
				order.Status = types.StatusOpen
				order.ErrorMessage = ""
				order.UpdatedAt = time.Now()
				s.byExchangeID[venue.ExchangeID] = order
				updated = append(updated, *order)
			} else if order.ErrorMessage != "" {
				order.Status = types.StatusRejected
				order.UpdatedAt = time.Now()
				s.moveToHistoryLocked(order)
				updated = append(updated, *order)
			}
		}
	}
	s.mu.Unlock()

	for _, o := range updated {
		s.notifyUpdate(o)
	}
}

func (s *Store) markProcessedLocked(key string) {
	s.processedFills[key] = struct{}{}
	s.processedFillOrder = append(s.processedFillOrder, key)
	if len(s.processedFillOrder) > s.maxProcessedFills {
		oldest := s.processedFillOrder[0]
		s.processedFillOrder = s.processedFillOrder[1:]
		delete(s.processedFills, oldest)
	}
}

func (s *Store) lookupLocked(ref string) *types.Order {
	if order, ok := s.byClientID[ref]; ok {
		return order
	}
	if order, ok := s.byExchangeID[ref]; ok {
		return order
	}
	return nil
}

// moveToHistoryLocked must be called with mu held. It removes the order from
// the open set (if present) and appends a snapshot to history.
func (s *Store) moveToHistoryLocked(order *types.Order) {
	delete(s.open, order.ClientID)
	s.history = append(s.history, *order)
}

func (s *Store) notifyUpdate(order types.Order) {
	if s.onUpdate != nil {
		s.onUpdate(order)
	}
}
