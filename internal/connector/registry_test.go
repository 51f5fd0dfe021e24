package connector

import (
	"context"
	"log/slog"
	"testing"

	"hyperliquid-trader/pkg/types"
)

type stubConnector struct{ name string }

func (s *stubConnector) Name() string                                { return s.name }
func (s *stubConnector) Connect(ctx context.Context) error            { return nil }
func (s *stubConnector) Disconnect() error                            { return nil }
func (s *stubConnector) IsConnected() bool                            { return true }
func (s *stubConnector) GetTicker(ctx context.Context, pair types.TradingPair) (types.Ticker, error) {
	return types.Ticker{}, nil
}
func (s *stubConnector) GetOrderbook(ctx context.Context, pair types.TradingPair, depth int) (types.Orderbook, error) {
	return types.Orderbook{}, nil
}
func (s *stubConnector) CreateOrder(ctx context.Context, req types.OrderRequest) (types.Order, error) {
	return types.Order{}, nil
}
func (s *stubConnector) CancelOrder(ctx context.Context, id string) error { return nil }
func (s *stubConnector) CancelAll(ctx context.Context, pair *types.TradingPair) (int, error) {
	return 0, nil
}
func (s *stubConnector) GetOrder(ctx context.Context, id string) (types.Order, error) {
	return types.Order{}, nil
}
func (s *stubConnector) GetOpenOrders(ctx context.Context, pair *types.TradingPair) ([]types.Order, error) {
	return nil, nil
}
func (s *stubConnector) GetBalance(ctx context.Context) (types.Balance, error) {
	return types.Balance{}, nil
}
func (s *stubConnector) GetPositions(ctx context.Context) ([]types.Position, error) {
	return nil, nil
}

var _ Connector = (*stubConnector)(nil)

func TestRegisterAndBuild(t *testing.T) {
	Register("stub-test-venue", func(cfg any, logger *slog.Logger) (Connector, error) {
		return &stubConnector{name: "stub-test-venue"}, nil
	})

	c, err := Build("stub-test-venue", nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.Name() != "stub-test-venue" {
		t.Errorf("Name() = %q, want stub-test-venue", c.Name())
	}
}

func TestBuildUnknownVenue(t *testing.T) {
	if _, err := Build("no-such-venue-xyz", nil, nil); err == nil {
		t.Fatal("expected error for unregistered venue")
	}
}
