package types

import (
	"testing"

	"hyperliquid-trader/pkg/decimal"
)

func TestSideOpposite(t *testing.T) {
	t.Parallel()
	if Buy.Opposite() != Sell {
		t.Errorf("Buy.Opposite() = %v, want Sell", Buy.Opposite())
	}
	if Sell.Opposite() != Buy {
		t.Errorf("Sell.Opposite() = %v, want Buy", Sell.Opposite())
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	t.Parallel()
	cases := []struct {
		status OrderStatus
		want   bool
	}{
		{StatusPendingSubmit, false},
		{StatusOpen, false},
		{StatusPartiallyFilled, false},
		{StatusPendingCancel, false},
		{StatusFilled, true},
		{StatusCancelled, true},
		{StatusRejected, true},
		{StatusExpired, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.want {
			t.Errorf("%s.Terminal() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestTradingPairString(t *testing.T) {
	t.Parallel()
	p := TradingPair{Symbol: "BTC", Quote: "USD"}
	if got := p.String(); got != "BTC-USD" {
		t.Errorf("String() = %q, want %q", got, "BTC-USD")
	}
}

func TestOrderRemaining(t *testing.T) {
	t.Parallel()
	o := Order{
		Size:       decimal.MustFromString("10"),
		FilledSize: decimal.MustFromString("4"),
	}
	if got := o.Remaining(); got.String() != "6" {
		t.Errorf("Remaining() = %s, want 6", got.String())
	}

	full := Order{
		Size:       decimal.MustFromString("5"),
		FilledSize: decimal.MustFromString("5"),
	}
	if got := full.Remaining(); !got.IsZero() {
		t.Errorf("Remaining() = %s, want 0", got.String())
	}
}
