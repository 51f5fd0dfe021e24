package store

import (
	"testing"

	"hyperliquid-trader/pkg/decimal"
	"hyperliquid-trader/pkg/types"
)

func testAccount(totalBalance string) types.Account {
	return types.Account{
		TotalBalance:     decimal.MustFromString(totalBalance),
		AvailableBalance: decimal.MustFromString(totalBalance),
		Positions: []types.Position{
			{
				Pair:       types.TradingPair{Symbol: "BTC", Quote: "USD"},
				Side:       types.PositionLong,
				Size:       decimal.MustFromString("1.5"),
				EntryPrice: decimal.MustFromString("50000"),
			},
		},
	}
}

func TestSaveAndLoadAccount(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	account := testAccount("10000")

	if err := s.SaveAccount(account); err != nil {
		t.Fatalf("SaveAccount: %v", err)
	}

	loaded, err := s.LoadAccount()
	if err != nil {
		t.Fatalf("LoadAccount: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadAccount returned nil")
	}
	if !loaded.TotalBalance.Equal(account.TotalBalance) {
		t.Errorf("TotalBalance = %v, want %v", loaded.TotalBalance, account.TotalBalance)
	}
	if len(loaded.Positions) != 1 {
		t.Fatalf("Positions = %d, want 1", len(loaded.Positions))
	}
	if !loaded.Positions[0].Size.Equal(account.Positions[0].Size) {
		t.Errorf("Position size = %v, want %v", loaded.Positions[0].Size, account.Positions[0].Size)
	}
}

func TestLoadAccountMissing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	loaded, err := s.LoadAccount()
	if err != nil {
		t.Fatalf("LoadAccount: %v", err)
	}
	if loaded != nil {
		t.Errorf("expected nil for missing snapshot, got %+v", loaded)
	}
}

func TestSaveAccountOverwrites(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	acc1 := testAccount("10000")
	acc2 := testAccount("20000")

	if err := s.SaveAccount(acc1); err != nil {
		t.Fatalf("SaveAccount(acc1): %v", err)
	}
	if err := s.SaveAccount(acc2); err != nil {
		t.Fatalf("SaveAccount(acc2): %v", err)
	}

	loaded, err := s.LoadAccount()
	if err != nil {
		t.Fatalf("LoadAccount: %v", err)
	}
	if !loaded.TotalBalance.Equal(acc2.TotalBalance) {
		t.Errorf("TotalBalance = %v, want %v (latest save)", loaded.TotalBalance, acc2.TotalBalance)
	}
}
