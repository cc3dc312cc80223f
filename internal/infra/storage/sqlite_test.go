package storage

import (
	"path/filepath"
	"testing"
	"time"

	"market_pulse/internal/domain"

	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *Storage {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStorage(path)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return s
}

func TestSaveAndListSymbols(t *testing.T) {
	s := setupTestDB(t)

	for _, name := range []string{"ETHUSDT", "BTCUSDT"} {
		if err := s.SaveSymbol(&domain.Symbol{Name: name, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("SaveSymbol(%s) failed: %v", name, err)
		}
	}

	symbols, err := s.Symbols()
	if err != nil {
		t.Fatalf("Symbols failed: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(symbols))
	}
	if symbols[0].Name != "BTCUSDT" {
		t.Errorf("expected name-ordered result, got %s first", symbols[0].Name)
	}
}

func TestOrderHistoryNewestFirst(t *testing.T) {
	s := setupTestDB(t)

	for i := 1; i <= 3; i++ {
		order := &domain.Order{
			ID:        int64(i),
			SymbolID:  1,
			Side:      domain.SideBuy,
			Qty:       decimal.NewFromInt(1),
			Price:     decimal.NewFromInt(int64(100 * i)),
			Status:    domain.OrderStatusFilled,
			CreatedAt: time.Now(),
		}
		if err := s.SaveOrder(order); err != nil {
			t.Fatalf("SaveOrder failed: %v", err)
		}
	}

	orders, err := s.RecentOrders(2)
	if err != nil {
		t.Fatalf("RecentOrders failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].ID != 3 || orders[1].ID != 2 {
		t.Errorf("expected newest first, got IDs %d, %d", orders[0].ID, orders[1].ID)
	}
}

func TestPositionUpsert(t *testing.T) {
	s := setupTestDB(t)

	pos := &domain.Position{
		SymbolID:  1,
		Qty:       decimal.NewFromInt(2),
		AvgPrice:  decimal.NewFromInt(150),
		UpdatedAt: time.Now(),
	}
	if err := s.SavePosition(pos); err != nil {
		t.Fatalf("SavePosition failed: %v", err)
	}

	pos.Qty = decimal.NewFromInt(1)
	if err := s.SavePosition(pos); err != nil {
		t.Fatalf("SavePosition update failed: %v", err)
	}

	positions, err := s.Positions()
	if err != nil {
		t.Fatalf("Positions failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected a single row per symbol, got %d", len(positions))
	}
	if !positions[0].Qty.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected qty 1 after upsert, got %v", positions[0].Qty)
	}
}

func TestRecentDecisions(t *testing.T) {
	s := setupTestDB(t)

	for i := 0; i < 3; i++ {
		log := &domain.DecisionLog{
			SymbolID:   1,
			Decision:   domain.DecisionHold,
			Confidence: decimal.NewFromFloat(0.5),
			Rationale:  "warming up",
			CreatedAt:  time.Now(),
		}
		if err := s.SaveDecision(log); err != nil {
			t.Fatalf("SaveDecision failed: %v", err)
		}
	}

	logs, err := s.RecentDecisions(2)
	if err != nil {
		t.Fatalf("RecentDecisions failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 decision rows, got %d", len(logs))
	}
	if logs[0].ID <= logs[1].ID {
		t.Errorf("expected newest first, got IDs %d, %d", logs[0].ID, logs[1].ID)
	}
}
