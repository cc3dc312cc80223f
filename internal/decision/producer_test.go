package decision

import (
	"strings"
	"testing"

	"market_pulse/internal/domain"
	"market_pulse/internal/engine"
	"market_pulse/internal/ledger"
)

// scriptedStrategy replays a fixed set of intents on the first tick.
type scriptedStrategy struct {
	actions []Action
	fired   bool
}

func (s *scriptedStrategy) OnTick(domain.PriceTick) []Action {
	if s.fired {
		return nil
	}
	s.fired = true
	return s.actions
}

func TestProducer_AppliesIntentsToLedger(t *testing.T) {
	registry := engine.NewRegistry(nil)
	book := ledger.New(registry, nil)
	strat := &scriptedStrategy{actions: []Action{
		{Symbol: "BTCUSDT", Side: domain.SideBuy, Price: d(100), Qty: d(2), Confidence: d(0.8), Rationale: "golden cross"},
	}}

	p := NewProducer(nil, book, registry, strat, nil)
	p.onTick(priceTick("BTCUSDT", 100))

	pos, err := book.Position("BTCUSDT")
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if !pos.Qty.Equal(d(2)) {
		t.Errorf("Expected qty 2, got %s", pos.Qty)
	}

	recent := p.Recent(10)
	if len(recent) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(recent))
	}
	if recent[0].Decision != domain.SideBuy || recent[0].Rationale != "golden cross" {
		t.Errorf("Unexpected log entry: %+v", recent[0])
	}
}

func TestProducer_RecordsRejectedIntent(t *testing.T) {
	registry := engine.NewRegistry(nil)
	book := ledger.New(registry, nil)
	strat := &scriptedStrategy{actions: []Action{
		{Symbol: "BTCUSDT", Side: domain.SideSell, Price: d(100), Qty: d(1), Confidence: d(0.6), Rationale: "dead cross"},
	}}

	p := NewProducer(nil, book, registry, strat, nil)
	p.onTick(priceTick("BTCUSDT", 100))

	// The sell had nothing to sell: logged with the rejection, no position.
	if len(book.Positions()) != 0 {
		t.Error("Rejected sell must not create a position")
	}
	recent := p.Recent(10)
	if len(recent) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(recent))
	}
	if !strings.Contains(recent[0].Rationale, "rejected") {
		t.Errorf("Expected a rejection note in the rationale, got %q", recent[0].Rationale)
	}
}

func TestProducer_RecentNewestFirst(t *testing.T) {
	registry := engine.NewRegistry(nil)
	book := ledger.New(registry, nil)
	p := NewProducer(nil, book, registry, &scriptedStrategy{}, nil)

	for i := 0; i < 5; i++ {
		p.record(Action{Symbol: "BTCUSDT", Side: domain.DecisionHold, Confidence: d(0.5), Rationale: "hold"}, nil)
	}

	recent := p.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(recent))
	}
	if recent[0].ID <= recent[1].ID || recent[1].ID <= recent[2].ID {
		t.Errorf("Entries not newest first: %d, %d, %d", recent[0].ID, recent[1].ID, recent[2].ID)
	}
}
