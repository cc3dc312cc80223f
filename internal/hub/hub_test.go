package hub

import (
	"context"
	"testing"
	"time"

	"market_pulse/internal/domain"

	"github.com/shopspring/decimal"
)

type fixedSnapshot []domain.PriceTick

func (s fixedSnapshot) LatestAll() []domain.PriceTick { return s }

func tick(symbol string, price float64) domain.PriceTick {
	return domain.PriceTick{Symbol: symbol, Price: decimal.NewFromFloat(price), Ts: time.Now()}
}

func TestHub_SnapshotOnSubscribe(t *testing.T) {
	snap := fixedSnapshot{tick("BTCUSDT", 50000), tick("ETHUSDT", 3000)}
	h := New(snap, 64, time.Minute)

	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	for i, want := range snap {
		select {
		case got := <-sub.Out():
			if got.Symbol != want.Symbol {
				t.Errorf("Snapshot entry %d: expected %s, got %s", i, want.Symbol, got.Symbol)
			}
		default:
			t.Fatalf("Snapshot entry %d missing from queue", i)
		}
	}

	// Live deltas follow the snapshot.
	h.Publish(tick("BTCUSDT", 50100))
	select {
	case got := <-sub.Out():
		if !got.Price.Equal(decimal.NewFromInt(50100)) {
			t.Errorf("Expected live delta 50100, got %s", got.Price)
		}
	default:
		t.Fatal("Live delta not delivered")
	}
}

// racingSnapshot publishes a tick while the snapshot is being taken,
// standing in for a tick that lands mid-Subscribe.
type racingSnapshot struct {
	h    *Hub
	tick domain.PriceTick
}

func (r *racingSnapshot) LatestAll() []domain.PriceTick {
	r.h.Publish(r.tick)
	return nil
}

func TestHub_TickDuringSubscribeNotLost(t *testing.T) {
	h := New(nil, 8, time.Minute)
	h.SetSnapshot(&racingSnapshot{h: h, tick: tick("BTCUSDT", 42)})

	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	select {
	case got := <-sub.Out():
		if !got.Price.Equal(decimal.NewFromInt(42)) {
			t.Errorf("Expected the racing tick, got %s", got.Price)
		}
	default:
		t.Fatal("Tick published during subscribe was lost")
	}
}

func TestHub_DropOldest(t *testing.T) {
	h := New(nil, 2, time.Minute)
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	h.Publish(tick("BTCUSDT", 1))
	h.Publish(tick("BTCUSDT", 2))
	h.Publish(tick("BTCUSDT", 3)) // evicts 1

	first := <-sub.Out()
	if !first.Price.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected oldest surviving tick 2, got %s", first.Price)
	}
	second := <-sub.Out()
	if !second.Price.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Expected newest tick 3, got %s", second.Price)
	}
}

func TestHub_SlowSubscriberNeverBlocksOthers(t *testing.T) {
	h := New(nil, 1, time.Minute)
	slow := h.Subscribe()
	fast := h.Subscribe()
	defer h.Unsubscribe(slow)
	defer h.Unsubscribe(fast)

	for i := 1; i <= 5; i++ {
		h.Publish(tick("BTCUSDT", float64(i)))
		// The fast consumer drains every delivery.
		select {
		case got := <-fast.Out():
			if !got.Price.Equal(decimal.NewFromInt(int64(i))) {
				t.Fatalf("Fast consumer got %s, expected %d", got.Price, i)
			}
		default:
			t.Fatalf("Delivery %d missing for fast consumer", i)
		}
	}

	// The slow consumer holds only its most recent tick.
	got := <-slow.Out()
	if !got.Price.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Slow consumer should see the newest tick, got %s", got.Price)
	}
}

func TestHub_UnsubscribeIdempotent(t *testing.T) {
	h := New(nil, 4, time.Minute)
	sub := h.Subscribe()

	h.Unsubscribe(sub)
	h.Unsubscribe(sub) // second call is a no-op
	h.Unsubscribe(nil)

	if h.Count() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", h.Count())
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	h.Publish(tick("BTCUSDT", 1))

	if _, ok := <-sub.Out(); ok {
		t.Error("Expected a closed stream after unsubscribe")
	}
}

func TestHub_ReapsSilentSubscribers(t *testing.T) {
	h := New(nil, 4, 20*time.Millisecond)

	silent := h.Subscribe()
	active := h.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	// Keep one subscriber alive past the keepalive window.
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		active.Touch()
		time.Sleep(5 * time.Millisecond)
	}

	if h.Count() != 1 {
		t.Fatalf("Expected 1 surviving subscriber, got %d", h.Count())
	}
	if _, ok := <-silent.Out(); ok {
		t.Error("Silent subscriber's stream should be closed")
	}
	h.Unsubscribe(active)
}
