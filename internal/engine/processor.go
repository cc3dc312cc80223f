package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"market_pulse/internal/domain"
	"market_pulse/internal/infra"

	"github.com/shopspring/decimal"
)

// StatSink receives every accepted tick for session-window aggregation.
type StatSink interface {
	Update(symbol string, price decimal.Decimal, ts time.Time)
}

// Broadcaster fans an accepted tick out to live subscribers.
// Publish must never block the ingestion path.
type Broadcaster interface {
	Publish(tick domain.PriceTick)
}

// Processor is the single writer of the latest-price table. Per-symbol
// state is independently locked so ticks for different symbols never
// contend; two ticks for the same symbol are serialized and applied,
// aggregated, and broadcast in acceptance order.
type Processor struct {
	registry *Registry
	stats    StatSink
	hub      Broadcaster

	mu     sync.RWMutex
	latest map[int64]*latestSlot
}

type latestSlot struct {
	mu   sync.Mutex
	tick domain.PriceTick
	set  bool
}

// NewProcessor creates a tick processor. stats and hub may be nil in tests.
func NewProcessor(registry *Registry, stats StatSink, hub Broadcaster) *Processor {
	return &Processor{
		registry: registry,
		stats:    stats,
		hub:      hub,
		latest:   make(map[int64]*latestSlot),
	}
}

// Apply validates and applies one raw tick: latest-price table first, then
// the session window, then the hub. A tick strictly older than the stored
// latest for its symbol fails with ErrStaleTick and alters nothing.
func (p *Processor) Apply(raw domain.RawTick) (domain.PriceTick, error) {
	if raw.Symbol == "" || !raw.Price.IsPositive() {
		return domain.PriceTick{}, domain.ErrInvalidTick
	}

	sym := p.registry.Ensure(raw.Symbol)
	slot := p.slot(sym.ID)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.set && raw.Ts.Before(slot.tick.Ts) {
		infra.StaleTicksTotal.WithLabelValues(sym.Name).Inc()
		return domain.PriceTick{}, domain.ErrStaleTick
	}

	tick := domain.PriceTick{
		SymbolID: sym.ID,
		Symbol:   sym.Name,
		Price:    raw.Price,
		Ts:       raw.Ts,
	}
	slot.tick = tick
	slot.set = true

	// Stats and broadcast happen under the slot lock so that two accepted
	// ticks for one symbol reach downstream consumers in acceptance order.
	if p.stats != nil {
		p.stats.Update(sym.Name, tick.Price, tick.Ts)
	}
	if p.hub != nil {
		p.hub.Publish(tick)
	}

	infra.TicksTotal.WithLabelValues(sym.Name).Inc()
	return tick, nil
}

// Run consumes a tick source until the context is cancelled. Stale ticks
// are logged and dropped; ingestion never stops because of them.
func (p *Processor) Run(ctx context.Context, source domain.TickSource) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-source.Ticks():
			if !ok {
				return
			}
			if _, err := p.Apply(raw); err != nil {
				if errors.Is(err, domain.ErrStaleTick) {
					slog.Debug("dropped stale tick",
						slog.String("symbol", raw.Symbol),
						slog.Time("ts", raw.Ts))
					continue
				}
				slog.Warn("rejected tick", slog.String("symbol", raw.Symbol), slog.Any("error", err))
			}
		}
	}
}

// Latest returns the current tick for a symbol name.
func (p *Processor) Latest(name string) (domain.PriceTick, error) {
	sym, ok := p.registry.Lookup(name)
	if !ok {
		return domain.PriceTick{}, domain.ErrUnknownSymbol
	}

	p.mu.RLock()
	slot, ok := p.latest[sym.ID]
	p.mu.RUnlock()
	if !ok {
		return domain.PriceTick{}, domain.ErrUnknownSymbol
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	if !slot.set {
		return domain.PriceTick{}, domain.ErrUnknownSymbol
	}
	return slot.tick, nil
}

// LatestAll returns the latest tick per symbol, sorted by symbol name.
// This is the snapshot a new hub subscriber receives before live deltas.
func (p *Processor) LatestAll() []domain.PriceTick {
	p.mu.RLock()
	slots := make([]*latestSlot, 0, len(p.latest))
	for _, slot := range p.latest {
		slots = append(slots, slot)
	}
	p.mu.RUnlock()

	result := make([]domain.PriceTick, 0, len(slots))
	for _, slot := range slots {
		slot.mu.Lock()
		if slot.set {
			result = append(result, slot.tick)
		}
		slot.mu.Unlock()
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result
}

func (p *Processor) slot(symbolID int64) *latestSlot {
	p.mu.RLock()
	slot, ok := p.latest[symbolID]
	p.mu.RUnlock()
	if ok {
		return slot
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if slot, ok = p.latest[symbolID]; ok {
		return slot
	}
	slot = &latestSlot{}
	p.latest[symbolID] = slot
	return slot
}
