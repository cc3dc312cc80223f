// Package ledger applies paper-trading orders to weighted-average cost
// basis positions and keeps the immutable order history.
package ledger

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"market_pulse/internal/domain"
	"market_pulse/internal/engine"
	"market_pulse/internal/infra"

	"github.com/shopspring/decimal"
)

type positionSlot struct {
	mu  sync.Mutex
	pos domain.Position
}

// Ledger owns all positions and the order history. Order application for
// one symbol is strictly sequential; different symbols apply in parallel.
// Every successful apply appends the order and updates the position as one
// step: a reader never observes one without the other.
type Ledger struct {
	registry *engine.Registry
	archive  domain.Archive

	mu        sync.RWMutex
	positions map[int64]*positionSlot

	ordersMu    sync.Mutex
	orders      []domain.Order
	nextOrderID int64
}

// New creates an empty ledger. archive may be nil for tests.
func New(registry *engine.Registry, archive domain.Archive) *Ledger {
	return &Ledger{
		registry:    registry,
		archive:     archive,
		positions:   make(map[int64]*positionSlot),
		nextOrderID: 1,
	}
}

// Apply validates and fills one trade intent. Unknown symbol names are
// auto-registered with a zero-state position, mirroring lazy symbol
// creation on the tick path. On any rejection the ledger state is left
// untouched.
func (l *Ledger) Apply(symbolName, side string, qty, price decimal.Decimal) (domain.Order, error) {
	if side != domain.SideBuy && side != domain.SideSell {
		infra.RejectedOrdersTotal.WithLabelValues("invalid_order").Inc()
		return domain.Order{}, &domain.OrderError{Field: "side", Err: domain.ErrInvalidOrder}
	}
	if !qty.IsPositive() {
		infra.RejectedOrdersTotal.WithLabelValues("invalid_order").Inc()
		return domain.Order{}, &domain.OrderError{Field: "qty", Err: domain.ErrInvalidOrder}
	}
	if !price.IsPositive() {
		infra.RejectedOrdersTotal.WithLabelValues("invalid_order").Inc()
		return domain.Order{}, &domain.OrderError{Field: "price", Err: domain.ErrInvalidOrder}
	}

	sym := l.registry.Ensure(symbolName)

	// A SELL against a symbol with no position must not leave a zero-state
	// row behind, so only a BUY creates the slot.
	slot, ok := l.lookupSlot(sym.ID)
	if !ok {
		if side == domain.SideSell {
			infra.RejectedOrdersTotal.WithLabelValues("insufficient_position").Inc()
			return domain.Order{}, &domain.OrderError{Field: "qty", Err: domain.ErrInsufficientPosition}
		}
		slot = l.slot(sym)
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if side == domain.SideSell && qty.GreaterThan(slot.pos.Qty) {
		infra.RejectedOrdersTotal.WithLabelValues("insufficient_position").Inc()
		return domain.Order{}, &domain.OrderError{Field: "qty", Err: domain.ErrInsufficientPosition}
	}

	now := time.Now()
	order := domain.Order{
		SymbolID:  sym.ID,
		Symbol:    sym.Name,
		Side:      side,
		Qty:       qty,
		Price:     price,
		Status:    domain.OrderStatusFilled,
		CreatedAt: now,
	}

	// Order append and position mutation happen under the symbol lock so
	// the two effects are observed together.
	l.ordersMu.Lock()
	order.ID = l.nextOrderID
	l.nextOrderID++
	l.orders = append(l.orders, order)
	l.ordersMu.Unlock()

	switch side {
	case domain.SideBuy:
		newQty := slot.pos.Qty.Add(qty)
		if slot.pos.Qty.IsZero() {
			slot.pos.AvgPrice = price
		} else {
			held := slot.pos.AvgPrice.Mul(slot.pos.Qty)
			slot.pos.AvgPrice = held.Add(price.Mul(qty)).Div(newQty)
		}
		slot.pos.Qty = newQty
	case domain.SideSell:
		// Weighted-average accounting: the cost basis of the remaining
		// lot is unchanged by a sale.
		slot.pos.Qty = slot.pos.Qty.Sub(qty)
	}
	slot.pos.UpdatedAt = now

	l.persist(order, slot.pos)
	infra.OrdersTotal.WithLabelValues(sym.Name, side).Inc()
	return order, nil
}

// RestorePositions pre-populates the position table from persisted rows.
// Rows whose symbol the registry does not know are skipped: a position
// without its symbol row is an orphan, not state to resurrect. Call
// before serving orders, after the registry has been restored.
func (l *Ledger) RestorePositions(positions []domain.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range positions {
		pos := positions[i]
		sym, ok := l.registry.LookupID(pos.SymbolID)
		if !ok {
			continue
		}
		if _, exists := l.positions[pos.SymbolID]; exists {
			continue
		}
		pos.Symbol = sym.Name
		l.positions[pos.SymbolID] = &positionSlot{pos: pos}
	}
}

// RestoreOrderSeq advances the order ID counter past persisted history so
// a restart never reuses an ID.
func (l *Ledger) RestoreOrderSeq(lastID int64) {
	l.ordersMu.Lock()
	if lastID >= l.nextOrderID {
		l.nextOrderID = lastID + 1
	}
	l.ordersMu.Unlock()
}

// Position returns the position for a symbol name.
func (l *Ledger) Position(symbolName string) (domain.Position, error) {
	sym, ok := l.registry.Lookup(symbolName)
	if !ok {
		return domain.Position{}, domain.ErrUnknownSymbol
	}

	l.mu.RLock()
	slot, ok := l.positions[sym.ID]
	l.mu.RUnlock()
	if !ok {
		return domain.Position{}, domain.ErrUnknownSymbol
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.pos, nil
}

// Positions returns a snapshot of every position sorted by symbol name.
func (l *Ledger) Positions() []domain.Position {
	l.mu.RLock()
	slots := make([]*positionSlot, 0, len(l.positions))
	for _, slot := range l.positions {
		slots = append(slots, slot)
	}
	l.mu.RUnlock()

	result := make([]domain.Position, 0, len(slots))
	for _, slot := range slots {
		slot.mu.Lock()
		result = append(result, slot.pos)
		slot.mu.Unlock()
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result
}

// Orders returns the most recent limit orders, newest first.
// limit <= 0 returns the full history.
func (l *Ledger) Orders(limit int) []domain.Order {
	l.ordersMu.Lock()
	defer l.ordersMu.Unlock()

	n := len(l.orders)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]domain.Order, n)
	for i := 0; i < n; i++ {
		result[i] = l.orders[len(l.orders)-1-i]
	}
	return result
}

func (l *Ledger) lookupSlot(symbolID int64) (*positionSlot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	slot, ok := l.positions[symbolID]
	return slot, ok
}

func (l *Ledger) slot(sym *domain.Symbol) *positionSlot {
	l.mu.RLock()
	slot, ok := l.positions[sym.ID]
	l.mu.RUnlock()
	if ok {
		return slot
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if slot, ok = l.positions[sym.ID]; ok {
		return slot
	}
	slot = &positionSlot{
		pos: domain.Position{
			SymbolID: sym.ID,
			Symbol:   sym.Name,
			Qty:      decimal.Zero,
			AvgPrice: decimal.Zero,
		},
	}
	l.positions[sym.ID] = slot
	return slot
}

// persist mirrors the fill into durable storage. The in-memory ledger is
// authoritative; storage failures are logged, never surfaced to callers.
func (l *Ledger) persist(order domain.Order, pos domain.Position) {
	if l.archive == nil {
		return
	}
	if err := l.archive.SaveOrder(&order); err != nil {
		slog.Warn("failed to persist order", slog.Int64("order_id", order.ID), slog.Any("error", err))
	}
	if err := l.archive.SavePosition(&pos); err != nil {
		slog.Warn("failed to persist position", slog.String("symbol", pos.Symbol), slog.Any("error", err))
	}
}
