package decision

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"market_pulse/internal/domain"
	"market_pulse/internal/engine"
	"market_pulse/internal/hub"
	"market_pulse/internal/ledger"
)

const defaultLogCap = 100

// Producer consumes the live feed through a hub subscription, runs the
// strategy, applies the resulting intents to the ledger, and records one
// decision-log entry per intent.
type Producer struct {
	hub      *hub.Hub
	ledger   *ledger.Ledger
	registry *engine.Registry
	strategy Strategy
	archive  domain.Archive

	mu     sync.Mutex
	recent []domain.DecisionLog
	nextID int64
	logCap int
}

// NewProducer creates a decision producer. archive may be nil for tests.
func NewProducer(h *hub.Hub, l *ledger.Ledger, registry *engine.Registry, strategy Strategy, archive domain.Archive) *Producer {
	return &Producer{
		hub:      h,
		ledger:   l,
		registry: registry,
		strategy: strategy,
		archive:  archive,
		nextID:   1,
		logCap:   defaultLogCap,
	}
}

// RestoreSeq advances the log ID counter past persisted history so a
// restart never reuses an ID.
func (p *Producer) RestoreSeq(lastID int64) {
	p.mu.Lock()
	if lastID >= p.nextID {
		p.nextID = lastID + 1
	}
	p.mu.Unlock()
}

// Run subscribes to the hub and processes ticks until the context is
// cancelled. The producer is an ordinary subscriber: it acks every
// delivery so the keepalive reaper leaves it alone.
func (p *Producer) Run(ctx context.Context) {
	sub := p.hub.Subscribe()
	defer p.hub.Unsubscribe(sub)

	slog.Info("decision producer started")
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-sub.Out():
			if !ok {
				return
			}
			sub.Touch()
			p.onTick(tick)
		}
	}
}

func (p *Producer) onTick(tick domain.PriceTick) {
	for _, action := range p.strategy.OnTick(tick) {
		_, err := p.ledger.Apply(action.Symbol, action.Side, action.Qty, action.Price)
		if err != nil {
			slog.Warn("intent rejected by ledger",
				slog.String("symbol", action.Symbol),
				slog.String("side", action.Side),
				slog.Any("error", err))
		}
		p.record(action, err)
	}
}

// record keeps the most recent entries in memory and mirrors them to
// storage best-effort.
func (p *Producer) record(action Action, applyErr error) {
	sym := p.registry.Ensure(action.Symbol)
	rationale := action.Rationale
	if applyErr != nil {
		rationale += " (rejected: " + applyErr.Error() + ")"
	}

	entry := domain.DecisionLog{
		SymbolID:   sym.ID,
		Symbol:     sym.Name,
		Decision:   action.Side,
		Confidence: action.Confidence,
		Rationale:  rationale,
		CreatedAt:  time.Now(),
	}

	p.mu.Lock()
	entry.ID = p.nextID
	p.nextID++
	p.recent = append(p.recent, entry)
	if len(p.recent) > p.logCap {
		p.recent = p.recent[len(p.recent)-p.logCap:]
	}
	p.mu.Unlock()

	if p.archive != nil {
		if err := p.archive.SaveDecision(&entry); err != nil {
			slog.Warn("failed to persist decision", slog.Any("error", err))
		}
	}
}

// Recent returns the newest limit decision-log entries, newest first.
func (p *Producer) Recent(limit int) []domain.DecisionLog {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.recent)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]domain.DecisionLog, n)
	for i := 0; i < n; i++ {
		result[i] = p.recent[len(p.recent)-1-i]
	}
	return result
}
