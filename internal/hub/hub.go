// Package hub fans accepted ticks out to live subscribers. Delivery is
// best-effort: a slow consumer sees only its most recent N ticks and can
// never block ingestion.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"market_pulse/internal/domain"
	"market_pulse/internal/infra"

	"github.com/google/uuid"
)

// Snapshotter provides the latest tick per symbol, pushed to every new
// subscriber before it switches to live delta mode.
type Snapshotter interface {
	LatestAll() []domain.PriceTick
}

// Subscriber is one live connection's handle: a bounded outbound queue
// plus a liveness timestamp. Handles are owned by the hub and must not be
// used after Unsubscribe.
type Subscriber struct {
	id       uuid.UUID
	out      chan domain.PriceTick
	mu       sync.Mutex
	closed   bool
	lastSeen atomic.Int64
}

// ID returns the handle's unique identifier.
func (s *Subscriber) ID() uuid.UUID { return s.id }

// Out is the subscriber's tick stream. It is closed on unsubscribe.
func (s *Subscriber) Out() <-chan domain.PriceTick { return s.out }

// Touch records outbound activity (a write or an ack), deferring the
// keepalive reaper.
func (s *Subscriber) Touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// offer enqueues without blocking. When the queue is full the oldest
// queued tick is evicted in favor of the new one.
func (s *Subscriber) offer(tick domain.PriceTick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.out <- tick:
			return
		default:
		}
		select {
		case <-s.out:
			infra.DroppedTicksTotal.Inc()
		default:
		}
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.out)
}

// Hub holds the set of live subscribers.
type Hub struct {
	snapshot  Snapshotter
	queueSize int
	keepalive time.Duration

	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscriber
}

// New creates a hub. queueSize bounds each subscriber's outbound queue;
// keepalive is the silence window after which a subscriber is presumed
// dead and removed.
func New(snapshot Snapshotter, queueSize int, keepalive time.Duration) *Hub {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Hub{
		snapshot:  snapshot,
		queueSize: queueSize,
		keepalive: keepalive,
		subs:      make(map[uuid.UUID]*Subscriber),
	}
}

// SetSnapshot installs the snapshot source. The hub and the processor
// reference each other, so one of them is wired after construction; call
// this before the first Subscribe.
func (h *Hub) SetSnapshot(s Snapshotter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = s
}

// Subscribe registers a new subscriber. The latest tick per symbol is
// queued before the handle is returned, so a fresh connection is never
// stuck waiting for the next organic tick.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		id:  uuid.New(),
		out: make(chan domain.PriceTick, h.queueSize),
	}
	sub.Touch()

	// Register before the snapshot is taken: a tick racing Subscribe is
	// either absorbed by the snapshot or delivered live, never dropped in
	// between. A symbol may arrive twice with a non-decreasing timestamp.
	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()

	if h.snapshot != nil {
		for _, tick := range h.snapshot.LatestAll() {
			sub.offer(tick)
		}
	}

	infra.SubscribersGauge.Inc()
	return sub
}

// Unsubscribe removes a handle and closes its stream. Safe to race with a
// concurrent Publish to the same handle, and safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	_, ok := h.subs[sub.id]
	if ok {
		delete(h.subs, sub.id)
	}
	h.mu.Unlock()

	if ok {
		sub.close()
		infra.SubscribersGauge.Dec()
	}
}

// Publish enqueues the tick to every current subscriber without blocking.
func (h *Hub) Publish(tick domain.PriceTick) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		sub.offer(tick)
	}
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Run reaps subscribers that have shown no outbound activity within the
// keepalive window. It returns when the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	if h.keepalive <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(h.keepalive / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.reap()
		}
	}
}

func (h *Hub) reap() {
	deadline := time.Now().Add(-h.keepalive).UnixNano()

	h.mu.RLock()
	var dead []*Subscriber
	for _, sub := range h.subs {
		if sub.lastSeen.Load() < deadline {
			dead = append(dead, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range dead {
		slog.Info("reaping silent subscriber", slog.String("id", sub.id.String()))
		h.Unsubscribe(sub)
	}
}
