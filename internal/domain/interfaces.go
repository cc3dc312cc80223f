package domain

import (
	"context"
)

// TickSource is the polymorphic price feed adapter. The core treats the
// cadence and origin (mock generator or real exchange stream) as opaque.
type TickSource interface {
	// Start begins producing ticks until the context is cancelled.
	Start(ctx context.Context) error
	// Stop tears the source down and drains its resources.
	Stop()
	// Ticks is the outbound stream of raw observations.
	Ticks() <-chan RawTick
}

// Archive is the persistence boundary the core writes through.
// Durable storage is an external collaborator: failures are logged by
// callers, never propagated into the in-memory state machine.
type Archive interface {
	SaveSymbol(symbol *Symbol) error
	SaveOrder(order *Order) error
	SavePosition(position *Position) error
	SaveDecision(log *DecisionLog) error
}
