// Package mockfeed emits synthetic random-walk ticks, standing in for a
// real exchange stream during development and tests.
package mockfeed

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"market_pulse/internal/domain"

	"github.com/shopspring/decimal"
)

const defaultBasePrice = 100.0

// Generator produces one tick per interval for a random symbol of its
// universe, drifting each price by at most ±0.5% per step.
type Generator struct {
	symbols  []string
	interval time.Duration
	rand     *rand.Rand
	now      func() time.Time

	prices map[string]float64
	out    chan domain.RawTick
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGenerator creates a mock source. basePrices may seed specific
// starting prices; unlisted symbols start at a default base.
func NewGenerator(symbols []string, interval time.Duration, basePrices map[string]float64) *Generator {
	if interval <= 0 {
		interval = time.Second
	}
	prices := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		if base, ok := basePrices[sym]; ok && base > 0 {
			prices[sym] = base
		} else {
			prices[sym] = defaultBasePrice
		}
	}
	return &Generator{
		symbols:  symbols,
		interval: interval,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
		prices:   prices,
		out:      make(chan domain.RawTick, 256),
	}
}

// Start begins emitting ticks until the context is cancelled.
func (g *Generator) Start(ctx context.Context) error {
	ctx, g.cancel = context.WithCancel(ctx)
	g.wg.Add(1)
	go g.run(ctx)
	slog.Info("mock feed started",
		slog.Int("symbols", len(g.symbols)),
		slog.Duration("interval", g.interval))
	return nil
}

// Stop cancels the generator and waits for the emit loop to exit.
func (g *Generator) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()
}

// Ticks is the outbound stream of synthetic observations.
func (g *Generator) Ticks() <-chan domain.RawTick {
	return g.out
}

func (g *Generator) run(ctx context.Context) {
	defer g.wg.Done()
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick := g.next()
			select {
			case g.out <- tick:
			case <-ctx.Done():
				return
			}
		}
	}
}

// next advances one symbol's random walk and packages the observation.
func (g *Generator) next() domain.RawTick {
	sym := g.symbols[g.rand.Intn(len(g.symbols))]
	drift := (g.rand.Float64() - 0.5) / 100 // ±0.5% per step
	price := g.prices[sym] * (1 + drift)
	if price <= 0 {
		price = g.prices[sym]
	}
	g.prices[sym] = price

	return domain.RawTick{
		Symbol: sym,
		Price:  decimal.NewFromFloat(price).Round(8),
		Ts:     g.now(),
	}
}
