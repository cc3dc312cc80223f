// Package stats maintains per-symbol session windows (open/high/low/last
// since the last reset) and produces ranked gainers/losers views.
package stats

import (
	"sort"
	"sync"
	"time"

	"market_pulse/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type window struct {
	mu        sync.Mutex
	open      decimal.Decimal
	high      decimal.Decimal
	low       decimal.Decimal
	last      decimal.Decimal
	updatedAt time.Time
}

// Engine owns the session windows. Updates for different symbols proceed
// in parallel; Reset atomically swaps the whole window table so a reader
// observes either the pre-reset or the post-reset state for a symbol,
// never a mix.
type Engine struct {
	mu         sync.RWMutex
	windows    map[string]*window
	lastUpdate time.Time

	freshness time.Duration
	now       func() time.Time
}

// NewEngine creates a session-statistics engine. freshness is the window
// after which a ranking is flagged stale; a sensible default is twice the
// expected tick interval.
func NewEngine(freshness time.Duration) *Engine {
	return &Engine{
		windows:   make(map[string]*window),
		freshness: freshness,
		now:       time.Now,
	}
}

// Update folds one accepted tick into the symbol's session window,
// opening a fresh window with open=price when none exists.
func (e *Engine) Update(symbol string, price decimal.Decimal, ts time.Time) {
	// Window creation and the lastUpdate bump share one critical section
	// so a racing Reset clears both or neither. Windows enter the map
	// fully initialized: a reader never sees a half-open window, and a
	// write landing in a discarded map cannot leave a fresh engine
	// looking updated.
	e.mu.Lock()
	w, ok := e.windows[symbol]
	if !ok {
		e.windows[symbol] = &window{
			open:      price,
			high:      price,
			low:       price,
			last:      price,
			updatedAt: ts,
		}
	}
	if ts.After(e.lastUpdate) {
		e.lastUpdate = ts
	}
	e.mu.Unlock()
	if !ok {
		return
	}

	w.mu.Lock()
	if price.GreaterThan(w.high) {
		w.high = price
	}
	if price.LessThan(w.low) {
		w.low = price
	}
	w.last = price
	w.updatedAt = ts
	w.mu.Unlock()
}

// Reset discards all windows atomically. Subsequent ticks open fresh
// windows with the then-current price as open. Calling Reset twice in a
// row is equivalent to calling it once.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.windows = make(map[string]*window)
	e.lastUpdate = time.Time{}
	e.mu.Unlock()
}

// Rank computes the gainers/losers view. Gainers are the topN symbols
// with positive percent_change, descending. Losers are recovering losers:
// symbols that fell at least lossPct from their window high and recovered
// at least recoveryPct from their window low, topN ascending by
// percent_change. Ties break by symbol name ascending.
func (e *Engine) Rank(topN int, lossPct, recoveryPct decimal.Decimal) domain.RankSnapshot {
	e.mu.RLock()
	windows := make(map[string]*window, len(e.windows))
	for sym, w := range e.windows {
		windows[sym] = w
	}
	lastUpdate := e.lastUpdate
	e.mu.RUnlock()

	entries := make([]domain.RankEntry, 0, len(windows))
	for sym, w := range windows {
		w.mu.Lock()
		entry := domain.RankEntry{
			Symbol: sym,
			Last:   w.last,
			High:   w.high,
			Low:    w.low,
		}
		open := w.open
		w.mu.Unlock()

		if open.IsZero() {
			continue
		}
		entry.PercentChange = entry.Last.Div(open).Sub(decimal.NewFromInt(1)).Mul(hundred)
		entries = append(entries, entry)
	}

	gainers := make([]domain.RankEntry, 0, len(entries))
	losers := make([]domain.RankEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.PercentChange.IsPositive() {
			gainers = append(gainers, entry)
		}
		if qualifiesAsLoser(entry, lossPct, recoveryPct) {
			losers = append(losers, entry)
		}
	}

	sort.Slice(gainers, func(i, j int) bool {
		if !gainers[i].PercentChange.Equal(gainers[j].PercentChange) {
			return gainers[i].PercentChange.GreaterThan(gainers[j].PercentChange)
		}
		return gainers[i].Symbol < gainers[j].Symbol
	})
	sort.Slice(losers, func(i, j int) bool {
		if !losers[i].PercentChange.Equal(losers[j].PercentChange) {
			return losers[i].PercentChange.LessThan(losers[j].PercentChange)
		}
		return losers[i].Symbol < losers[j].Symbol
	})

	if topN > 0 {
		if len(gainers) > topN {
			gainers = gainers[:topN]
		}
		if len(losers) > topN {
			losers = losers[:topN]
		}
	}

	stale := lastUpdate.IsZero() || e.now().Sub(lastUpdate) > e.freshness
	return domain.RankSnapshot{
		Gainers: gainers,
		Losers:  losers,
		Meta: domain.RankMeta{
			UpdatedAt:    lastUpdate,
			Stale:        stale,
			UniverseSize: len(entries),
			LossPct:      lossPct,
			RecoveryPct:  recoveryPct,
		},
	}
}

// qualifiesAsLoser applies the recovering-loser policy: the symbol fell
// at least lossPct from its window high and has come back at least
// recoveryPct off its window low.
func qualifiesAsLoser(entry domain.RankEntry, lossPct, recoveryPct decimal.Decimal) bool {
	if !entry.High.IsPositive() || !entry.Low.IsPositive() {
		return false
	}
	dropFloor := entry.High.Mul(decimal.NewFromInt(1).Sub(lossPct.Div(hundred)))
	if entry.Last.GreaterThan(dropFloor) {
		return false
	}
	recoveryBar := entry.Low.Mul(decimal.NewFromInt(1).Add(recoveryPct.Div(hundred)))
	return entry.Last.GreaterThanOrEqual(recoveryBar)
}
