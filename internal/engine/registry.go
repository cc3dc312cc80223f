package engine

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"market_pulse/internal/domain"
)

// Registry owns the symbol table. Symbols are created lazily on first
// reference and registration is idempotent: concurrent first-ticks for the
// same new name produce exactly one Symbol.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*domain.Symbol
	nextID  int64
	archive domain.Archive
}

// NewRegistry creates an empty registry. archive may be nil for tests.
func NewRegistry(archive domain.Archive) *Registry {
	return &Registry{
		byName:  make(map[string]*domain.Symbol),
		nextID:  1,
		archive: archive,
	}
}

// Ensure returns the symbol for name, creating it if unseen.
// Names are normalized to upper case.
func (r *Registry) Ensure(name string) *domain.Symbol {
	name = strings.ToUpper(strings.TrimSpace(name))

	r.mu.RLock()
	sym, ok := r.byName[name]
	r.mu.RUnlock()
	if ok {
		return sym
	}

	r.mu.Lock()
	// Re-check: another goroutine may have registered the name while we
	// were waiting for the write lock.
	if sym, ok = r.byName[name]; ok {
		r.mu.Unlock()
		return sym
	}
	sym = &domain.Symbol{
		ID:        r.nextID,
		Name:      name,
		CreatedAt: time.Now(),
	}
	r.nextID++
	r.byName[name] = sym
	r.mu.Unlock()

	if r.archive != nil {
		if err := r.archive.SaveSymbol(sym); err != nil {
			slog.Warn("failed to persist symbol", slog.String("symbol", name), slog.Any("error", err))
		}
	}
	return sym
}

// Restore pre-populates the registry from persisted rows so IDs assigned
// in earlier runs are not reused for new names.
func (r *Registry) Restore(symbols []domain.Symbol) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range symbols {
		sym := symbols[i]
		if _, ok := r.byName[sym.Name]; ok {
			continue
		}
		r.byName[sym.Name] = &sym
		if sym.ID >= r.nextID {
			r.nextID = sym.ID + 1
		}
	}
}

// Lookup returns the symbol for name without creating it.
func (r *Registry) Lookup(name string) (*domain.Symbol, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	r.mu.RLock()
	defer r.mu.RUnlock()
	sym, ok := r.byName[name]
	return sym, ok
}

// LookupID returns the symbol with the given ID. Linear scan; used only
// on restore paths, never per tick.
func (r *Registry) LookupID(id int64) (*domain.Symbol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sym := range r.byName {
		if sym.ID == id {
			return sym, true
		}
	}
	return nil, false
}

// Seed pre-registers the configured symbol universe.
func (r *Registry) Seed(names []string) {
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		r.Ensure(name)
	}
}

// All returns every known symbol sorted by name.
func (r *Registry) All() []*domain.Symbol {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Symbol, 0, len(r.byName))
	for _, sym := range r.byName {
		result = append(result, sym)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
