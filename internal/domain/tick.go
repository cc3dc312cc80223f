package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceTick is a single accepted price observation for one symbol.
// Only the latest tick per symbol is retained as current state; every
// accepted tick also feeds the session window and the broadcast hub.
type PriceTick struct {
	SymbolID int64           `json:"symbol_id"`
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Ts       time.Time       `json:"ts"`
}

// RawTick is what a tick source delivers before the symbol has been
// resolved against the registry.
type RawTick struct {
	Symbol string
	Price  decimal.Decimal
	Ts     time.Time
}

// RankEntry is one row of the gainers/losers view.
type RankEntry struct {
	Symbol        string          `json:"symbol"`
	Last          decimal.Decimal `json:"last"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	PercentChange decimal.Decimal `json:"percent_change"`
}

// RankMeta carries freshness information alongside a ranking.
// Stale is informational, never an error: ranking data stays readable
// even when ticks have stopped arriving.
type RankMeta struct {
	UpdatedAt    time.Time       `json:"updated_at"`
	Stale        bool            `json:"stale"`
	UniverseSize int             `json:"universe_size"`
	LossPct      decimal.Decimal `json:"loss_pct"`
	RecoveryPct  decimal.Decimal `json:"recovery_pct"`
}

// RankSnapshot is a point-in-time gainers/losers ranking.
type RankSnapshot struct {
	Gainers []RankEntry `json:"gainers"`
	Losers  []RankEntry `json:"losers"`
	Meta    RankMeta    `json:"meta"`
}
