package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Symbol identifies one tradeable market (e.g. "BTCUSDT").
// Rows are created lazily on the first tick or order that references an
// unknown name and are never mutated afterwards.
type Symbol struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:32" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Order is one immutable paper-trading fill. Orders are append-only:
// IDs are strictly increasing and a row is never updated or deleted.
type Order struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	SymbolID  int64           `gorm:"index" json:"symbol_id"`
	Symbol    string          `gorm:"-" json:"symbol"`
	Side      string          `gorm:"size:4" json:"side"`
	Qty       decimal.Decimal `gorm:"type:decimal(32,12)" json:"qty"`
	Price     decimal.Decimal `gorm:"type:decimal(32,12)" json:"price"`
	Status    string          `gorm:"size:16" json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// Position is the weighted-average cost basis for one symbol.
// Exactly one row exists per symbol; qty never goes negative and the row
// is retained at qty 0 so the symbol's history stays queryable.
// AvgPrice is a don't-care value while Qty is zero.
type Position struct {
	SymbolID  int64           `gorm:"primaryKey" json:"symbol_id"`
	Symbol    string          `gorm:"-" json:"symbol"`
	Qty       decimal.Decimal `gorm:"type:decimal(32,12)" json:"qty"`
	AvgPrice  decimal.Decimal `gorm:"type:decimal(32,12)" json:"avg_price"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DecisionLog records one strategy decision (BUY/SELL/HOLD) with its
// rationale, whether or not an order came out of it.
type DecisionLog struct {
	ID         int64           `gorm:"primaryKey" json:"id"`
	SymbolID   int64           `gorm:"index" json:"symbol_id"`
	Symbol     string          `gorm:"-" json:"symbol"`
	Decision   string          `gorm:"size:8" json:"decision"`
	Confidence decimal.Decimal `gorm:"type:decimal(8,4)" json:"confidence"`
	Rationale  string          `gorm:"size:1024" json:"rationale"`
	CreatedAt  time.Time       `json:"created_at"`
}

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	// Paper fills are immediate and at the requested price, so FILLED is
	// the only status a persisted order ever carries.
	OrderStatusFilled = "FILLED"

	DecisionBuy  = "BUY"
	DecisionSell = "SELL"
	DecisionHold = "HOLD"
)

// UnrealizedPnL is the read-side PnL for the held lot at the given mark.
// The ledger itself never tracks realized PnL; callers derive the sold
// portion as (sell_price - avg_price) * sell_qty.
func (p *Position) UnrealizedPnL(mark decimal.Decimal) decimal.Decimal {
	if p.Qty.IsZero() {
		return decimal.Zero
	}
	return mark.Sub(p.AvgPrice).Mul(p.Qty)
}
