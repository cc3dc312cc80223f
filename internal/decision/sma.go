// Package decision produces synthetic trade intents from the live feed
// and keeps the decision log.
package decision

import (
	"fmt"

	"market_pulse/internal/domain"

	"github.com/shopspring/decimal"
)

// Action is one trade intent emitted by a strategy.
type Action struct {
	Symbol     string
	Side       string
	Price      decimal.Decimal
	Qty        decimal.Decimal
	Confidence decimal.Decimal
	Rationale  string
}

// Strategy turns accepted ticks into trade intents.
type Strategy interface {
	OnTick(tick domain.PriceTick) []Action
}

// SMACross is a simple moving-average crossover strategy, one
// independent state machine per symbol. It is stateful and deterministic:
// a golden cross emits a BUY, a dead cross emits a SELL.
type SMACross struct {
	shortPeriod int
	longPeriod  int
	lot         decimal.Decimal
	states      map[string]*smaState
}

type smaState struct {
	prices []decimal.Decimal // ring buffer of the last longPeriod prices
	head   int
	count  int
	sum    decimal.Decimal // running sum over the long window

	prevShort decimal.Decimal
	prevLong  decimal.Decimal
	warm      bool
}

// NewSMACross creates the strategy. lot is the fixed order quantity.
func NewSMACross(shortPeriod, longPeriod int, lot decimal.Decimal) *SMACross {
	if shortPeriod >= longPeriod {
		panic("SMACross: shortPeriod must be less than longPeriod")
	}
	return &SMACross{
		shortPeriod: shortPeriod,
		longPeriod:  longPeriod,
		lot:         lot,
		states:      make(map[string]*smaState),
	}
}

// OnTick folds one price into the symbol's window and reports crossovers.
func (s *SMACross) OnTick(tick domain.PriceTick) []Action {
	st, ok := s.states[tick.Symbol]
	if !ok {
		st = &smaState{
			prices: make([]decimal.Decimal, s.longPeriod),
			sum:    decimal.Zero,
		}
		s.states[tick.Symbol] = st
	}

	// Slide the ring buffer: when full, the head slot holds the oldest value.
	if st.count == s.longPeriod {
		st.sum = st.sum.Sub(st.prices[st.head])
	}
	st.prices[st.head] = tick.Price
	st.sum = st.sum.Add(tick.Price)
	st.head = (st.head + 1) % s.longPeriod
	if st.count < s.longPeriod {
		st.count++
	}

	if st.count < s.longPeriod {
		return nil
	}

	longSMA := st.sum.Div(decimal.NewFromInt(int64(s.longPeriod)))
	shortSMA := s.shortSMA(st)

	var actions []Action
	if st.warm {
		if st.prevShort.LessThanOrEqual(st.prevLong) && shortSMA.GreaterThan(longSMA) {
			actions = append(actions, s.action(tick, domain.SideBuy, shortSMA, longSMA))
		}
		if st.prevShort.GreaterThanOrEqual(st.prevLong) && shortSMA.LessThan(longSMA) {
			actions = append(actions, s.action(tick, domain.SideSell, shortSMA, longSMA))
		}
	}

	st.prevShort = shortSMA
	st.prevLong = longSMA
	st.warm = true
	return actions
}

func (s *SMACross) action(tick domain.PriceTick, side string, shortSMA, longSMA decimal.Decimal) Action {
	// Confidence grows with the separation of the two averages, capped at 1.
	confidence := decimal.NewFromFloat(0.5)
	if longSMA.IsPositive() {
		sep := shortSMA.Sub(longSMA).Abs().Div(longSMA).Mul(decimal.NewFromInt(100))
		confidence = decimal.NewFromFloat(0.5).Add(sep)
		if confidence.GreaterThan(decimal.NewFromInt(1)) {
			confidence = decimal.NewFromInt(1)
		}
	}

	cross := "above"
	if side == domain.SideSell {
		cross = "below"
	}
	return Action{
		Symbol:     tick.Symbol,
		Side:       side,
		Price:      tick.Price,
		Qty:        s.lot,
		Confidence: confidence,
		Rationale: fmt.Sprintf("SMA(%d) crossed %s SMA(%d) at %s",
			s.shortPeriod, cross, s.longPeriod, tick.Price.String()),
	}
}

// shortSMA walks the ring buffer backwards from the latest write.
func (s *SMACross) shortSMA(st *smaState) decimal.Decimal {
	sum := decimal.Zero
	idx := st.head
	for i := 0; i < s.shortPeriod; i++ {
		idx--
		if idx < 0 {
			idx = s.longPeriod - 1
		}
		sum = sum.Add(st.prices[idx])
	}
	return sum.Div(decimal.NewFromInt(int64(s.shortPeriod)))
}
