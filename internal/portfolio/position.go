package portfolio

import (
	"math"
	"sort"

	"github.com/adrianvollmer/solvency/internal/money"
)

// PositionState is the running (quantity, cost-basis) pair for one symbol.
type PositionState struct {
	Quantity       float64
	TotalCostCents money.Cents
}

// Engine applies an ordered stream of trading activities to produce
// per-symbol position state. It is pure: the same activity stream always
// produces the same final (and, for any prefix, the same intermediate)
// state.
//
// Activities are assumed already split-reconciled (see reconcileSplit in
// repository.go): any
// Buy/Sell dated at or before a persisted Split has already had its
// quantity/price rewritten by the reconciliation step, so a Split
// activity's own contribution to the running total here is zero — its
// effect was applied to history at persist time, not at replay time.
type Engine struct {
	states map[string]*PositionState
}

// NewEngine constructs an Engine with empty state.
func NewEngine() *Engine {
	return &Engine{states: make(map[string]*PositionState)}
}

// Apply applies a single activity, in date order, to the engine's state.
// Callers replaying a stream must sort by (date asc, id asc) first, per
// spec.md §4.5 step 5a.
func (e *Engine) Apply(a Activity) {
	st, ok := e.states[a.Symbol]
	if !ok {
		st = &PositionState{}
		e.states[a.Symbol] = st
	}

	qty := a.Quantity
	price := money.Cents(0)
	if a.UnitPriceCents != nil {
		price = *a.UnitPriceCents
	}

	switch a.Kind {
	case Buy, AddHolding, TransferIn, Deposit, Dividend, Interest:
		st.Quantity += qty
		st.TotalCostCents = money.SaturatingAdd(st.TotalCostCents, money.RoundCents(qty*price.Major()*100))

	case Sell, RemoveHolding, TransferOut:
		qtyBefore := st.Quantity
		var avgCost float64
		if qtyBefore != 0 {
			avgCost = float64(st.TotalCostCents) / qtyBefore
		}
		st.Quantity -= qty
		if st.Quantity < 0 {
			st.Quantity = 0
		}
		costDelta := money.RoundCents(qty * avgCost)
		st.TotalCostCents = money.SaturatingAdd(st.TotalCostCents, -costDelta)
		if st.TotalCostCents < 0 {
			st.TotalCostCents = 0
		}

	case Withdrawal, Fee, Tax:
		st.Quantity -= qty
		st.TotalCostCents = money.SaturatingAdd(st.TotalCostCents, -money.RoundCents(qty*price.Major()*100))

	case Split:
		// No-op here: reconciliation already rewrote every prior Buy/Sell
		// row for this symbol, so replaying the split itself would
		// double-apply the ratio. See reconcileSplit in repository.go.

	default:
		// unknown kind: ignored defensively, should not occur given the
		// persistence layer's CHECK constraint on the kind column.
	}

	if math.IsNaN(st.Quantity) || math.IsInf(st.Quantity, 0) {
		st.Quantity = 0
	}
}

// ApplyAll applies every activity in activities, sorted by (date, id), in
// order.
func (e *Engine) ApplyAll(activities []Activity) {
	sorted := make([]Activity, len(activities))
	copy(sorted, activities)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID < sorted[j].ID
	})
	for _, a := range sorted {
		e.Apply(a)
	}
}

// State returns the current position for a symbol, or the zero value if the
// symbol has never been touched.
func (e *Engine) State(symbol string) PositionState {
	if st, ok := e.states[symbol]; ok {
		return *st
	}
	return PositionState{}
}

// States returns a snapshot of every symbol's current position.
func (e *Engine) States() map[string]PositionState {
	out := make(map[string]PositionState, len(e.states))
	for sym, st := range e.states {
		out[sym] = *st
	}
	return out
}

// Position pairs a symbol with its computed state, for sorted display.
type Position struct {
	Symbol string
	PositionState
}

// SortedPositions returns every non-zero position, cash pseudo-symbols
// first, then alphabetically, per spec.md §4.3.
func (e *Engine) SortedPositions() []Position {
	out := make([]Position, 0, len(e.states))
	for sym, st := range e.states {
		if st.Quantity == 0 && st.TotalCostCents == 0 {
			continue
		}
		out = append(out, Position{Symbol: sym, PositionState: *st})
	}
	sort.Slice(out, func(i, j int) bool {
		iCash, jCash := IsCashSymbol(out[i].Symbol), IsCashSymbol(out[j].Symbol)
		if iCash != jCash {
			return iCash
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
