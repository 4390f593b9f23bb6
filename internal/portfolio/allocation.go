package portfolio

import (
	"sort"

	"github.com/adrianvollmer/solvency/internal/ledger"
	"github.com/adrianvollmer/solvency/internal/money"
)

// palette cycles 10 hex colors across top-level allocation nodes, the same
// fixed set the sunburst chart's original implementation used.
var palette = []string{
	"#3b82f6", "#22c55e", "#f59e0b", "#ef4444", "#8b5cf6",
	"#06b6d4", "#f97316", "#ec4899", "#14b8a6", "#6366f1",
}

// AllocationNode is one node of the account-allocation tree: a cash account
// is a leaf with a balance, a securities account is a parent whose children
// are its non-zero positions valued at the latest known price.
type AllocationNode struct {
	Name        string           `json:"name"`
	Color       string           `json:"color"`
	AmountCents *money.Cents     `json:"amount_cents,omitempty"`
	Children    []AllocationNode `json:"children"`
}

// BuildAccountAllocation assembles the sunburst tree of spec.md §6's
// net-worth allocation view: every active cash account with a positive
// balance becomes a leaf, and every active securities account becomes a
// parent whose children are the positions booked against it (valued against
// the carry-forward price lookup, falling back to cost basis).
func BuildAccountAllocation(accounts []ledger.Account, cashBalances []ledger.AccountBalance,
	activities []Activity, points []MarketDataPoint, today money.Date) []AllocationNode {

	balanceByAccount := make(map[int64]money.Cents, len(cashBalances))
	for _, b := range cashBalances {
		balanceByAccount[b.AccountID] = b.Cents
	}

	activitiesByAccount := make(map[int64][]Activity)
	for _, a := range activities {
		if a.AccountID == nil {
			continue
		}
		activitiesByAccount[*a.AccountID] = append(activitiesByAccount[*a.AccountID], a)
	}

	lookup := NewPriceLookup(points, activities)

	nodes := make([]AllocationNode, 0, len(accounts))
	for i, account := range accounts {
		if !account.Active {
			continue
		}
		color := palette[i%len(palette)]

		switch account.Type {
		case ledger.AccountCash:
			balance := balanceByAccount[account.ID]
			if balance <= 0 {
				continue
			}
			amount := balance
			nodes = append(nodes, AllocationNode{
				Name: account.Name, Color: color, AmountCents: &amount, Children: []AllocationNode{},
			})

		case ledger.AccountSecurities:
			engine := NewEngine()
			engine.ApplyAll(activitiesByAccount[account.ID])

			var children []AllocationNode
			for _, pos := range engine.SortedPositions() {
				if IsCashSymbol(pos.Symbol) {
					continue
				}
				value := pos.TotalCostCents
				if price, _, found := lookup.Lookup(pos.Symbol, today); found {
					value = money.RoundCents(pos.Quantity * price.Major() * 100)
				}
				if value <= 0 {
					continue
				}
				amount := value
				children = append(children, AllocationNode{
					Name: pos.Symbol, Color: color, AmountCents: &amount, Children: []AllocationNode{},
				})
			}
			if len(children) == 0 {
				continue
			}
			sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })
			nodes = append(nodes, AllocationNode{Name: account.Name, Color: color, Children: children})
		}
	}

	return nodes
}
