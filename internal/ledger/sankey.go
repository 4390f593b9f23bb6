package ledger

import (
	"sort"

	"github.com/adrianvollmer/solvency/internal/money"
)

// sankeyBudgetNode is the single hub every category chain flows through:
// income chains terminate here, expense chains originate here.
const sankeyBudgetNode = "Budget"

// SankeyNode is one node of the flow-sankey chart.
type SankeyNode struct {
	Name string `json:"name"`
}

// SankeyLink is one directed, value-weighted edge of the flow-sankey chart.
type SankeyLink struct {
	Source string      `json:"source"`
	Target string      `json:"target"`
	Value  money.Cents `json:"value"`
}

// SankeyDiagram is the flow-sankey chart payload spec.md §6 names.
type SankeyDiagram struct {
	Nodes []SankeyNode `json:"nodes"`
	Links []SankeyLink `json:"links"`
}

// categoryChain returns a transaction's category path, leaf first and root
// last ("Groceries", "Food & Dining", "Expenses"); a nil or dangling
// category id collapses to a single "Uncategorized" node.
func categoryChain(categoryID *int64, byID map[int64]Category) []string {
	if categoryID == nil {
		return []string{uncategorizedLabel}
	}
	const maxDepth = 64
	var chain []string
	id := *categoryID
	for depth := 0; depth < maxDepth; depth++ {
		c, ok := byID[id]
		if !ok {
			break
		}
		chain = append(chain, c.Name)
		if c.ParentID == nil {
			break
		}
		id = *c.ParentID
	}
	if len(chain) == 0 {
		return []string{uncategorizedLabel}
	}
	return chain
}

// BuildSankey computes the flow-sankey chart: every transaction's category
// chain flows into Budget on the income side (positive amounts) or out of
// Budget on the expense side (negative amounts), chained through every
// intermediate category on the way. A category name used on both the
// income and expense side is disambiguated on the income side by
// appending " (In)" (§9's open question) — the disambiguation exists
// purely to keep the resulting directed graph acyclic around Budget; no
// name is otherwise special-cased.
func BuildSankey(transactions []Transaction, categories []Category) SankeyDiagram {
	byID := make(map[int64]Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	type weightedChain struct {
		chain  []string
		amount money.Cents
	}
	var income, expense []weightedChain
	incomeNames := make(map[string]bool)
	expenseNames := make(map[string]bool)

	for _, t := range transactions {
		if t.AmountCents == 0 {
			continue
		}
		chain := categoryChain(t.CategoryID, byID)
		if t.AmountCents > 0 {
			income = append(income, weightedChain{chain, t.AmountCents})
			for _, n := range chain {
				incomeNames[n] = true
			}
		} else {
			expense = append(expense, weightedChain{chain, -t.AmountCents})
			for _, n := range chain {
				expenseNames[n] = true
			}
		}
	}

	disambiguate := func(name string) string {
		if incomeNames[name] && expenseNames[name] {
			return name + " (In)"
		}
		return name
	}

	type linkKey struct{ source, target string }
	links := make(map[linkKey]money.Cents)
	nodes := make(map[string]bool)
	addLink := func(source, target string, value money.Cents) {
		links[linkKey{source, target}] += value
		nodes[source] = true
		nodes[target] = true
	}

	for _, wc := range income {
		named := make([]string, len(wc.chain))
		for i, n := range wc.chain {
			named[i] = disambiguate(n)
		}
		for i := 0; i < len(named)-1; i++ {
			addLink(named[i], named[i+1], wc.amount)
		}
		addLink(named[len(named)-1], sankeyBudgetNode, wc.amount)
	}
	for _, wc := range expense {
		addLink(sankeyBudgetNode, wc.chain[len(wc.chain)-1], wc.amount)
		for i := len(wc.chain) - 1; i > 0; i-- {
			addLink(wc.chain[i], wc.chain[i-1], wc.amount)
		}
	}
	nodes[sankeyBudgetNode] = true

	diagram := SankeyDiagram{}

	names := make([]string, 0, len(nodes))
	for n := range nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		diagram.Nodes = append(diagram.Nodes, SankeyNode{Name: n})
	}

	keys := make([]linkKey, 0, len(links))
	for k := range links {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].source != keys[j].source {
			return keys[i].source < keys[j].source
		}
		return keys[i].target < keys[j].target
	})
	for _, k := range keys {
		diagram.Links = append(diagram.Links, SankeyLink{Source: k.source, Target: k.target, Value: links[k]})
	}

	return diagram
}
