package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// categoriesForSankeyFixture mirrors the fixture analytics_test.rs's mixed
// income/expense test uses: Income (root), Expenses (root) -> Food & Dining
// -> {Groceries, Restaurants}.
func categoriesForSankeyFixture() []Category {
	expenses := Category{ID: 1, Name: "Expenses"}
	income := Category{ID: 2, Name: "Income"}
	foodAndDining := Category{ID: 4, Name: "Food & Dining", ParentID: intPtr(1)}
	groceries := Category{ID: 12, Name: "Groceries", ParentID: intPtr(4)}
	restaurants := Category{ID: 13, Name: "Restaurants", ParentID: intPtr(4)}
	return []Category{expenses, income, foodAndDining, groceries, restaurants}
}

func TestBuildSankey_SimpleIncomeAndExpenseChains(t *testing.T) {
	categories := categoriesForSankeyFixture()
	txs := []Transaction{
		{CategoryID: intPtr(2), AmountCents: 100000},  // Salary, direct root
		{CategoryID: intPtr(4), AmountCents: -30000},  // Rent-like expense directly under Food & Dining
	}

	diagram := BuildSankey(txs, categories)

	var names []string
	for _, n := range diagram.Nodes {
		names = append(names, n.Name)
	}
	assert.Contains(t, names, sankeyBudgetNode)
	assert.Contains(t, names, "Income")
	assert.Contains(t, names, "Food & Dining")

	require.NotEmpty(t, diagram.Links)
	var incomeToBudget, budgetToExpense bool
	for _, l := range diagram.Links {
		if l.Source == "Income" && l.Target == sankeyBudgetNode {
			incomeToBudget = true
			assert.EqualValues(t, 100000, l.Value)
		}
		if l.Source == sankeyBudgetNode && l.Target == "Expenses" {
			budgetToExpense = true
			assert.EqualValues(t, 30000, l.Value)
		}
	}
	assert.True(t, incomeToBudget)
	assert.True(t, budgetToExpense)
}

func TestBuildSankey_DisambiguatesOverlappingNamesAndStaysAcyclic(t *testing.T) {
	categories := categoriesForSankeyFixture()
	txs := []Transaction{
		{CategoryID: intPtr(12), AmountCents: 5000},   // Grocery refund: positive under an expense-side category
		{CategoryID: intPtr(13), AmountCents: -20000}, // Dinner: ordinary expense, same parent chain
	}

	diagram := BuildSankey(txs, categories)

	var sawDisambiguated bool
	for _, n := range diagram.Nodes {
		if n.Name == "Food & Dining (In)" || n.Name == "Expenses (In)" {
			sawDisambiguated = true
		}
	}
	assert.True(t, sawDisambiguated, "a name used on both income and expense sides must be suffixed (In) on the income side")

	intoBudget := make(map[string]bool)
	fromBudget := make(map[string]bool)
	for _, l := range diagram.Links {
		if l.Target == sankeyBudgetNode {
			intoBudget[l.Source] = true
		}
		if l.Source == sankeyBudgetNode {
			fromBudget[l.Target] = true
		}
	}
	for name := range intoBudget {
		assert.False(t, fromBudget[name], "node %q must not flow both into and out of Budget", name)
	}
}

func TestBuildSankey_UncategorizedTransactionsGetTheirOwnNode(t *testing.T) {
	txs := []Transaction{
		{CategoryID: nil, AmountCents: -100},
	}
	diagram := BuildSankey(txs, nil)

	var sawUncategorized bool
	for _, l := range diagram.Links {
		if l.Source == sankeyBudgetNode && l.Target == uncategorizedLabel {
			sawUncategorized = true
			assert.EqualValues(t, 100, l.Value)
		}
	}
	assert.True(t, sawUncategorized)
}
