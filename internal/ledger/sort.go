package ledger

// SortDirection is a whitelisted ORDER BY direction.
type SortDirection string

const (
	Ascending  SortDirection = "ASC"
	Descending SortDirection = "DESC"
)

// ParseSortDirection maps a URL "dir" parameter to a SortDirection,
// defaulting to def on anything unrecognized, per spec.md §4.14's
// whitelist-or-fallback rule.
func ParseSortDirection(dir string, def SortDirection) SortDirection {
	switch SortDirection(dir) {
	case Ascending:
		return Ascending
	case Descending:
		return Descending
	default:
		return def
	}
}

// TransactionSortColumn is a whitelisted sortable column for transactions.
// Each maps to a compile-time-constant SQL expression, so building the
// ORDER BY clause from a URL parameter can never inject SQL.
type TransactionSortColumn string

const (
	SortByDate        TransactionSortColumn = "date"
	SortByAmount      TransactionSortColumn = "amount"
	SortByDescription TransactionSortColumn = "description"
	SortByPayee       TransactionSortColumn = "payee"
)

var transactionSortExprs = map[TransactionSortColumn]string{
	SortByDate:        "date",
	SortByAmount:      "amount_cents",
	SortByDescription: "description",
	SortByPayee:       "payee",
}

// ParseTransactionSortColumn maps a URL "sort" parameter to a
// TransactionSortColumn, defaulting to SortByDate on anything unrecognized.
func ParseTransactionSortColumn(col string) TransactionSortColumn {
	if _, ok := transactionSortExprs[TransactionSortColumn(col)]; ok {
		return TransactionSortColumn(col)
	}
	return SortByDate
}

// OrderByClause renders a whitelisted column/direction pair as a literal
// "ORDER BY <expr> <dir>" SQL fragment.
func (c TransactionSortColumn) OrderByClause(dir SortDirection) string {
	expr, ok := transactionSortExprs[c]
	if !ok {
		expr = transactionSortExprs[SortByDate]
	}
	return "ORDER BY " + expr + " " + string(dir) + ", id " + string(dir)
}

// ToggleDirection implements the "clicking an active column toggles
// direction; clicking another column defaults to DESC" rule of §4.14.
func ToggleDirection(activeColumn, clickedColumn TransactionSortColumn, currentDir SortDirection) SortDirection {
	if activeColumn != clickedColumn {
		return Descending
	}
	if currentDir == Descending {
		return Ascending
	}
	return Descending
}
