// Package ledger owns the reference entities (accounts, categories, tags,
// rules) and cash transactions, plus the sort/filter and rule-matching
// utilities that operate over them.
package ledger

import (
	"strings"
	"time"

	"github.com/adrianvollmer/solvency/internal/money"
)

// AccountType distinguishes cash accounts from securities accounts; only
// securities accounts participate in the position engine.
type AccountType string

const (
	AccountCash       AccountType = "Cash"
	AccountSecurities AccountType = "Securities"
)

// Account is a named cash or securities account.
type Account struct {
	ID      int64
	Name    string
	Type    AccountType
	Active  bool
	Created time.Time
	Updated time.Time
}

// Category is a node in the built-in-rooted category tree.
type Category struct {
	ID       int64
	Name     string
	ParentID *int64
	Color    string
	Icon     string
	BuiltIn  bool
	Created  time.Time
	Updated  time.Time
}

// CategoryWithPath is a Category annotated with its materialized
// root-to-node path, used by the categories-with-path cache slot.
type CategoryWithPath struct {
	Category
	Path string // e.g. "Expenses / Housing / Rent"
}

// TagStyle selects the display treatment of a Tag.
type TagStyle string

const (
	TagSolid   TagStyle = "Solid"
	TagOutline TagStyle = "Outline"
	TagStriped TagStyle = "Striped"
)

// Tag is a named label attachable to transactions many-to-many.
type Tag struct {
	ID    int64
	Name  string
	Color string
	Style TagStyle
}

// Transaction is a single cash-ledger entry. Amount is signed: negative is
// an outflow.
type Transaction struct {
	ID                int64
	Date              money.Date
	AmountCents        money.Cents
	Currency          string
	Description       string
	CategoryID        *int64
	AccountID         *int64
	Notes             string
	ValueDate         *money.Date
	Payer             string
	Payee             string
	Reference         string
	TransactionType   string
	CounterpartyIBAN  string
	CreditorID        string
	MandateReference  string
	CustomerReference string
	TagIDs            []int64
	Created           time.Time
	Updated           time.Time
}

// RuleActionKind selects what a matching Rule does.
type RuleActionKind string

const (
	ActionAssignCategory RuleActionKind = "AssignCategory"
	ActionAssignTag      RuleActionKind = "AssignTag"
)

// Rule matches transactions whose description contains Pattern
// (case-insensitive substring) and, when explicitly applied, assigns
// ActionValue (a category or tag id depending on ActionKind).
type Rule struct {
	ID          int64
	Name        string
	Pattern     string
	ActionKind  RuleActionKind
	ActionValue int64
	Created     time.Time
	Updated     time.Time
}

// Matches reports whether the rule's pattern is a case-insensitive
// substring of description, per spec.md §4.10.
func (r Rule) Matches(description string) bool {
	return strings.Contains(strings.ToLower(description), strings.ToLower(r.Pattern))
}
