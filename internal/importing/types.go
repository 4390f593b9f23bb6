// Package importing implements the CSV import-session state machine of
// spec.md §4.8: Parsing -> Preview -> Importing -> Completed/Failed, plus
// the janitor sweep that garbage-collects abandoned sessions.
package importing

import "time"

// Status is an import session's lifecycle state.
type Status string

const (
	StatusParsing   Status = "Parsing"
	StatusPreview   Status = "Preview"
	StatusImporting Status = "Importing"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

// Kind distinguishes a transactions import from a trading-activity import;
// the two use different CSV column sets (spec.md §4.11) but share this
// session/row machinery.
type Kind string

const (
	KindTransactions Kind = "transactions"
	KindTrading      Kind = "trading"
)

// RowStatus is one import_rows entry's outcome.
type RowStatus string

const (
	RowPending  RowStatus = "pending"
	RowImported RowStatus = "imported"
	RowError    RowStatus = "error"
)

// Session is one CSV import attempt.
type Session struct {
	ID            string
	Kind          Kind
	Status        Status
	TotalRows     int64
	ProcessedRows int64
	ErrorCount    int64
	Errors        []string
	Created       time.Time
	Updated       time.Time
}

// Row is one parsed CSV line staged for review/import.
type Row struct {
	ID              int64
	SessionID       string
	RowNumber       int64
	PayloadJSON     string
	CategoryID      *int64
	CategoryName    string
	Status          RowStatus
	ErrorMessage    string
	CreatedEntityID *int64
}

// validTransitions enumerates the state machine's allowed edges, per
// spec.md §4.8.
var validTransitions = map[Status][]Status{
	StatusParsing:   {StatusPreview, StatusFailed},
	StatusPreview:   {StatusImporting, StatusFailed},
	StatusImporting: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether moving from 'from' to 'to' is a legal edge.
func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
