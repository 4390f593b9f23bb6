// Package aicategorization implements the AI-categorization session state
// machine of spec.md §4.9: Pending -> Processing -> Completed/Cancelled/
// Failed, batching transactions to an opaque AI-provider collaborator and
// recording one suggestion result per transaction.
package aicategorization

import "time"

// Status is an AI-categorization session's lifecycle state.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
	StatusFailed     Status = "Failed"
)

// Scope selects which transactions a session considers.
type Scope string

const (
	ScopeAll           Scope = "all"
	ScopeUncategorized Scope = "uncategorized"
)

// ResultStatus is one per-transaction suggestion's lifecycle state.
type ResultStatus string

const (
	ResultPending  ResultStatus = "Pending"
	ResultApplied  ResultStatus = "Applied"
	ResultRejected ResultStatus = "Rejected"
	ResultSkipped  ResultStatus = "Skipped"
	ResultError    ResultStatus = "Error"
)

// Session is one AI-categorization run.
type Session struct {
	ID            string
	Scope         Scope
	Status        Status
	TotalRows     int64
	ProcessedRows int64
	ErrorCount    int64
	Errors        []string
	Created       time.Time
	Updated       time.Time
}

// Result is one transaction's AI suggestion and its disposition.
type Result struct {
	ID                  int64
	SessionID           string
	TransactionID       int64
	OriginalCategoryID  *int64
	SuggestedCategoryID *int64
	Confidence          *float64
	Reasoning           string
	Status              ResultStatus
}

// validTransitions enumerates the state machine's allowed edges.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusCancelled, StatusFailed},
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

// TransactionCandidate is one transaction offered to the AI provider for
// categorization, the Go analogue of original_source's
// TransactionForCategorization.
type TransactionCandidate struct {
	TransactionID int64
	Description   string
	AmountCents   int64
	Currency      string
}

// CategoryOption is one category offered as a classification target,
// labeled with its materialized tree path.
type CategoryOption struct {
	ID   int64
	Path string
}

// Suggestion is one provider-returned classification for a transaction.
type Suggestion struct {
	TransactionID int64
	CategoryID    *int64
	Confidence    float64
	Reasoning     string
}

// Categorizer is the opaque AI-provider collaborator of spec.md §6:
// `categorize(batch, categories) -> suggestions[]`. Any concrete provider
// (Ollama, OpenAI-compatible, Anthropic — see original_source/src/services/
// ai_client.rs) implements this by building its own prompt from batch and
// categories and parsing its JSON response into Suggestions.
type Categorizer interface {
	Categorize(batch []TransactionCandidate, categories []CategoryOption) ([]Suggestion, error)
}
